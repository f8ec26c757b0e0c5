// Package steward runs engine operations against persisted state: one
// operation per database transaction, effects applied inside it, events
// published after commit.
package steward

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"steward-backend/internal/domain"
	"steward-backend/internal/infrastructure/payout"
	"steward-backend/internal/infrastructure/registry"
	"steward-backend/internal/observability/metrics"
	engine "steward-backend/internal/steward"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service owns the single stewarded asset. Mutating calls are serialized.
type Service struct {
	DB      *gorm.DB
	Rdb     *redis.Client // optional: event fan-out
	Engine  *engine.Engine
	TokenID uint64

	// AutoSweep pushes fresh sale proceeds to their recipients right after a
	// buy. A recipient that refuses keeps its ledger balance.
	AutoSweep bool

	Now     func() time.Time
	Custody func(tx *gorm.DB, self common.Address) engine.Custody
	Rail    func(tx *gorm.DB) engine.PaymentRail
	Metrics *metrics.StewardMetrics

	mu sync.Mutex
}

func (s *Service) now() int64 {
	if s.Now != nil {
		return s.Now().Unix()
	}
	return time.Now().Unix()
}

func (s *Service) custody(tx *gorm.DB, self common.Address) engine.Custody {
	if s.Custody != nil {
		return s.Custody(tx, self)
	}
	return registry.Custodian{Registry: registry.New(tx, s.TokenID, self)}
}

func (s *Service) rail(tx *gorm.DB) engine.PaymentRail {
	if s.Rail != nil {
		return s.Rail(tx)
	}
	return payout.New(tx)
}

// Bootstrap creates the genesis state on first start.
func (s *Service) Bootstrap(ctx context.Context, g Genesis) error {
	g.TokenID = s.TokenID
	var created bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = bootstrap(ctx, tx, g, s.Engine.Rates())
		return err
	})
	if err != nil {
		return fmt.Errorf("bootstrap steward: %w", err)
	}
	if created {
		log.Info().Str("self", g.Self.Hex()).Uint64("token_id", g.TokenID).
			Str("initial_price", g.InitialPrice.Dec()).Msg("steward created")
	}
	return nil
}

type operation func(st *engine.State, now int64) (*engine.Outcome, error)

// run executes op on the locked state. State, events and effects commit
// together or not at all.
func (s *Service) run(ctx context.Context, name string, caller common.Address, op operation) (*engine.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var (
		out  *engine.Outcome
		post *engine.State
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := loadState(tx, true)
		if err != nil {
			return err
		}
		o, err := op(st, now)
		if err != nil {
			return err
		}
		// The zeroed ledger entry is written before any payment goes out.
		if err := saveState(tx, st, s.Engine.Rates()); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		if err := appendEvents(tx, o.Events); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
		if err := engine.Apply(ctx, o.Effects, s.custody(tx, st.Self), s.rail(tx)); err != nil {
			return err
		}
		out, post = o, st
		return nil
	})
	s.Metrics.ObserveOperation(name, err)
	if err != nil {
		if errors.Is(err, engine.ErrTransferBlocked) {
			s.Metrics.ObserveBlockedPayout("pull")
		}
		log.Info().Str("op", name).Str("caller", caller.Hex()).Err(err).Msg("steward operation rejected")
		return nil, err
	}

	s.afterCommit(ctx, name, caller, out, post)
	return out, nil
}

func (s *Service) afterCommit(ctx context.Context, name string, caller common.Address, out *engine.Outcome, st *engine.State) {
	types := make([]string, 0, len(out.Events))
	for _, evt := range out.Events {
		types = append(types, evt.Type)
		s.Metrics.ObserveEvent(evt.Type)
		if evt.Type == engine.EventTypeForeclosure {
			log.Warn().Str("former_patron", evt.Attributes["former_patron"]).
				Str("settled_until", evt.Attributes["settled_until"]).Msg("steward foreclosed")
		}
	}
	s.Metrics.SetState(weiFloat(st.Price), weiFloat(st.Deposit), weiFloat(st.TotalCollected), st.Status() == engine.StatusOwned)
	log.Info().Str("op", name).Str("caller", caller.Hex()).Strs("events", types).
		Str("status", st.Status().String()).Msg("steward operation committed")
	publishEvents(ctx, s.Rdb, out.Events)
}

func weiFloat(v *uint256.Int) float64 {
	f, _ := strconv.ParseFloat(v.Dec(), 64)
	return f
}

// Collect settles patronage up to now. Anyone may call it.
func (s *Service) Collect(ctx context.Context, caller common.Address) (*engine.Outcome, error) {
	return s.run(ctx, "collect", caller, func(st *engine.State, now int64) (*engine.Outcome, error) {
		return s.Engine.Collect(st, now)
	})
}

// Buy purchases the asset for caller. currentPrice must equal the declared
// price when the asset is owned.
func (s *Service) Buy(ctx context.Context, caller common.Address, newPrice, currentPrice, payment *uint256.Int) (*engine.Outcome, error) {
	var (
		roles engine.Roles
		self  common.Address
	)
	out, err := s.run(ctx, "buy", caller, func(st *engine.State, now int64) (*engine.Outcome, error) {
		roles, self = st.Roles, st.Self
		return s.Engine.Buy(st, caller, newPrice, currentPrice, payment, now)
	})
	if err != nil {
		return nil, err
	}
	if s.AutoSweep {
		s.sweep(ctx, sweepTargets(out, roles, self, caller))
	}
	return out, nil
}

// sweepTargets lists who was credited by a buy: the artist, the platform and
// the prior owner on a resale.
func sweepTargets(out *engine.Outcome, roles engine.Roles, self, buyer common.Address) []common.Address {
	targets := []common.Address{roles.Artist, roles.Platform}
	for _, eff := range out.Effects {
		if eff.Kind == engine.EffectCustodyTransfer && eff.To == buyer && eff.From != self {
			targets = append(targets, eff.From)
		}
	}
	return targets
}

// sweep withdraws each target's balance on its behalf.
func (s *Service) sweep(ctx context.Context, targets []common.Address) {
	seen := make(map[common.Address]bool, len(targets))
	for _, addr := range targets {
		if seen[addr] || addr == (common.Address{}) {
			continue
		}
		seen[addr] = true
		_, err := s.WithdrawPullFunds(ctx, addr)
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrNoPullFunds):
		case errors.Is(err, engine.ErrTransferBlocked):
			log.Warn().Str("recipient", addr.Hex()).Msg("auto sweep refused, balance stays withdrawable")
		default:
			log.Error().Str("recipient", addr.Hex()).Err(err).Msg("auto sweep failed")
		}
	}
}

func (s *Service) ChangePrice(ctx context.Context, caller common.Address, newPrice *uint256.Int) (*engine.Outcome, error) {
	return s.run(ctx, "change_price", caller, func(st *engine.State, now int64) (*engine.Outcome, error) {
		return s.Engine.ChangePrice(st, caller, newPrice, now)
	})
}

func (s *Service) ChangeInitialPrice(ctx context.Context, caller common.Address, newPrice *uint256.Int) (*engine.Outcome, error) {
	return s.run(ctx, "change_initial_price", caller, func(st *engine.State, _ int64) (*engine.Outcome, error) {
		return s.Engine.ChangeInitialPrice(st, caller, newPrice)
	})
}

func (s *Service) DepositWei(ctx context.Context, caller common.Address, amount *uint256.Int) (*engine.Outcome, error) {
	return s.run(ctx, "deposit", caller, func(st *engine.State, now int64) (*engine.Outcome, error) {
		return s.Engine.DepositWei(st, caller, amount, now)
	})
}

func (s *Service) WithdrawDeposit(ctx context.Context, caller common.Address, amount *uint256.Int) (*engine.Outcome, error) {
	return s.run(ctx, "withdraw_deposit", caller, func(st *engine.State, now int64) (*engine.Outcome, error) {
		return s.Engine.WithdrawDeposit(st, caller, amount, now)
	})
}

func (s *Service) Exit(ctx context.Context, caller common.Address) (*engine.Outcome, error) {
	return s.run(ctx, "exit", caller, func(st *engine.State, now int64) (*engine.Outcome, error) {
		return s.Engine.Exit(st, caller, now)
	})
}

func (s *Service) WithdrawPullFunds(ctx context.Context, caller common.Address) (*engine.Outcome, error) {
	return s.run(ctx, "withdraw_pull_funds", caller, func(st *engine.State, _ int64) (*engine.Outcome, error) {
		return s.Engine.WithdrawPullFunds(st, caller)
	})
}

func (s *Service) ChangeArtistTo(ctx context.Context, caller, next common.Address) (*engine.Outcome, error) {
	return s.run(ctx, "change_artist", caller, func(st *engine.State, _ int64) (*engine.Outcome, error) {
		return s.Engine.ChangeArtistTo(st, caller, next)
	})
}

func (s *Service) ChangeBeneficiaryTo(ctx context.Context, caller, next common.Address) (*engine.Outcome, error) {
	return s.run(ctx, "change_beneficiary", caller, func(st *engine.State, _ int64) (*engine.Outcome, error) {
		return s.Engine.ChangeBeneficiaryTo(st, caller, next)
	})
}

func (s *Service) ChangePlatformTo(ctx context.Context, caller, next common.Address) (*engine.Outcome, error) {
	return s.run(ctx, "change_platform", caller, func(st *engine.State, _ int64) (*engine.Outcome, error) {
		return s.Engine.ChangePlatformTo(st, caller, next)
	})
}

// Snapshot is the read model served by GET /steward, evaluated at Now.
type Snapshot struct {
	Now                   int64      `json:"now"`
	Status                string     `json:"status"`
	Patron                string     `json:"patron"`
	Price                 domain.Wei `json:"price"`
	AskingPrice           domain.Wei `json:"asking_price"`
	InitialPrice          domain.Wei `json:"initial_price"`
	Deposit               domain.Wei `json:"deposit"`
	DepositAbleToWithdraw domain.Wei `json:"deposit_able_to_withdraw"`
	PatronageOwed         domain.Wei `json:"patronage_owed"`
	Foreclosed            bool       `json:"foreclosed"`
	ForeclosureTime       int64      `json:"foreclosure_time"`
	TimeLastCollected     int64      `json:"time_last_collected"`
	TimeAcquired          int64      `json:"time_acquired"`
	CurrentCollected      domain.Wei `json:"current_collected"`
	TotalCollected        domain.Wei `json:"total_collected"`
	Artist                string     `json:"artist"`
	Beneficiary           string     `json:"beneficiary"`
	Platform              string     `json:"platform"`
	TokenID               uint64     `json:"token_id"`
	TokenOwner            string     `json:"token_owner"`
}

// Snapshot reads the current state without settling it.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	db := s.DB.WithContext(ctx)
	st, err := loadState(db, false)
	if err != nil {
		return nil, err
	}
	now := s.now()
	owed, at, err := s.Engine.PatronageOwed(st, now)
	if err != nil {
		return nil, err
	}
	foreclosed, err := s.Engine.Foreclosed(st, now)
	if err != nil {
		return nil, err
	}
	ft, err := s.Engine.ForeclosureTime(st)
	if err != nil {
		return nil, err
	}
	able, err := s.Engine.DepositAbleToWithdraw(st, now)
	if err != nil {
		return nil, err
	}
	owner, err := s.custody(db, st.Self).OwnerOf(ctx)
	if err != nil {
		return nil, fmt.Errorf("token owner: %w", err)
	}
	return &Snapshot{
		Now:                   at,
		Status:                st.Status().String(),
		Patron:                st.Patron.Hex(),
		Price:                 domain.NewWei(st.Price),
		AskingPrice:           domain.NewWei(st.AskingPrice()),
		InitialPrice:          domain.NewWei(st.InitialPrice),
		Deposit:               domain.NewWei(st.Deposit),
		DepositAbleToWithdraw: domain.NewWei(able),
		PatronageOwed:         domain.NewWei(owed),
		Foreclosed:            foreclosed,
		ForeclosureTime:       ft,
		TimeLastCollected:     st.TimeLastCollected,
		TimeAcquired:          st.TimeAcquired,
		CurrentCollected:      domain.NewWei(st.CurrentCollected),
		TotalCollected:        domain.NewWei(st.TotalCollected),
		Artist:                st.Roles.Artist.Hex(),
		Beneficiary:           st.Roles.Beneficiary.Hex(),
		Platform:              st.Roles.Platform.Hex(),
		TokenID:               s.TokenID,
		TokenOwner:            owner.Hex(),
	}, nil
}

// PatronageOwed returns the accrued patronage and the time it was evaluated at.
func (s *Service) PatronageOwed(ctx context.Context) (*uint256.Int, int64, error) {
	st, err := loadState(s.DB.WithContext(ctx), false)
	if err != nil {
		return nil, 0, err
	}
	return s.Engine.PatronageOwed(st, s.now())
}

// ForeclosureTime projects when the current deposit runs out.
func (s *Service) ForeclosureTime(ctx context.Context) (int64, error) {
	st, err := loadState(s.DB.WithContext(ctx), false)
	if err != nil {
		return 0, err
	}
	return s.Engine.ForeclosureTime(st)
}

// PatronInfo describes one address's history with the asset.
type PatronInfo struct {
	Address   string `json:"address"`
	WasPatron bool   `json:"was_patron"`
	Current   bool   `json:"current"`
	TimeHeld  int64  `json:"time_held"`
}

func (s *Service) Patron(ctx context.Context, addr common.Address) (*PatronInfo, error) {
	st, err := loadState(s.DB.WithContext(ctx), false)
	if err != nil {
		return nil, err
	}
	return &PatronInfo{
		Address:   addr.Hex(),
		WasPatron: st.WasPatron(addr),
		Current:   st.Status() == engine.StatusOwned && st.Patron == addr,
		TimeHeld:  st.TimeHeldBy(addr),
	}, nil
}

// PullFunds returns the withdrawable ledger balance of addr.
func (s *Service) PullFunds(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	var fund domain.PullFund
	err := s.DB.WithContext(ctx).Where("address = ?", addr.Hex()).First(&fund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return fund.Balance.Uint256(), nil
}

// Status reports "owned" or "foreclosed", counting a lapsed deposit as
// foreclosed even before anyone settles it.
func (s *Service) Status(ctx context.Context) (string, error) {
	st, err := loadState(s.DB.WithContext(ctx), false)
	if err != nil {
		return "", err
	}
	foreclosed, err := s.Engine.Foreclosed(st, s.now())
	if err != nil {
		return "", err
	}
	if foreclosed {
		return engine.StatusForeclosed.String(), nil
	}
	return engine.StatusOwned.String(), nil
}
