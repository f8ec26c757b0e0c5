package steward

import (
	"context"
	"errors"
	"fmt"

	"steward-backend/internal/domain"
	"steward-backend/internal/infrastructure/registry"
	engine "steward-backend/internal/steward"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotInitialized = errors.New("steward not initialized")
	ErrRatesMismatch  = errors.New("configured patronage rate differs from the persisted steward")
	ErrSelfMismatch   = errors.New("configured steward address differs from the persisted steward")
)

// Genesis is what the steward row is created from on first start.
type Genesis struct {
	Self         common.Address
	InitialPrice *uint256.Int
	Roles        engine.Roles
	TokenID      uint64
	TokenURI     string
}

// bootstrap creates the steward row and mints the token to the steward when
// they don't exist yet. An existing row must match the configured identity.
func bootstrap(ctx context.Context, tx *gorm.DB, g Genesis, rates engine.Rates) (bool, error) {
	var row domain.Steward
	err := tx.Where("id = ?", domain.StewardRowID).First(&row).Error
	switch {
	case err == nil:
		if common.HexToAddress(row.SelfAddress) != g.Self {
			return false, fmt.Errorf("%w: %s", ErrSelfMismatch, row.SelfAddress)
		}
		if row.PatronageNumerator != rates.PatronageNumerator {
			return false, fmt.Errorf("%w: %d", ErrRatesMismatch, row.PatronageNumerator)
		}
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	st := engine.NewState(g.Self, g.InitialPrice, g.Roles)
	row = stewardRow(st, rates)
	if err := tx.Create(&row).Error; err != nil {
		return false, err
	}
	reg := registry.New(tx, g.TokenID, g.Self)
	if err := reg.Mint(ctx, g.Self, g.TokenURI); err != nil && !errors.Is(err, registry.ErrAlreadyMinted) {
		return false, fmt.Errorf("mint token %d: %w", g.TokenID, err)
	}
	return true, nil
}

// loadState rebuilds the engine state from its rows. lock takes the steward
// row FOR UPDATE.
func loadState(tx *gorm.DB, lock bool) (*engine.State, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row domain.Steward
	if err := q.Where("id = ?", domain.StewardRowID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}

	st := engine.NewState(common.HexToAddress(row.SelfAddress), row.InitialPrice.Uint256(), engine.Roles{
		Artist:      common.HexToAddress(row.Artist),
		Beneficiary: common.HexToAddress(row.Beneficiary),
		Platform:    common.HexToAddress(row.Platform),
	})
	st.Price = row.Price.Uint256()
	st.Deposit = row.Deposit.Uint256()
	st.TimeLastCollected = row.TimeLastCollected
	st.TimeAcquired = row.TimeAcquired
	st.CurrentCollected = row.CurrentCollected.Uint256()
	st.TotalCollected = row.TotalCollected.Uint256()
	st.Patron = common.HexToAddress(row.Patron)

	var funds []domain.PullFund
	if err := tx.Find(&funds).Error; err != nil {
		return nil, err
	}
	for _, f := range funds {
		st.PullFunds.Set(common.HexToAddress(f.Address), f.Balance.Uint256())
	}

	var patrons []domain.Patron
	if err := tx.Order("position asc").Find(&patrons).Error; err != nil {
		return nil, err
	}
	for _, p := range patrons {
		addr := common.HexToAddress(p.Address)
		st.Patrons.Add(addr)
		st.TimeHeld[addr] = p.TimeHeld
	}
	return st, nil
}

// saveState writes st back. Ledger entries and patrons are upserted, never
// deleted.
func saveState(tx *gorm.DB, st *engine.State, rates engine.Rates) error {
	row := stewardRow(st, rates)
	if err := tx.Model(&domain.Steward{}).Where("id = ?", domain.StewardRowID).
		Select("*").Omit("id", "createdAt").Updates(&row).Error; err != nil {
		return err
	}

	for _, addr := range st.PullFunds.Addresses() {
		fund := domain.PullFund{Address: addr.Hex(), Balance: domain.NewWei(st.PullFunds.Balance(addr))}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updatedAt"}),
		}).Create(&fund).Error; err != nil {
			return err
		}
	}

	for i, addr := range st.Patrons.Members() {
		p := domain.Patron{Address: addr.Hex(), Position: i, TimeHeld: st.TimeHeldBy(addr)}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"time_held", "updatedAt"}),
		}).Create(&p).Error; err != nil {
			return err
		}
	}
	return nil
}

func stewardRow(st *engine.State, rates engine.Rates) domain.Steward {
	return domain.Steward{
		ID:                 domain.StewardRowID,
		SelfAddress:        st.Self.Hex(),
		Price:              domain.NewWei(st.Price),
		InitialPrice:       domain.NewWei(st.InitialPrice),
		Deposit:            domain.NewWei(st.Deposit),
		TimeLastCollected:  st.TimeLastCollected,
		TimeAcquired:       st.TimeAcquired,
		CurrentCollected:   domain.NewWei(st.CurrentCollected),
		TotalCollected:     domain.NewWei(st.TotalCollected),
		Patron:             st.Patron.Hex(),
		Artist:             st.Roles.Artist.Hex(),
		Beneficiary:        st.Roles.Beneficiary.Hex(),
		Platform:           st.Roles.Platform.Hex(),
		PatronageNumerator: rates.PatronageNumerator,
	}
}
