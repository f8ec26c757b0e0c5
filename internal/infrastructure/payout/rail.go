// Package payout is the database-backed payment rail. Every address holds a
// spendable balance: callers are charged the wei they attach to a purchase
// or deposit, and payouts credit the recipient. A blocked recipient refuses
// payment the way a contract without a payable fallback would.
package payout

import (
	"context"
	"errors"
	"fmt"

	"steward-backend/internal/domain"
	engine "steward-backend/internal/steward"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRecipientBlocked = errors.New("recipient refuses payment")
	errTotalOverflow    = errors.New("payout: total overflows")
)

// Rail moves wei between accounts and the steward. DB may be a transaction
// handle, in which case a rolled back transaction also rolls back the
// payment.
type Rail struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Rail {
	return &Rail{DB: db}
}

func addTo(w domain.Wei, amount *uint256.Int) (domain.Wei, error) {
	total := w.Uint256()
	if _, overflow := total.AddOverflow(total, amount); overflow {
		return w, errTotalOverflow
	}
	return domain.NewWei(total), nil
}

// Fund credits wei that arrived from outside the rail, e.g. a confirmed
// on-chain transfer to the steward's address.
func (r *Rail) Fund(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	rec, err := r.recipient(ctx, addr, true)
	if err != nil {
		return err
	}
	if rec.Balance, err = addTo(rec.Balance, amount); err != nil {
		return err
	}
	return r.save(ctx, rec)
}

// Charge debits amount from's balance. A short balance returns an error
// wrapping steward.ErrInsufficientFunds and changes nothing.
func (r *Rail) Charge(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	rec, err := r.recipient(ctx, from, true)
	if err != nil {
		return err
	}
	bal := rec.Balance.Uint256()
	if bal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, need %s", engine.ErrInsufficientFunds, bal.Dec(), amount.Dec())
	}
	rec.Balance = domain.NewWei(bal.Sub(bal, amount))
	if rec.Charged, err = addTo(rec.Charged, amount); err != nil {
		return err
	}
	return r.save(ctx, rec)
}

// Send pays amount to the recipient's balance and received total.
func (r *Rail) Send(ctx context.Context, to common.Address, amount *uint256.Int) error {
	rec, err := r.recipient(ctx, to, true)
	if err != nil {
		return err
	}
	if rec.Blocked {
		return ErrRecipientBlocked
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	if rec.Balance, err = addTo(rec.Balance, amount); err != nil {
		return err
	}
	if rec.Received, err = addTo(rec.Received, amount); err != nil {
		return err
	}
	return r.save(ctx, rec)
}

// Account returns addr's row; an address never seen has a zero account.
func (r *Rail) Account(ctx context.Context, addr common.Address) (*domain.Recipient, error) {
	return r.recipient(ctx, addr, false)
}

// Balance returns what addr can spend.
func (r *Rail) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	rec, err := r.recipient(ctx, addr, false)
	if err != nil {
		return nil, err
	}
	return rec.Balance.Uint256(), nil
}

// Received returns what addr was paid so far.
func (r *Rail) Received(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	rec, err := r.recipient(ctx, addr, false)
	if err != nil {
		return nil, err
	}
	return rec.Received.Uint256(), nil
}

// SetBlocked toggles whether addr refuses payments.
func (r *Rail) SetBlocked(ctx context.Context, addr common.Address, blocked bool) error {
	rec := domain.Recipient{Address: addr.Hex(), Blocked: blocked}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"blocked", "updatedAt"}),
	}).Create(&rec).Error
}

func (r *Rail) save(ctx context.Context, rec *domain.Recipient) error {
	return r.DB.WithContext(ctx).Save(rec).Error
}

// recipient loads addr's row, locking it when it is about to change. A
// missing row is a zero account, not an error.
func (r *Rail) recipient(ctx context.Context, addr common.Address, lock bool) (*domain.Recipient, error) {
	q := r.DB.WithContext(ctx).Where("address = ?", addr.Hex())
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []domain.Recipient
	res := q.Limit(1).Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.Recipient{Address: addr.Hex()}, nil
	}
	return &rows[0], nil
}
