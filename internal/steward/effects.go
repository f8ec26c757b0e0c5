package steward

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EffectKind names an outbound action an operation asks its host to perform.
type EffectKind uint8

const (
	// EffectCustodyTransfer moves the asset between From and To.
	EffectCustodyTransfer EffectKind = iota + 1
	// EffectDirectPayment pays the active patron from its own deposit.
	EffectDirectPayment
	// EffectPullWithdrawal pays out a ledger balance that was already zeroed.
	EffectPullWithdrawal
	// EffectCharge takes the wei a caller attached to the call (payment or
	// deposit top-up) from From. It is staged before anything else.
	EffectCharge
)

func (k EffectKind) String() string {
	switch k {
	case EffectCustodyTransfer:
		return "custody_transfer"
	case EffectDirectPayment:
		return "direct_payment"
	case EffectPullWithdrawal:
		return "pull_withdrawal"
	case EffectCharge:
		return "charge"
	default:
		return "unknown"
	}
}

// Effect is one staged outbound action.
type Effect struct {
	Kind   EffectKind
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Outcome carries what a successful operation staged, in order.
type Outcome struct {
	Effects []Effect
	Events  []Event
}

// HasEvent reports whether an event of the given type was emitted.
func (o *Outcome) HasEvent(eventType string) bool {
	if o == nil {
		return false
	}
	for _, evt := range o.Events {
		if evt.Type == eventType {
			return true
		}
	}
	return false
}

// Custody is the asset-identity collaborator. Implementations must refuse
// transfers not initiated by the steward.
type Custody interface {
	Transfer(ctx context.Context, from, to common.Address) error
	OwnerOf(ctx context.Context) (common.Address, error)
}

// PaymentRail moves wei between callers and the steward. Charge must fail
// with an error wrapping ErrInsufficientFunds when from cannot cover amount.
type PaymentRail interface {
	Charge(ctx context.Context, from common.Address, amount *uint256.Int) error
	Send(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// Apply performs the staged effects in order and stops at the first
// failure. Callers run it inside the same transaction that persists the
// state so a failure discards the whole operation.
func Apply(ctx context.Context, effects []Effect, custody Custody, rail PaymentRail) error {
	for _, eff := range effects {
		switch eff.Kind {
		case EffectCharge:
			if err := rail.Charge(ctx, eff.From, eff.Amount); err != nil {
				return fmt.Errorf("charge %s: %w", eff.From.Hex(), err)
			}
		case EffectCustodyTransfer:
			if err := custody.Transfer(ctx, eff.From, eff.To); err != nil {
				return fmt.Errorf("custody transfer %s -> %s: %w", eff.From.Hex(), eff.To.Hex(), err)
			}
		case EffectDirectPayment:
			if err := rail.Send(ctx, eff.To, eff.Amount); err != nil {
				return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
			}
		case EffectPullWithdrawal:
			if err := rail.Send(ctx, eff.To, eff.Amount); err != nil {
				return fmt.Errorf("%w: %v", ErrTransferBlocked, err)
			}
		default:
			return fmt.Errorf("steward: unknown effect kind %d", eff.Kind)
		}
	}
	return nil
}
