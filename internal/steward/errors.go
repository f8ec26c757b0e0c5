package steward

import "errors"

// Kind groups engine errors by how a caller is expected to react.
type Kind uint8

const (
	// KindInternal covers arithmetic and collaborator failures.
	KindInternal Kind = iota
	// KindAuthorization means the caller lacks the required role.
	KindAuthorization
	// KindValue means an argument violates a precondition.
	KindValue
	// KindStaleState means the caller must re-read state and retry.
	KindStaleState
	// KindTransferBlocked is the only transient kind: the same call may succeed later.
	KindTransferBlocked
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValue:
		return "value"
	case KindStaleState:
		return "stale_state"
	case KindTransferBlocked:
		return "transfer_blocked"
	default:
		return "internal"
	}
}

var (
	ErrNotPatron      = errors.New("Not patron")
	ErrNotArtist      = errors.New("Not artist")
	ErrNotBeneficiary = errors.New("Not beneficiary")
	ErrNotPlatform    = errors.New("Not platform")

	ErrPriceZero           = errors.New("Price is zero")
	ErrPaymentZero         = errors.New("Payment is zero")
	ErrInsufficientPayment = errors.New("Not enough funds to buy")
	ErrInsufficientFunds   = errors.New("Insufficient funds")
	ErrWithdrawTooMuch     = errors.New("Withdrawing too much")
	ErrNoPullFunds         = errors.New("No funds to withdraw")
	ErrZeroAddress         = errors.New("Address is zero")

	ErrStalePrice = errors.New("Current Price incorrect")

	ErrTransferBlocked = errors.New("Transfer blocked")

	ErrOverflow      = errors.New("steward: arithmetic overflow")
	ErrPaymentFailed = errors.New("steward: direct payment failed")
)

var errorKinds = map[error]Kind{
	ErrNotPatron:           KindAuthorization,
	ErrNotArtist:           KindAuthorization,
	ErrNotBeneficiary:      KindAuthorization,
	ErrNotPlatform:         KindAuthorization,
	ErrPriceZero:           KindValue,
	ErrPaymentZero:         KindValue,
	ErrInsufficientPayment: KindValue,
	ErrInsufficientFunds:   KindValue,
	ErrWithdrawTooMuch:     KindValue,
	ErrNoPullFunds:         KindValue,
	ErrZeroAddress:         KindValue,
	ErrStalePrice:          KindStaleState,
	ErrTransferBlocked:     KindTransferBlocked,
}

// KindOf classifies err, unwrapping as needed. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
