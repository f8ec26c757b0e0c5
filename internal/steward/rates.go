package steward

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// Denominator is the shared fixed-point base of every rate numerator.
	Denominator uint64 = 1_000_000_000_000

	// Year is the accrual period of the patronage rate, in seconds (365 days).
	Year uint64 = 31_536_000

	// patronagePctScale turns a whole percentage into a numerator over Denominator.
	patronagePctScale uint64 = 10_000_000_000
)

var errSharesMismatch = errors.New("steward: sale shares must sum to the denominator")

// SaleShares holds the numerators of one sale type. Owner is zero for
// initial sales since there is no prior owner to pay.
type SaleShares struct {
	Owner    uint64
	Artist   uint64
	Platform uint64
}

func (s SaleShares) sum() uint64 {
	return s.Owner + s.Artist + s.Platform
}

// Rates is the immutable fee table of a steward.
type Rates struct {
	PatronageNumerator uint64
	InitialSale        SaleShares
	Resale             SaleShares
}

// DefaultInitialSale splits a first sale 50/50 between artist and platform.
var DefaultInitialSale = SaleShares{Artist: 500_000_000_000, Platform: 500_000_000_000}

// DefaultResale pays 90% to the prior owner, 5% to the artist and 5% to the platform.
var DefaultResale = SaleShares{Owner: 900_000_000_000, Artist: 50_000_000_000, Platform: 50_000_000_000}

// NewRates validates a rate table. Each sale type must allocate exactly the
// denominator so no sale silently over- or under-distributes.
func NewRates(patronageNumerator uint64, initial, resale SaleShares) (*Rates, error) {
	if patronageNumerator == 0 {
		return nil, fmt.Errorf("steward: patronage rate must be positive")
	}
	if initial.Owner != 0 {
		return nil, fmt.Errorf("steward: initial sale cannot pay a prior owner")
	}
	if initial.sum() != Denominator {
		return nil, fmt.Errorf("%w: initial sale sums to %d", errSharesMismatch, initial.sum())
	}
	if resale.sum() != Denominator {
		return nil, fmt.Errorf("%w: resale sums to %d", errSharesMismatch, resale.sum())
	}
	return &Rates{
		PatronageNumerator: patronageNumerator,
		InitialSale:        initial,
		Resale:             resale,
	}, nil
}

// DefaultRates returns the deployed rate table for a yearly patronage
// percentage (5 => 5% of the price per year).
func DefaultRates(patronagePct uint64) (*Rates, error) {
	if patronagePct == 0 || patronagePct > 100 {
		return nil, fmt.Errorf("steward: patronage pct %d out of range", patronagePct)
	}
	return NewRates(patronagePct*patronagePctScale, DefaultInitialSale, DefaultResale)
}

// split divides amount by the shares, truncating each part independently.
func (s SaleShares) split(amount *uint256.Int) (owner, artist, platform *uint256.Int, err error) {
	if owner, err = share(amount, s.Owner); err != nil {
		return nil, nil, nil, err
	}
	if artist, err = share(amount, s.Artist); err != nil {
		return nil, nil, nil, err
	}
	if platform, err = share(amount, s.Platform); err != nil {
		return nil, nil, nil, err
	}
	return owner, artist, platform, nil
}

func share(amount *uint256.Int, numerator uint64) (*uint256.Int, error) {
	if numerator == 0 || amount.IsZero() {
		return new(uint256.Int), nil
	}
	out, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(numerator))
	if overflow {
		return nil, ErrOverflow
	}
	return out.Div(out, uint256.NewInt(Denominator)), nil
}
