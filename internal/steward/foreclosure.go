package steward

import (
	"math"

	"github.com/holiman/uint256"
)

// foreclose ends the current tenure. The beneficiary gets the whole deposit
// and the settlement boundary moves only as far as that deposit paid for.
func (e *Engine) foreclose(t *txn, now int64, due *uint256.Int) error {
	st := t.st
	if !due.IsZero() {
		boundary, err := fundedUntil(st, now, due)
		if err != nil {
			return err
		}
		st.TimeLastCollected = boundary
	}
	former := st.Patron

	st.PullFunds.Credit(st.Roles.Beneficiary, st.Deposit)
	st.TotalCollected.Add(st.TotalCollected, st.Deposit)
	st.Deposit = new(uint256.Int)
	st.Price = new(uint256.Int)
	st.CurrentCollected = new(uint256.Int)
	st.TimeHeld[former] += st.TimeLastCollected - st.TimeAcquired
	st.Patron = st.Self

	t.transferCustody(former, st.Self)
	t.emit(NewForeclosureEvent(former, st.TimeLastCollected, now))
	return nil
}

// fundedUntil is timeLastCollected + (now - timeLastCollected) * deposit / due.
func fundedUntil(st *State, now int64, due *uint256.Int) (int64, error) {
	elapsed := uint256.NewInt(uint64(now - st.TimeLastCollected))
	advance, overflow := new(uint256.Int).MulOverflow(elapsed, st.Deposit)
	if overflow {
		return 0, ErrOverflow
	}
	advance.Div(advance, due)
	// deposit <= due, so advance <= elapsed and fits in int64.
	return st.TimeLastCollected + int64(advance.Uint64()), nil
}

// Foreclosed reports whether the asset is unowned, or owned by a patron
// whose deposit no longer covers the accrued patronage at now.
func (e *Engine) Foreclosed(st *State, now int64) (bool, error) {
	if st.Status() != StatusOwned {
		return true, nil
	}
	due, err := e.owed(st, clampNow(st, now))
	if err != nil {
		return false, err
	}
	return due.Cmp(st.Deposit) >= 0, nil
}

// DepositAbleToWithdraw is the deposit left after settling up to now.
func (e *Engine) DepositAbleToWithdraw(st *State, now int64) (*uint256.Int, error) {
	due, err := e.owed(st, clampNow(st, now))
	if err != nil {
		return nil, err
	}
	if due.Cmp(st.Deposit) >= 0 {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(st.Deposit, due), nil
}

// ForeclosureTime projects when the deposit runs out:
//
//	timeLastCollected + deposit * Denominator * Year / (price * patronageNumerator)
//
// with a single truncating division. While foreclosed it's the last
// settlement boundary (zero before the first sale).
func (e *Engine) ForeclosureTime(st *State) (int64, error) {
	if st.Status() != StatusOwned {
		return st.TimeLastCollected, nil
	}
	funded, overflow := new(uint256.Int).MulOverflow(st.Deposit, uint256.NewInt(Denominator))
	if overflow {
		return 0, ErrOverflow
	}
	if _, overflow = funded.MulOverflow(funded, uint256.NewInt(Year)); overflow {
		return 0, ErrOverflow
	}
	rate, overflow := new(uint256.Int).MulOverflow(st.Price, uint256.NewInt(e.rates.PatronageNumerator))
	if overflow {
		return 0, ErrOverflow
	}
	secs := funded.Div(funded, rate)
	if !secs.IsUint64() || secs.Uint64() > uint64(math.MaxInt64-st.TimeLastCollected) {
		return 0, ErrOverflow
	}
	return st.TimeLastCollected + int64(secs.Uint64()), nil
}
