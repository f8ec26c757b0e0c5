package steward

import (
	"github.com/holiman/uint256"
)

// PatronageOwed returns the patronage accrued since the last collection and
// the timestamp it was evaluated at:
//
//	price * (now - timeLastCollected) * patronageNumerator / Denominator / Year
//
// with each division truncating in that order.
func (e *Engine) PatronageOwed(st *State, now int64) (*uint256.Int, int64, error) {
	now = clampNow(st, now)
	due, err := e.owed(st, now)
	if err != nil {
		return nil, now, err
	}
	return due, now, nil
}

func (e *Engine) owed(st *State, now int64) (*uint256.Int, error) {
	if st.Status() != StatusOwned || now <= st.TimeLastCollected {
		return new(uint256.Int), nil
	}
	elapsed := uint256.NewInt(uint64(now - st.TimeLastCollected))
	due, overflow := new(uint256.Int).MulOverflow(st.Price, elapsed)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = due.MulOverflow(due, uint256.NewInt(e.rates.PatronageNumerator)); overflow {
		return nil, ErrOverflow
	}
	due.Div(due, uint256.NewInt(Denominator))
	due.Div(due, uint256.NewInt(Year))
	return due, nil
}

// Collect settles outstanding patronage and forecloses when the deposit
// cannot cover it. Anyone may call it; it is a no-op while foreclosed.
func (e *Engine) Collect(st *State, now int64) (*Outcome, error) {
	return e.mutate(st, func(t *txn) error {
		return e.collect(t, now)
	})
}

// collect is the settlement step every mutating operation runs first.
func (e *Engine) collect(t *txn, now int64) error {
	st := t.st
	if st.Status() != StatusOwned {
		return nil
	}
	now = clampNow(st, now)
	due, err := e.owed(st, now)
	if err != nil {
		return err
	}
	if due.Cmp(st.Deposit) >= 0 {
		return e.foreclose(t, now, due)
	}
	st.Deposit.Sub(st.Deposit, due)
	st.PullFunds.Credit(st.Roles.Beneficiary, due)
	st.TimeLastCollected = now
	st.CurrentCollected.Add(st.CurrentCollected, due)
	st.TotalCollected.Add(st.TotalCollected, due)
	return nil
}
