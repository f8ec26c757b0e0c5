// Package steward implements Harberger-tax custody of a single asset: a
// patron self-assesses a price, pays patronage on it continuously out of a
// deposit, can be bought out at that price at any time, and is foreclosed
// when the deposit runs out.
//
// The engine is pure. Operations mutate a *State, stage outbound actions as
// Effects and return Events; the caller persists the state and applies the
// effects atomically. A failed operation leaves the state untouched.
package steward

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var errNilRates = errors.New("steward: rates not configured")

// Engine applies the patronage, foreclosure and trade rules of a rate table.
type Engine struct {
	rates *Rates
}

// NewEngine returns an engine bound to rates.
func NewEngine(rates *Rates) (*Engine, error) {
	if rates == nil {
		return nil, errNilRates
	}
	return &Engine{rates: rates}, nil
}

// Rates returns the engine's rate table.
func (e *Engine) Rates() Rates { return *e.rates }

// txn is the working copy of one operation.
type txn struct {
	st  *State
	out *Outcome
}

func (t *txn) transferCustody(from, to common.Address) {
	t.out.Effects = append(t.out.Effects, Effect{Kind: EffectCustodyTransfer, From: from, To: to})
}

func (t *txn) charge(from common.Address, amount *uint256.Int) {
	t.out.Effects = append(t.out.Effects, Effect{Kind: EffectCharge, From: from, Amount: amount.Clone()})
}

func (t *txn) emit(evt Event) {
	t.out.Events = append(t.out.Events, evt)
}

// mutate runs fn on a clone of st and swaps it in only on success.
func (e *Engine) mutate(st *State, fn func(t *txn) error) (*Outcome, error) {
	work := st.Clone()
	t := &txn{st: work, out: &Outcome{}}
	if err := fn(t); err != nil {
		return nil, err
	}
	*st = *work
	return t.out, nil
}

// clampNow never lets settlement run backwards when the caller's clock lags
// the last collection.
func clampNow(st *State, now int64) int64 {
	if now < st.TimeLastCollected {
		return st.TimeLastCollected
	}
	return now
}

func (st *State) isPatron(addr common.Address) bool {
	return st.Status() == StatusOwned && st.Patron == addr
}
