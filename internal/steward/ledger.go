package steward

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger is the pull-payment ledger: wei credited to an address that the
// address later claims itself. Entries only grow, except when the owning
// address withdraws.
type Ledger struct {
	balances map[common.Address]*uint256.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]*uint256.Int)}
}

// Credit adds amount to addr. Zero credits leave no entry behind.
func (l *Ledger) Credit(addr common.Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	if l.balances == nil {
		l.balances = make(map[common.Address]*uint256.Int)
	}
	cur, ok := l.balances[addr]
	if !ok {
		l.balances[addr] = amount.Clone()
		return
	}
	cur.Add(cur, amount)
}

// Balance returns a copy of the withdrawable amount of addr.
func (l *Ledger) Balance(addr common.Address) *uint256.Int {
	if cur, ok := l.balances[addr]; ok {
		return cur.Clone()
	}
	return new(uint256.Int)
}

// Set overwrites the balance of addr. It is meant for loading persisted
// entries, not for engine bookkeeping.
func (l *Ledger) Set(addr common.Address, amount *uint256.Int) {
	if l.balances == nil {
		l.balances = make(map[common.Address]*uint256.Int)
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	l.balances[addr] = amount.Clone()
}

// take zeroes addr and returns what it held. The zeroed entry is kept so
// persistence layers see the write.
func (l *Ledger) take(addr common.Address) *uint256.Int {
	amount := l.Balance(addr)
	if l.balances == nil {
		l.balances = make(map[common.Address]*uint256.Int)
	}
	l.balances[addr] = new(uint256.Int)
	return amount
}

// Addresses lists every address with an entry, sorted for stable output.
func (l *Ledger) Addresses() []common.Address {
	out := make([]common.Address, 0, len(l.balances))
	for addr := range l.balances {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// Total sums every entry.
func (l *Ledger) Total() *uint256.Int {
	total := new(uint256.Int)
	for _, v := range l.balances {
		total.Add(total, v)
	}
	return total
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	out := NewLedger()
	if l == nil {
		return out
	}
	for addr, v := range l.balances {
		out.balances[addr] = v.Clone()
	}
	return out
}
