package steward

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Status is the externally observable ownership state.
type Status uint8

const (
	StatusForeclosed Status = iota
	StatusOwned
)

func (s Status) String() string {
	if s == StatusOwned {
		return "owned"
	}
	return "foreclosed"
}

// Roles holds the addresses entitled to revenue and role changes.
type Roles struct {
	Artist      common.Address
	Beneficiary common.Address
	Platform    common.Address
}

// PatronSet is the append-only set of every address that ever held the
// asset, in acquisition order.
type PatronSet struct {
	order []common.Address
	seen  map[common.Address]struct{}
}

// NewPatronSet returns an empty set.
func NewPatronSet() *PatronSet {
	return &PatronSet{seen: make(map[common.Address]struct{})}
}

// Add records addr and reports whether it was new.
func (p *PatronSet) Add(addr common.Address) bool {
	if p.seen == nil {
		p.seen = make(map[common.Address]struct{})
	}
	if _, ok := p.seen[addr]; ok {
		return false
	}
	p.seen[addr] = struct{}{}
	p.order = append(p.order, addr)
	return true
}

// Contains reports whether addr was ever a patron.
func (p *PatronSet) Contains(addr common.Address) bool {
	_, ok := p.seen[addr]
	return ok
}

// Members returns the patrons in acquisition order.
func (p *PatronSet) Members() []common.Address {
	return append([]common.Address(nil), p.order...)
}

func (p *PatronSet) Len() int { return len(p.order) }

// Clone returns a deep copy.
func (p *PatronSet) Clone() *PatronSet {
	out := NewPatronSet()
	if p == nil {
		return out
	}
	for _, addr := range p.order {
		out.Add(addr)
	}
	return out
}

// State is the whole engine state of one stewarded asset. Self is the
// engine's own identity: the patron of record while foreclosed.
type State struct {
	Self common.Address

	Price        *uint256.Int
	InitialPrice *uint256.Int
	Deposit      *uint256.Int

	TimeLastCollected int64
	TimeAcquired      int64

	CurrentCollected *uint256.Int
	TotalCollected   *uint256.Int

	Patron   common.Address
	Patrons  *PatronSet
	TimeHeld map[common.Address]int64

	Roles     Roles
	PullFunds *Ledger
}

// NewState returns the genesis state: foreclosed, no deposit, custody with self.
func NewState(self common.Address, initialPrice *uint256.Int, roles Roles) *State {
	if initialPrice == nil {
		initialPrice = new(uint256.Int)
	}
	return &State{
		Self:             self,
		Price:            new(uint256.Int),
		InitialPrice:     initialPrice.Clone(),
		Deposit:          new(uint256.Int),
		CurrentCollected: new(uint256.Int),
		TotalCollected:   new(uint256.Int),
		Patron:           self,
		Patrons:          NewPatronSet(),
		TimeHeld:         make(map[common.Address]int64),
		Roles:            roles,
		PullFunds:        NewLedger(),
	}
}

// Status reports Owned while a non-zero price is declared.
func (s *State) Status() Status {
	if s.Price != nil && !s.Price.IsZero() {
		return StatusOwned
	}
	return StatusForeclosed
}

// AskingPrice is what a buyer pays for the asset right now, ignoring
// pending settlement: the declared price, or the initial price while
// foreclosed.
func (s *State) AskingPrice() *uint256.Int {
	if s.Status() == StatusOwned {
		return s.Price.Clone()
	}
	return s.InitialPrice.Clone()
}

// TimeHeldBy returns the cumulative seconds addr held the asset over
// completed tenures.
func (s *State) TimeHeldBy(addr common.Address) int64 {
	return s.TimeHeld[addr]
}

// WasPatron reports whether addr ever held the asset.
func (s *State) WasPatron(addr common.Address) bool {
	return s.Patrons.Contains(addr)
}

// PullBalance returns the ledger balance of addr.
func (s *State) PullBalance(addr common.Address) *uint256.Int {
	return s.PullFunds.Balance(addr)
}

// Clone returns a deep copy so a failed operation can be discarded.
func (s *State) Clone() *State {
	out := *s
	out.Price = cloneInt(s.Price)
	out.InitialPrice = cloneInt(s.InitialPrice)
	out.Deposit = cloneInt(s.Deposit)
	out.CurrentCollected = cloneInt(s.CurrentCollected)
	out.TotalCollected = cloneInt(s.TotalCollected)
	out.Patrons = s.Patrons.Clone()
	out.TimeHeld = make(map[common.Address]int64, len(s.TimeHeld))
	for addr, held := range s.TimeHeld {
		out.TimeHeld[addr] = held
	}
	out.PullFunds = s.PullFunds.Clone()
	return &out
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
