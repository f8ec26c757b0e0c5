package steward

import "github.com/ethereum/go-ethereum/common"

// ChangeArtistTo hands the artist role to next. Only the current artist may call it.
func (e *Engine) ChangeArtistTo(st *State, caller, next common.Address) (*Outcome, error) {
	return e.changeRole(st, caller, next, ErrNotArtist, func(r *Roles) *common.Address { return &r.Artist })
}

// ChangeBeneficiaryTo hands the patronage beneficiary role to next.
// Credits already in the ledger stay with the previous beneficiary.
func (e *Engine) ChangeBeneficiaryTo(st *State, caller, next common.Address) (*Outcome, error) {
	return e.changeRole(st, caller, next, ErrNotBeneficiary, func(r *Roles) *common.Address { return &r.Beneficiary })
}

// ChangePlatformTo hands the platform role to next.
func (e *Engine) ChangePlatformTo(st *State, caller, next common.Address) (*Outcome, error) {
	return e.changeRole(st, caller, next, ErrNotPlatform, func(r *Roles) *common.Address { return &r.Platform })
}

func (e *Engine) changeRole(st *State, caller, next common.Address, denied error, field func(*Roles) *common.Address) (*Outcome, error) {
	return e.mutate(st, func(t *txn) error {
		holder := field(&t.st.Roles)
		if caller != *holder {
			return denied
		}
		if next == (common.Address{}) {
			return ErrZeroAddress
		}
		*holder = next
		return nil
	})
}
