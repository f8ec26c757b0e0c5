package steward

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Buy purchases the asset for buyer. currentPrice must match the declared
// price when the asset is owned, so a patron cannot raise the price under a
// pending purchase. payment beyond the sale price becomes the new deposit.
func (e *Engine) Buy(st *State, buyer common.Address, newPrice, currentPrice, payment *uint256.Int, now int64) (*Outcome, error) {
	if payment == nil || payment.IsZero() {
		return nil, ErrPaymentZero
	}
	if newPrice == nil || newPrice.IsZero() {
		return nil, ErrPriceZero
	}
	if buyer == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	return e.mutate(st, func(t *txn) error {
		t.charge(buyer, payment)
		if err := e.collect(t, now); err != nil {
			return err
		}
		s := t.st
		now = clampNow(s, now)
		resale := s.Status() == StatusOwned

		salePrice := s.InitialPrice.Clone()
		if resale {
			if currentPrice == nil || !currentPrice.Eq(s.Price) {
				return ErrStalePrice
			}
			salePrice = s.Price.Clone()
		}
		if payment.Lt(salePrice) {
			return ErrInsufficientPayment
		}

		prior := s.Patron
		if resale {
			owner, artist, platform, err := e.rates.Resale.split(salePrice)
			if err != nil {
				return err
			}
			owner.Add(owner, s.Deposit)
			s.PullFunds.Credit(prior, owner)
			s.PullFunds.Credit(s.Roles.Artist, artist)
			s.PullFunds.Credit(s.Roles.Platform, platform)
			s.TimeHeld[prior] += s.TimeLastCollected - s.TimeAcquired
		} else {
			_, artist, platform, err := e.rates.InitialSale.split(salePrice)
			if err != nil {
				return err
			}
			s.PullFunds.Credit(s.Roles.Artist, artist)
			s.PullFunds.Credit(s.Roles.Platform, platform)
		}

		s.Deposit = new(uint256.Int).Sub(payment, salePrice)
		s.Price = newPrice.Clone()
		s.Patron = buyer
		s.TimeAcquired = now
		s.TimeLastCollected = now
		s.CurrentCollected = new(uint256.Int)
		s.Patrons.Add(buyer)

		t.transferCustody(prior, buyer)
		t.emit(NewBuyEvent(buyer, newPrice, now))
		return nil
	})
}

// ChangePrice lets the patron re-declare the price.
func (e *Engine) ChangePrice(st *State, caller common.Address, newPrice *uint256.Int, now int64) (*Outcome, error) {
	return e.mutate(st, func(t *txn) error {
		if err := e.collect(t, now); err != nil {
			return err
		}
		s := t.st
		if !s.isPatron(caller) {
			return ErrNotPatron
		}
		if newPrice == nil || newPrice.IsZero() {
			return ErrPriceZero
		}
		s.Price = newPrice.Clone()
		t.emit(NewPriceChangeEvent(newPrice, clampNow(s, now)))
		return nil
	})
}

// ChangeInitialPrice sets the floor of the next sale out of foreclosure.
// It does not touch the live tenure, so nothing is settled.
func (e *Engine) ChangeInitialPrice(st *State, caller common.Address, newPrice *uint256.Int) (*Outcome, error) {
	return e.mutate(st, func(t *txn) error {
		if caller != t.st.Roles.Artist {
			return ErrNotArtist
		}
		if newPrice == nil {
			newPrice = new(uint256.Int)
		}
		t.st.InitialPrice = newPrice.Clone()
		return nil
	})
}

// DepositWei tops up the patron's deposit.
func (e *Engine) DepositWei(st *State, caller common.Address, amount *uint256.Int, now int64) (*Outcome, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrPaymentZero
	}
	return e.mutate(st, func(t *txn) error {
		if err := e.collect(t, now); err != nil {
			return err
		}
		s := t.st
		if !s.isPatron(caller) {
			return ErrNotPatron
		}
		if _, overflow := s.Deposit.AddOverflow(s.Deposit, amount); overflow {
			return ErrOverflow
		}
		t.charge(caller, amount)
		return nil
	})
}

// WithdrawDeposit pays part of the deposit straight back to the patron.
func (e *Engine) WithdrawDeposit(st *State, caller common.Address, amount *uint256.Int, now int64) (*Outcome, error) {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return e.mutate(st, func(t *txn) error {
		if err := e.collect(t, now); err != nil {
			return err
		}
		return e.withdrawDeposit(t, caller, amount)
	})
}

// Exit withdraws the whole remaining deposit. Title stays with the patron
// until the next settlement observes the empty deposit and forecloses.
func (e *Engine) Exit(st *State, caller common.Address, now int64) (*Outcome, error) {
	return e.mutate(st, func(t *txn) error {
		if err := e.collect(t, now); err != nil {
			return err
		}
		return e.withdrawDeposit(t, caller, t.st.Deposit.Clone())
	})
}

func (e *Engine) withdrawDeposit(t *txn, caller common.Address, amount *uint256.Int) error {
	s := t.st
	if !s.isPatron(caller) {
		return ErrNotPatron
	}
	if amount.Gt(s.Deposit) {
		return ErrWithdrawTooMuch
	}
	s.Deposit.Sub(s.Deposit, amount)
	if !amount.IsZero() {
		t.out.Effects = append(t.out.Effects, Effect{
			Kind:   EffectDirectPayment,
			From:   s.Self,
			To:     caller,
			Amount: amount.Clone(),
		})
	}
	return nil
}

// WithdrawPullFunds pays out the caller's ledger balance. The entry is
// zeroed before the payment effect is staged; the host restores it by
// discarding the operation if the payment fails.
func (e *Engine) WithdrawPullFunds(st *State, caller common.Address) (*Outcome, error) {
	return e.mutate(st, func(t *txn) error {
		s := t.st
		if s.PullFunds.Balance(caller).IsZero() {
			return ErrNoPullFunds
		}
		amount := s.PullFunds.take(caller)
		t.out.Effects = append(t.out.Effects, Effect{
			Kind:   EffectPullWithdrawal,
			From:   s.Self,
			To:     caller,
			Amount: amount,
		})
		return nil
	})
}
