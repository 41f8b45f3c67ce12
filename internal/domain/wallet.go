package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a user's cash account. Balance never goes negative; both fields
// are mutated only through ledger operations, never directly.
type Wallet struct {
	UserID        string
	Balance       decimal.Decimal
	TotalInvested decimal.Decimal
	UpdatedAt     time.Time

	// Version supports optimistic concurrency: stores reject an update whose
	// Version does not match the persisted record.
	Version int64
}

// NewWallet creates an empty wallet for the given user.
func NewWallet(userID string) Wallet {
	return Wallet{
		UserID:        userID,
		Balance:       decimal.Zero,
		TotalInvested: decimal.Zero,
		UpdatedAt:     time.Now().UTC(),
	}
}

// CanDebit reports whether the wallet holds at least amount.
func (w Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// Debit removes amount from the balance. It returns ErrInsufficientFunds when
// the balance would go negative and ErrValidation for non-positive amounts.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrValidation
	}
	if !w.CanDebit(amount) {
		return ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

// Credit adds amount to the balance. Non-positive amounts are rejected with
// ErrValidation.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrValidation
	}
	w.Balance = w.Balance.Add(amount)
	return nil
}
