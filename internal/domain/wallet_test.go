package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	t.Parallel()

	w := NewWallet("user-1")
	assert.Equal(t, "user-1", w.UserID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.TotalInvested.IsZero())
	assert.False(t, w.UpdatedAt.IsZero())
}

func TestWalletDebit(t *testing.T) {
	t.Parallel()

	w := NewWallet("user-1")
	require.NoError(t, w.Credit(decimal.NewFromInt(100)))

	t.Run("within balance", func(t *testing.T) {
		w := w
		require.NoError(t, w.Debit(decimal.NewFromInt(40)))
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(60)))
	})

	t.Run("exact balance", func(t *testing.T) {
		w := w
		require.NoError(t, w.Debit(decimal.NewFromInt(100)))
		assert.True(t, w.Balance.IsZero())
	})

	t.Run("overdraft rejected", func(t *testing.T) {
		w := w
		err := w.Debit(decimal.NewFromInt(101))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		// Balance untouched on failure.
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("non-positive rejected", func(t *testing.T) {
		w := w
		assert.ErrorIs(t, w.Debit(decimal.Zero), ErrValidation)
		assert.ErrorIs(t, w.Debit(decimal.NewFromInt(-5)), ErrValidation)
	})
}

func TestWalletCredit(t *testing.T) {
	t.Parallel()

	w := NewWallet("user-1")
	require.NoError(t, w.Credit(decimal.RequireFromString("0.01")))
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("0.01")))

	assert.ErrorIs(t, w.Credit(decimal.Zero), ErrValidation)
	assert.ErrorIs(t, w.Credit(decimal.NewFromInt(-1)), ErrValidation)
}

func TestWalletCanDebit(t *testing.T) {
	t.Parallel()

	w := NewWallet("user-1")
	require.NoError(t, w.Credit(decimal.NewFromInt(50)))

	assert.True(t, w.CanDebit(decimal.NewFromInt(50)))
	assert.True(t, w.CanDebit(decimal.NewFromInt(1)))
	assert.False(t, w.CanDebit(decimal.RequireFromString("50.01")))
}
