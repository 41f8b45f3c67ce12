package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/brickfolio/internal/domain"
)

func TestAtomicRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.Wallets().Create(ctx, domain.NewWallet("user-1")))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
		w, err := tx.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		require.NoError(t, w.Credit(decimal.NewFromInt(500)))
		require.NoError(t, tx.Wallets().Update(ctx, w))

		require.NoError(t, tx.Properties().Create(ctx, domain.Property{ID: "prop-1", TotalTokens: 10, AvailableTokens: 10}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the wallet credit nor the property creation is visible.
	w, err := s.Wallets().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	_, err = s.Properties().Get(ctx, "prop-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.Wallets().Create(ctx, domain.NewWallet("user-1")))

	err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
		w, err := tx.Wallets().Get(ctx, "user-1")
		if err != nil {
			return err
		}
		if err := w.Credit(decimal.NewFromInt(500)); err != nil {
			return err
		}
		return tx.Wallets().Update(ctx, w)
	})
	require.NoError(t, err)

	w, err := s.Wallets().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(2), w.Version)
}

func TestVersionCompareAndSwap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.Wallets().Create(ctx, domain.NewWallet("user-1")))

	// Two readers take the same snapshot.
	first, err := s.Wallets().Get(ctx, "user-1")
	require.NoError(t, err)
	second := first

	require.NoError(t, first.Credit(decimal.NewFromInt(10)))
	require.NoError(t, s.Wallets().Update(ctx, first))

	// The second writer carries a stale version and must be rejected.
	require.NoError(t, second.Credit(decimal.NewFromInt(20)))
	err = s.Wallets().Update(ctx, second)
	assert.ErrorIs(t, err, domain.ErrConflict)

	w, err := s.Wallets().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10)))
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.Wallets().Create(ctx, domain.NewWallet("user-1")))
	assert.ErrorIs(t, s.Wallets().Create(ctx, domain.NewWallet("user-1")), domain.ErrConflict)
}

func TestUpdateStatusEnforcesExpectation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	entry := domain.Transaction{
		ID:     "tx-1",
		UserID: "user-1",
		Type:   domain.TransactionTypeDeposit,
		Amount: decimal.NewFromInt(100),
		Status: domain.TransactionStatusPending,
	}
	require.NoError(t, s.Transactions().Create(ctx, entry))

	now := time.Now().UTC()
	require.NoError(t, s.Transactions().UpdateStatus(ctx, "tx-1",
		domain.TransactionStatusPending, domain.TransactionStatusCompleted, &now))

	// A second identical update finds the entry no longer pending.
	err := s.Transactions().UpdateStatus(ctx, "tx-1",
		domain.TransactionStatusPending, domain.TransactionStatusCompleted, &now)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := s.Transactions().Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Illegal FSM edges are rejected even with a matching expectation.
	err = s.Transactions().UpdateStatus(ctx, "tx-1",
		domain.TransactionStatusCompleted, domain.TransactionStatusPending, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAnchorHashUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	for _, id := range []string{"tx-1", "tx-2"} {
		require.NoError(t, s.Transactions().Create(ctx, domain.Transaction{
			ID:     id,
			UserID: "user-1",
			Type:   domain.TransactionTypeDeposit,
			Amount: decimal.NewFromInt(1),
			Status: domain.TransactionStatusPending,
		}))
	}

	require.NoError(t, s.Transactions().AttachHash(ctx, "tx-1", "0xabc"))

	// Re-attaching the same hash to its owner is idempotent.
	require.NoError(t, s.Transactions().AttachHash(ctx, "tx-1", "0xabc"))

	// A different entry may not claim the hash.
	err := s.Transactions().AttachHash(ctx, "tx-2", "0xabc")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestListByUserFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		user := "user-1"
		if id == "c" {
			user = "user-2"
		}
		require.NoError(t, s.Transactions().Create(ctx, domain.Transaction{
			ID:        id,
			UserID:    user,
			Type:      domain.TransactionTypeDeposit,
			Amount:    decimal.NewFromInt(1),
			Status:    domain.TransactionStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	txs, err := s.Transactions().ListByUser(ctx, "user-1", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "a", txs[0].ID)

	txs, err = s.Transactions().ListByUser(ctx, "user-1", domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "b", txs[0].ID)

	since := base.Add(90 * time.Minute)
	txs, err = s.Transactions().ListByUser(ctx, "user-1", domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "d", txs[0].ID)
}

func TestGetReturnsIsolatedCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.Investments().Create(ctx, domain.Investment{
		ID:         "inv-1",
		UserID:     "user-1",
		PropertyID: "prop-1",
		Status:     domain.InvestmentStatusActive,
		SellOrders: []domain.SellOrder{{ID: "o1", Quantity: 5, Status: domain.SellOrderStatusOpen}},
	}))

	got, err := s.Investments().Get(ctx, "inv-1")
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	got.SellOrders[0].Status = domain.SellOrderStatusCancelled

	again, err := s.Investments().Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SellOrderStatusOpen, again.SellOrders[0].Status)
}
