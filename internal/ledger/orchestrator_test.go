package ledger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/brickfolio/internal/domain"
	"github.com/brickfolio/brickfolio/internal/store/memory"
)

var testClock = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, opts ...Option) (*Orchestrator, domain.LedgerStore) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.DiscardHandler)
	opts = append([]Option{WithClock(func() time.Time { return testClock })}, opts...)
	return New(store, logger, opts...), store
}

func seedWallet(t *testing.T, store domain.LedgerStore, userID string, balance int64) {
	t.Helper()
	w := domain.NewWallet(userID)
	if balance > 0 {
		require.NoError(t, w.Credit(decimal.NewFromInt(balance)))
	}
	require.NoError(t, store.Wallets().Create(context.Background(), w))
}

func seedProperty(t *testing.T, store domain.LedgerStore, id string, tokens int64) domain.Property {
	t.Helper()
	prop := domain.Property{
		ID:              id,
		OwnerID:         "owner-1",
		Category:        domain.PropertyCategoryResidential,
		TotalTokens:     tokens,
		AvailableTokens: tokens,
		TokenPrice:      decimal.NewFromInt(50),
		MinInvestment:   decimal.NewFromInt(100),
		Status:          domain.PropertyStatusFunding,
		CreatedAt:       testClock,
		UpdatedAt:       testClock,
	}
	require.NoError(t, store.Properties().Create(context.Background(), prop))
	return prop
}

func TestPurchaseInvestment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("happy path moves money, tokens and journal together", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-1", 100)

		inv, entry, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID:     "user-1",
			PropertyID: "prop-1",
			Tokens:     4,
		})
		require.NoError(t, err)

		assert.Equal(t, int64(4), inv.TokensPurchased)
		assert.True(t, inv.InvestmentAmount.Equal(decimal.NewFromInt(200)))
		assert.True(t, inv.CurrentValue.Equal(decimal.NewFromInt(200)))
		assert.Equal(t, domain.InvestmentStatusActive, inv.Status)

		assert.Equal(t, domain.TransactionTypePurchase, entry.Type)
		assert.Equal(t, domain.TransactionStatusCompleted, entry.Status)
		require.NotNil(t, entry.Related)
		assert.Equal(t, inv.ID, entry.Related.ID)
		assert.Equal(t, "4", entry.Metadata["tokens"])

		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(800)))
		assert.True(t, w.TotalInvested.Equal(decimal.NewFromInt(200)))

		p, err := store.Properties().Get(ctx, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, int64(96), p.AvailableTokens)

		require.NoError(t, led.CheckTokenConservation(ctx, "prop-1"))
	})

	t.Run("amount derives floor tokens and charges tokens times price", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-1", 100)

		// 130/50 floors to 2 tokens, charged exactly 100.
		inv, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID:     "user-1",
			PropertyID: "prop-1",
			Amount:     decimal.NewFromInt(130),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), inv.TokensPurchased)
		assert.True(t, inv.InvestmentAmount.Equal(decimal.NewFromInt(100)))

		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(900)))
	})

	t.Run("insufficient funds leaves every entity untouched", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 150)
		seedProperty(t, store, "prop-1", 100)

		_, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID:     "user-1",
			PropertyID: "prop-1",
			Tokens:     4, // costs 200
		})
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(150)))
		assert.True(t, w.TotalInvested.IsZero())

		p, err := store.Properties().Get(ctx, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), p.AvailableTokens)

		invs, err := store.Investments().ListByUser(ctx, "user-1", domain.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, invs)

		txs, err := store.Transactions().ListByUser(ctx, "user-1", domain.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("oversell is rejected and conservation holds", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 100000)
		seedWallet(t, store, "user-2", 100000)
		seedProperty(t, store, "prop-1", 10)

		_, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-1", PropertyID: "prop-1", Tokens: 8,
		})
		require.NoError(t, err)

		_, _, err = led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-2", PropertyID: "prop-1", Tokens: 3,
		})
		require.ErrorIs(t, err, domain.ErrInsufficientInventory)

		// The second buyer can still take what is left.
		_, _, err = led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-2", PropertyID: "prop-1", Tokens: 2,
		})
		require.NoError(t, err)

		p, err := store.Properties().Get(ctx, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), p.AvailableTokens)
		require.NoError(t, led.CheckTokenConservation(ctx, "prop-1"))
	})

	t.Run("below minimum investment", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-1", 100) // min investment 100, price 50

		_, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-1", PropertyID: "prop-1", Tokens: 1, // costs 50
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("property outside funding window", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-2", 100)

		closed, err := store.Properties().Get(ctx, "prop-2")
		require.NoError(t, err)
		closed.Status = domain.PropertyStatusClosed
		require.NoError(t, store.Properties().Update(ctx, closed))

		_, _, err = led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-1", PropertyID: "prop-2", Tokens: 2,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("amount too small for one token", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-1", 100)

		_, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-1", PropertyID: "prop-1", Amount: decimal.NewFromInt(49),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestDerivePurchase(t *testing.T) {
	t.Parallel()

	price := decimal.NewFromInt(50)

	tokens, amount := derivePurchase(PurchaseRequest{Tokens: 3}, price)
	assert.Equal(t, int64(3), tokens)
	assert.True(t, amount.Equal(decimal.NewFromInt(150)))

	// Token count wins when both are set.
	tokens, amount = derivePurchase(PurchaseRequest{Tokens: 2, Amount: decimal.NewFromInt(500)}, price)
	assert.Equal(t, int64(2), tokens)
	assert.True(t, amount.Equal(decimal.NewFromInt(100)))

	tokens, amount = derivePurchase(PurchaseRequest{Amount: decimal.RequireFromString("149.99")}, price)
	assert.Equal(t, int64(2), tokens)
	assert.True(t, amount.Equal(decimal.NewFromInt(100)))

	tokens, amount = derivePurchase(PurchaseRequest{Amount: decimal.NewFromInt(10)}, decimal.Zero)
	assert.Equal(t, int64(0), tokens)
	assert.True(t, amount.IsZero())
}

func TestCashflowLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("deposit is pending until confirmed", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 0)

		entry, err := led.CreateDeposit(ctx, CashflowRequest{
			UserID: "user-1",
			Amount: decimal.NewFromInt(250),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, entry.Status)
		assert.Equal(t, domain.CurrencyUSD, entry.Currency)

		// Wallet untouched before confirmation.
		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())

		confirmed, err := led.ConfirmTransaction(ctx, entry.ID, "ops-1", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, confirmed.Status)
		require.NotNil(t, confirmed.CompletedAt)

		w, err = store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(250)))
	})

	t.Run("double confirm applies the delta exactly once", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 0)

		entry, err := led.CreateDeposit(ctx, CashflowRequest{
			UserID: "user-1",
			Amount: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		_, err = led.ConfirmTransaction(ctx, entry.ID, "ops-1", nil)
		require.NoError(t, err)

		_, err = led.ConfirmTransaction(ctx, entry.ID, "ops-1", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("withdrawal short of funds stays pending for retry", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 50)

		entry, err := led.CreateWithdrawal(ctx, CashflowRequest{
			UserID: "user-1",
			Amount: decimal.NewFromInt(80),
		})
		require.NoError(t, err)

		_, err = led.ConfirmTransaction(ctx, entry.ID, "ops-1", nil)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		got, err := store.Transactions().Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, got.Status)

		// Fund the wallet and retry the same entry.
		dep, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(100)})
		require.NoError(t, err)
		_, err = led.ConfirmTransaction(ctx, dep.ID, "ops-1", nil)
		require.NoError(t, err)

		_, err = led.ConfirmTransaction(ctx, entry.ID, "ops-1", nil)
		require.NoError(t, err)

		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(70)))
	})

	t.Run("confirm attaches external hash", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 0)

		entry, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(10)})
		require.NoError(t, err)

		hash := "0xdeadbeef"
		confirmed, err := led.ConfirmTransaction(ctx, entry.ID, "ops-1", &hash)
		require.NoError(t, err)
		require.NotNil(t, confirmed.AnchorHash)
		assert.Equal(t, hash, *confirmed.AnchorHash)

		got, err := store.Transactions().Get(ctx, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, got.AnchorHash)
		assert.Equal(t, hash, *got.AnchorHash)
	})

	t.Run("cashflow without wallet is rejected", func(t *testing.T) {
		t.Parallel()
		led, _ := newTestLedger(t)

		_, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "ghost", Amount: decimal.NewFromInt(10)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 0)

		_, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "", Amount: decimal.NewFromInt(10)})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.Zero})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(10), Fee: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(10), Currency: "EUR"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCancelTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)
	seedWallet(t, store, "user-1", 0)

	entry, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	// Only the owner may cancel.
	err = led.CancelTransaction(ctx, entry.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, led.CancelTransaction(ctx, entry.ID, "user-1"))

	got, err := store.Transactions().Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)

	// Failed is terminal for cancel and confirm alike.
	assert.ErrorIs(t, led.CancelTransaction(ctx, entry.ID, "user-1"), domain.ErrInvalidState)
	_, err = led.ConfirmTransaction(ctx, entry.ID, "user-1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestProcessRefund(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("refunded purchase credits the wallet back", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-1", 100)

		_, entry, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-1", PropertyID: "prop-1", Tokens: 4,
		})
		require.NoError(t, err)

		comp, err := led.ProcessRefund(ctx, entry.ID, "chargeback", "ops-1")
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionTypeSale, comp.Type)
		assert.Equal(t, domain.TransactionStatusCompleted, comp.Status)
		assert.True(t, comp.Amount.Equal(entry.Amount))
		assert.Equal(t, entry.ID, comp.Metadata["refund_of"])
		assert.Equal(t, "chargeback", comp.Metadata["reason"])
		assert.Equal(t, "ops-1", comp.Metadata["actor_id"])

		orig, err := store.Transactions().Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusRefunded, orig.Status)

		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("refunded deposit does not credit the wallet", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 0)

		entry, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(100)})
		require.NoError(t, err)
		_, err = led.ConfirmTransaction(ctx, entry.ID, "ops-1", nil)
		require.NoError(t, err)

		comp, err := led.ProcessRefund(ctx, entry.ID, "fraud", "ops-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionTypeWithdrawal, comp.Type)

		// The confirmed deposit credit remains; the compensating withdrawal
		// records the reversal without touching the balance again.
		w, err := store.Wallets().Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("non-refundable entries are rejected", func(t *testing.T) {
		t.Parallel()
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 0)

		pending, err := led.CreateDeposit(ctx, CashflowRequest{UserID: "user-1", Amount: decimal.NewFromInt(10)})
		require.NoError(t, err)
		_, err = led.ProcessRefund(ctx, pending.ID, "", "ops-1")
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		// Refunding twice finds the entry already Refunded.
		_, err = led.ConfirmTransaction(ctx, pending.ID, "ops-1", nil)
		require.NoError(t, err)
		_, err = led.ProcessRefund(ctx, pending.ID, "", "ops-1")
		require.NoError(t, err)
		_, err = led.ProcessRefund(ctx, pending.ID, "", "ops-1")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestEnsureWallet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)

	w, err := led.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", w.UserID)
	assert.True(t, w.Balance.IsZero())

	// Idempotent: the second call returns the stored wallet unchanged.
	seeded, err := store.Wallets().Get(ctx, "user-1")
	require.NoError(t, err)
	again, err := led.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.Version, again.Version)

	_, err = led.EnsureWallet(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPropertyLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, _ := newTestLedger(t)

	prop, err := led.CreateProperty(ctx, PropertyRequest{
		OwnerID:       "owner-1",
		Category:      domain.PropertyCategoryCommercial,
		TotalTokens:   500,
		TokenPrice:    decimal.NewFromInt(20),
		MinInvestment: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyStatusDraft, prop.Status)
	assert.Equal(t, int64(500), prop.AvailableTokens)

	// Only the owner may transition.
	_, err = led.TransitionProperty(ctx, prop.ID, domain.PropertyStatusFunding, "stranger")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	updated, err := led.TransitionProperty(ctx, prop.ID, domain.PropertyStatusFunding, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyStatusFunding, updated.Status)

	// Illegal edge.
	_, err = led.TransitionProperty(ctx, prop.ID, domain.PropertyStatusDraft, "owner-1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	start := testClock.Add(time.Hour)
	end := testClock.Add(2 * time.Hour)
	require.NoError(t, led.SetFundingWindow(ctx, prop.ID, &start, &end, "owner-1"))

	err = led.SetFundingWindow(ctx, prop.ID, &end, &start, "owner-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreatePropertyValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, _ := newTestLedger(t)

	tests := []struct {
		name string
		req  PropertyRequest
	}{
		{"missing owner", PropertyRequest{Category: domain.PropertyCategoryLand, TotalTokens: 10, TokenPrice: decimal.NewFromInt(1)}},
		{"zero tokens", PropertyRequest{OwnerID: "o", Category: domain.PropertyCategoryLand, TokenPrice: decimal.NewFromInt(1)}},
		{"zero price", PropertyRequest{OwnerID: "o", Category: domain.PropertyCategoryLand, TotalTokens: 10}},
		{"negative minimum", PropertyRequest{OwnerID: "o", Category: domain.PropertyCategoryLand, TotalTokens: 10, TokenPrice: decimal.NewFromInt(1), MinInvestment: decimal.NewFromInt(-1)}},
		{"unknown category", PropertyRequest{OwnerID: "o", Category: "castle", TotalTokens: 10, TokenPrice: decimal.NewFromInt(1)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := led.CreateProperty(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestSellOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	setup := func(t *testing.T) (*Orchestrator, domain.LedgerStore, domain.Investment) {
		led, store := newTestLedger(t)
		seedWallet(t, store, "user-1", 1000)
		seedProperty(t, store, "prop-1", 100)
		inv, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
			UserID: "user-1", PropertyID: "prop-1", Tokens: 10,
		})
		require.NoError(t, err)
		return led, store, inv
	}

	t.Run("open quantity is capped by holdings", func(t *testing.T) {
		t.Parallel()
		led, _, inv := setup(t)

		_, err := led.CreateSellOrder(ctx, inv.ID, "user-1", 6, decimal.NewFromInt(55))
		require.NoError(t, err)

		// 6 open + 5 more would exceed the 10 held.
		_, err = led.CreateSellOrder(ctx, inv.ID, "user-1", 5, decimal.NewFromInt(55))
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = led.CreateSellOrder(ctx, inv.ID, "user-1", 4, decimal.NewFromInt(55))
		require.NoError(t, err)
	})

	t.Run("cancel frees the offered quantity", func(t *testing.T) {
		t.Parallel()
		led, store, inv := setup(t)

		order, err := led.CreateSellOrder(ctx, inv.ID, "user-1", 10, decimal.NewFromInt(60))
		require.NoError(t, err)

		_, err = led.CreateSellOrder(ctx, inv.ID, "user-1", 1, decimal.NewFromInt(60))
		require.ErrorIs(t, err, domain.ErrValidation)

		require.NoError(t, led.CancelSellOrder(ctx, inv.ID, order.ID, "user-1"))

		got, err := store.Investments().Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SellOrderStatusCancelled, got.SellOrderByID(order.ID).Status)
		assert.Equal(t, int64(0), got.OpenSellQuantity())

		_, err = led.CreateSellOrder(ctx, inv.ID, "user-1", 10, decimal.NewFromInt(60))
		require.NoError(t, err)

		// Cancelled is terminal.
		err = led.CancelSellOrder(ctx, inv.ID, order.ID, "user-1")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("only the position owner", func(t *testing.T) {
		t.Parallel()
		led, _, inv := setup(t)

		_, err := led.CreateSellOrder(ctx, inv.ID, "user-2", 1, decimal.NewFromInt(60))
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)

		order, err := led.CreateSellOrder(ctx, inv.ID, "user-1", 1, decimal.NewFromInt(60))
		require.NoError(t, err)
		err = led.CancelSellOrder(ctx, inv.ID, order.ID, "user-2")
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("validation and missing entities", func(t *testing.T) {
		t.Parallel()
		led, _, inv := setup(t)

		_, err := led.CreateSellOrder(ctx, inv.ID, "user-1", 0, decimal.NewFromInt(60))
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = led.CreateSellOrder(ctx, inv.ID, "user-1", 1, decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrValidation)

		err = led.CancelSellOrder(ctx, inv.ID, "missing-order", "user-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAddDividend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)
	seedWallet(t, store, "user-1", 1000)
	seedProperty(t, store, "prop-1", 100)

	inv, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
		UserID: "user-1", PropertyID: "prop-1", Tokens: 4,
	})
	require.NoError(t, err)

	// Only the property owner may distribute.
	_, err = led.AddDividend(ctx, inv.ID, decimal.NewFromInt(30), domain.DividendKindRental, "user-1")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	div, err := led.AddDividend(ctx, inv.ID, decimal.RequireFromString("30.50"), domain.DividendKindRental, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DividendKindRental, div.Kind)

	// Wallet credited: 1000 - 200 purchase + 30.50 dividend.
	w, err := store.Wallets().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("830.50")))

	got, err := store.Investments().Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.DividendTotal().Equal(decimal.RequireFromString("30.50")))

	// A Completed dividend journal entry exists.
	txs, err := store.Transactions().ListByUser(ctx, "user-1", domain.ListOpts{})
	require.NoError(t, err)
	var found bool
	for _, tx := range txs {
		if tx.Type == domain.TransactionTypeDividend {
			found = true
			assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
			assert.Equal(t, div.ID, tx.Metadata["dividend_id"])
		}
	}
	assert.True(t, found)

	_, err = led.AddDividend(ctx, inv.ID, decimal.Zero, domain.DividendKindRental, "owner-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateInvestmentValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)
	seedWallet(t, store, "user-1", 1000)
	seedProperty(t, store, "prop-1", 100)

	inv, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
		UserID: "user-1", PropertyID: "prop-1", Tokens: 4,
	})
	require.NoError(t, err)

	err = led.UpdateInvestmentValue(ctx, inv.ID, decimal.NewFromInt(260), "user-1")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, led.UpdateInvestmentValue(ctx, inv.ID, decimal.NewFromInt(260), "owner-1"))

	got, err := store.Investments().Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.Equal(decimal.NewFromInt(260)))
	// Revaluation never touches the cost basis.
	assert.True(t, got.InvestmentAmount.Equal(decimal.NewFromInt(200)))

	err = led.UpdateInvestmentValue(ctx, inv.ID, decimal.NewFromInt(-1), "owner-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
