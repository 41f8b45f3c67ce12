package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/brickfolio/internal/domain"
)

func TestSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)
	seedWallet(t, store, "user-1", 2000)
	seedProperty(t, store, "prop-1", 100)
	seedProperty(t, store, "prop-2", 100)

	inv1, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
		UserID: "user-1", PropertyID: "prop-1", Tokens: 4, // 200
	})
	require.NoError(t, err)
	_, _, err = led.PurchaseInvestment(ctx, PurchaseRequest{
		UserID: "user-1", PropertyID: "prop-2", Tokens: 6, // 300
	})
	require.NoError(t, err)

	_, err = led.AddDividend(ctx, inv1.ID, decimal.NewFromInt(25), domain.DividendKindRental, "owner-1")
	require.NoError(t, err)
	require.NoError(t, led.UpdateInvestmentValue(ctx, inv1.ID, decimal.NewFromInt(240), "owner-1"))

	// Sold positions are excluded from every aggregate.
	require.NoError(t, store.Investments().Create(ctx, domain.Investment{
		ID: "inv-sold", UserID: "user-1", PropertyID: "prop-1",
		TokensPurchased:  3,
		InvestmentAmount: decimal.NewFromInt(150),
		CurrentValue:     decimal.NewFromInt(150),
		Status:           domain.InvestmentStatusSold,
	}))

	sum, err := led.Summary(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sum.UserID)
	// 2000 - 500 purchases + 25 dividend.
	assert.True(t, sum.WalletBalance.Equal(decimal.NewFromInt(1525)))
	assert.True(t, sum.TotalInvested.Equal(decimal.NewFromInt(500)))
	// 240 revalued + 300 at cost.
	assert.True(t, sum.CurrentValue.Equal(decimal.NewFromInt(540)))
	assert.Equal(t, int64(10), sum.TokensHeld)
	assert.True(t, sum.DividendTotal.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 2, sum.Positions)

	_, err = led.Summary(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDistribution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)
	seedWallet(t, store, "user-1", 10000)

	seedProperty(t, store, "prop-res", 100)

	commercial := domain.Property{
		ID:              "prop-com",
		OwnerID:         "owner-1",
		Category:        domain.PropertyCategoryCommercial,
		TotalTokens:     100,
		AvailableTokens: 100,
		TokenPrice:      decimal.NewFromInt(50),
		MinInvestment:   decimal.NewFromInt(100),
		Status:          domain.PropertyStatusFunding,
	}
	require.NoError(t, store.Properties().Create(ctx, commercial))

	_, _, err := led.PurchaseInvestment(ctx, PurchaseRequest{
		UserID: "user-1", PropertyID: "prop-res", Tokens: 6, // 300
	})
	require.NoError(t, err)
	_, _, err = led.PurchaseInvestment(ctx, PurchaseRequest{
		UserID: "user-1", PropertyID: "prop-com", Tokens: 2, // 100
	})
	require.NoError(t, err)

	slices, err := led.Distribution(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, slices, 2)

	// Sorted by category name: commercial before residential.
	assert.Equal(t, domain.PropertyCategoryCommercial, slices[0].Category)
	assert.True(t, slices[0].Invested.Equal(decimal.NewFromInt(100)))
	assert.InDelta(t, 0.25, slices[0].Percent, 1e-9)

	assert.Equal(t, domain.PropertyCategoryResidential, slices[1].Category)
	assert.True(t, slices[1].Invested.Equal(decimal.NewFromInt(300)))
	assert.InDelta(t, 0.75, slices[1].Percent, 1e-9)

	empty, err := led.Distribution(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMonthlyHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)

	may := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	june := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

	entries := []domain.Transaction{
		{ID: "t1", UserID: "user-1", Type: domain.TransactionTypeDeposit, Amount: decimal.NewFromInt(1000), Status: domain.TransactionStatusCompleted, CreatedAt: may, CompletedAt: &may},
		{ID: "t2", UserID: "user-1", Type: domain.TransactionTypePurchase, Amount: decimal.NewFromInt(400), Status: domain.TransactionStatusCompleted, CreatedAt: may, CompletedAt: &may},
		{ID: "t3", UserID: "user-1", Type: domain.TransactionTypeWithdrawal, Amount: decimal.NewFromInt(100), Status: domain.TransactionStatusCompleted, CreatedAt: june, CompletedAt: &june},
		{ID: "t4", UserID: "user-1", Type: domain.TransactionTypeDividend, Amount: decimal.NewFromInt(50), Status: domain.TransactionStatusCompleted, CreatedAt: june, CompletedAt: &june},
		// Pending entries never count.
		{ID: "t5", UserID: "user-1", Type: domain.TransactionTypeDeposit, Amount: decimal.NewFromInt(9999), Status: domain.TransactionStatusPending, CreatedAt: june},
		// Sale proceeds add to the net without a dedicated column.
		{ID: "t6", UserID: "user-1", Type: domain.TransactionTypeSale, Amount: decimal.NewFromInt(400), Status: domain.TransactionStatusCompleted, CreatedAt: june, CompletedAt: &june},
	}
	for _, e := range entries {
		e.Currency = domain.CurrencyUSD
		e.Fee = decimal.Zero
		require.NoError(t, store.Transactions().Create(ctx, e))
	}

	flows, err := led.MonthlyHistory(ctx, "user-1", 6)
	require.NoError(t, err)
	require.Len(t, flows, 2)

	assert.Equal(t, "2026-05", flows[0].Month)
	assert.True(t, flows[0].Deposits.Equal(decimal.NewFromInt(1000)))
	assert.True(t, flows[0].Invested.Equal(decimal.NewFromInt(400)))
	assert.True(t, flows[0].Net.Equal(decimal.NewFromInt(600)))

	assert.Equal(t, "2026-06", flows[1].Month)
	assert.True(t, flows[1].Withdrawals.Equal(decimal.NewFromInt(100)))
	assert.True(t, flows[1].Dividends.Equal(decimal.NewFromInt(50)))
	// -100 withdrawal + 50 dividend + 400 sale proceeds.
	assert.True(t, flows[1].Net.Equal(decimal.NewFromInt(350)))

	// A window too short to reach May drops it.
	flows, err = led.MonthlyHistory(ctx, "user-1", 1)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "2026-06", flows[0].Month)
}

func TestCheckTokenConservationViolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led, store := newTestLedger(t)
	seedProperty(t, store, "prop-1", 100)

	require.NoError(t, led.CheckTokenConservation(ctx, "prop-1"))

	// A position that was never deducted from the inventory breaks the books.
	require.NoError(t, store.Investments().Create(ctx, domain.Investment{
		ID: "inv-bad", UserID: "user-1", PropertyID: "prop-1",
		TokensPurchased: 5,
		Status:          domain.InvestmentStatusActive,
	}))

	err := led.CheckTokenConservation(ctx, "prop-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conservation violated")

	assert.ErrorIs(t, led.CheckTokenConservation(ctx, "missing"), domain.ErrNotFound)
}
