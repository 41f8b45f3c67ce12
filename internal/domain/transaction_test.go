package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingDeposit() Transaction {
	return Transaction{
		ID:       "tx-1",
		UserID:   "user-1",
		Type:     TransactionTypeDeposit,
		Amount:   decimal.NewFromInt(100),
		Currency: CurrencyUSD,
		Status:   TransactionStatusPending,
		Fee:      decimal.Zero,
	}
}

func TestTransactionComplete(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tx := pendingDeposit()
	require.NoError(t, tx.Complete(at))
	assert.Equal(t, TransactionStatusCompleted, tx.Status)
	require.NotNil(t, tx.CompletedAt)
	assert.True(t, tx.CompletedAt.Equal(at))

	// Completing twice is an FSM violation, not a silent no-op.
	assert.ErrorIs(t, tx.Complete(at), ErrInvalidState)
}

func TestTransactionFail(t *testing.T) {
	t.Parallel()

	tx := pendingDeposit()
	require.NoError(t, tx.Fail())
	assert.Equal(t, TransactionStatusFailed, tx.Status)

	// Failed is terminal.
	assert.ErrorIs(t, tx.Fail(), ErrInvalidState)
	assert.ErrorIs(t, tx.Complete(time.Now()), ErrInvalidState)
}

func TestTransactionRefund(t *testing.T) {
	t.Parallel()

	tx := pendingDeposit()
	assert.ErrorIs(t, tx.Refund(), ErrInvalidState) // pending cannot refund

	require.NoError(t, tx.Complete(time.Now()))
	require.NoError(t, tx.Refund())
	assert.Equal(t, TransactionStatusRefunded, tx.Status)

	assert.ErrorIs(t, tx.Refund(), ErrInvalidState)
}

func TestTransactionRefundable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		typ    TransactionType
		status TransactionStatus
		want   bool
	}{
		{"completed deposit", TransactionTypeDeposit, TransactionStatusCompleted, true},
		{"completed purchase", TransactionTypePurchase, TransactionStatusCompleted, true},
		{"pending deposit", TransactionTypeDeposit, TransactionStatusPending, false},
		{"completed withdrawal", TransactionTypeWithdrawal, TransactionStatusCompleted, false},
		{"completed dividend", TransactionTypeDividend, TransactionStatusCompleted, false},
		{"refunded deposit", TransactionTypeDeposit, TransactionStatusRefunded, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tx := Transaction{Type: tt.typ, Status: tt.status}
			assert.Equal(t, tt.want, tx.Refundable())
		})
	}
}

func TestTransactionInverseType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TransactionTypeWithdrawal, Transaction{Type: TransactionTypeDeposit}.InverseType())
	assert.Equal(t, TransactionTypeSale, Transaction{Type: TransactionTypePurchase}.InverseType())
	assert.Equal(t, TransactionTypeDividend, Transaction{Type: TransactionTypeDividend}.InverseType())
}

func TestInvestmentOpenSellQuantity(t *testing.T) {
	t.Parallel()

	inv := Investment{
		SellOrders: []SellOrder{
			{ID: "o1", Quantity: 10, Status: SellOrderStatusOpen},
			{ID: "o2", Quantity: 5, Status: SellOrderStatusCancelled},
			{ID: "o3", Quantity: 7, Status: SellOrderStatusOpen},
			{ID: "o4", Quantity: 3, Status: SellOrderStatusFilled},
		},
	}
	assert.Equal(t, int64(17), inv.OpenSellQuantity())
	assert.Equal(t, int64(0), Investment{}.OpenSellQuantity())
}

func TestInvestmentSellOrderByID(t *testing.T) {
	t.Parallel()

	inv := Investment{
		SellOrders: []SellOrder{
			{ID: "o1", Quantity: 10, Status: SellOrderStatusOpen},
		},
	}

	order := inv.SellOrderByID("o1")
	require.NotNil(t, order)

	// The pointer aliases the sub-ledger so callers can mutate in place.
	order.Status = SellOrderStatusCancelled
	assert.Equal(t, SellOrderStatusCancelled, inv.SellOrders[0].Status)

	assert.Nil(t, inv.SellOrderByID("missing"))
}

func TestInvestmentDividendTotal(t *testing.T) {
	t.Parallel()

	inv := Investment{
		Dividends: []Dividend{
			{ID: "d1", Amount: decimal.RequireFromString("12.50"), Kind: DividendKindRental},
			{ID: "d2", Amount: decimal.RequireFromString("7.25"), Kind: DividendKindSpecial},
		},
	}
	assert.True(t, inv.DividendTotal().Equal(decimal.RequireFromString("19.75")))
	assert.True(t, Investment{}.DividendTotal().IsZero())
}
