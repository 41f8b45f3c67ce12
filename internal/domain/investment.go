package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentStatus tracks whether a position is live.
type InvestmentStatus string

const (
	InvestmentStatusActive  InvestmentStatus = "active"
	InvestmentStatusPending InvestmentStatus = "pending"
	InvestmentStatusSold    InvestmentStatus = "sold"
)

// SellOrderStatus tracks the sell-order lifecycle.
type SellOrderStatus string

const (
	SellOrderStatusOpen      SellOrderStatus = "open"
	SellOrderStatusFilled    SellOrderStatus = "filled"
	SellOrderStatusCancelled SellOrderStatus = "cancelled"
)

// DividendKind distinguishes recurring payouts from one-off distributions.
type DividendKind string

const (
	DividendKindRental  DividendKind = "rental"
	DividendKindSpecial DividendKind = "special"
	DividendKindSale    DividendKind = "sale_proceeds"
)

// Dividend is a single payout recorded against a position.
type Dividend struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Kind   DividendKind    `json:"kind"`
	Date   time.Time       `json:"date"`
}

// SellOrder is a standing offer to dispose of part of a position. No matching
// is performed by this ledger; orders are recorded and cancelled only.
type SellOrder struct {
	ID       string          `json:"id"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Status   SellOrderStatus `json:"status"`
	Date     time.Time       `json:"date"`
}

// Investment is a user's holding of tokens in one property, with its dividend
// and sell-order sub-ledgers. TokensPurchased and TokenPrice are immutable
// after creation; CurrentValue changes only through an explicit valuation
// update.
type Investment struct {
	ID               string
	UserID           string
	PropertyID       string
	TokensPurchased  int64
	InvestmentAmount decimal.Decimal
	TokenPrice       decimal.Decimal
	CurrentValue     decimal.Decimal
	Status           InvestmentStatus
	Dividends        []Dividend
	SellOrders       []SellOrder
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
}

// OpenSellQuantity sums the quantities of all currently open sell orders.
func (inv Investment) OpenSellQuantity() int64 {
	var total int64
	for _, o := range inv.SellOrders {
		if o.Status == SellOrderStatusOpen {
			total += o.Quantity
		}
	}
	return total
}

// SellOrderByID returns a pointer into the sub-ledger, or nil when absent.
func (inv *Investment) SellOrderByID(orderID string) *SellOrder {
	for i := range inv.SellOrders {
		if inv.SellOrders[i].ID == orderID {
			return &inv.SellOrders[i]
		}
	}
	return nil
}

// DividendTotal sums all dividends recorded against the position.
func (inv Investment) DividendTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range inv.Dividends {
		total = total.Add(d.Amount)
	}
	return total
}
