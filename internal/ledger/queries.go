package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// The read side: pure projections over the journal and positions. These
// carry no consistency obligation beyond read-after-write on the same store.

// PortfolioSummary aggregates a user's holdings.
type PortfolioSummary struct {
	UserID        string          `json:"user_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	TokensHeld    int64           `json:"tokens_held"`
	DividendTotal decimal.Decimal `json:"dividend_total"`
	Positions     int             `json:"positions"`
}

// CategorySlice is one property category's share of a portfolio.
type CategorySlice struct {
	Category domain.PropertyCategory `json:"category"`
	Invested decimal.Decimal         `json:"invested"`
	Percent  float64                 `json:"percent"`
}

// MonthlyFlow is one month of cash movement from the journal.
type MonthlyFlow struct {
	Month       string          `json:"month"` // YYYY-MM
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Invested    decimal.Decimal `json:"invested"`
	Dividends   decimal.Decimal `json:"dividends"`
	Net         decimal.Decimal `json:"net"`
}

// Wallet returns a user's wallet.
func (o *Orchestrator) Wallet(ctx context.Context, userID string) (domain.Wallet, error) {
	w, err := o.store.Wallets().Get(ctx, userID)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("ledger: wallet %s: %w", userID, err)
	}
	return w, nil
}

// EnsureWallet returns the user's wallet, creating an empty one if none
// exists yet.
func (o *Orchestrator) EnsureWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	if userID == "" {
		return domain.Wallet{}, fmt.Errorf("ledger: ensure wallet: missing user id: %w", domain.ErrValidation)
	}
	var wallet domain.Wallet
	err := o.atomically(ctx, []string{walletKey(userID)}, func(tx domain.LedgerTx) error {
		w, err := tx.Wallets().Get(ctx, userID)
		if err == nil {
			wallet = w
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("ledger: ensure wallet: load: %w", err)
		}
		wallet = domain.NewWallet(userID)
		wallet.UpdatedAt = o.now()
		if createErr := tx.Wallets().Create(ctx, wallet); createErr != nil {
			return fmt.Errorf("ledger: ensure wallet: create: %w", createErr)
		}
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	return wallet, nil
}

// Property returns one token inventory.
func (o *Orchestrator) Property(ctx context.Context, id string) (domain.Property, error) {
	p, err := o.store.Properties().Get(ctx, id)
	if err != nil {
		return domain.Property{}, fmt.Errorf("ledger: property %s: %w", id, err)
	}
	return p, nil
}

// ListProperties returns inventories with pagination.
func (o *Orchestrator) ListProperties(ctx context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	props, err := o.store.Properties().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list properties: %w", err)
	}
	return props, nil
}

// Investment returns one position.
func (o *Orchestrator) Investment(ctx context.Context, id string) (domain.Investment, error) {
	inv, err := o.store.Investments().Get(ctx, id)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("ledger: investment %s: %w", id, err)
	}
	return inv, nil
}

// ListInvestments returns a user's positions with pagination.
func (o *Orchestrator) ListInvestments(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Investment, error) {
	invs, err := o.store.Investments().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list investments for %s: %w", userID, err)
	}
	return invs, nil
}

// Transaction returns one journal entry.
func (o *Orchestrator) Transaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := o.store.Transactions().Get(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger: transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListTransactions returns a user's journal entries with pagination.
func (o *Orchestrator) ListTransactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := o.store.Transactions().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list transactions for %s: %w", userID, err)
	}
	return txs, nil
}

// Summary computes a user's portfolio totals from their wallet and active
// positions.
func (o *Orchestrator) Summary(ctx context.Context, userID string) (PortfolioSummary, error) {
	wallet, err := o.store.Wallets().Get(ctx, userID)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("ledger: summary: wallet %s: %w", userID, err)
	}
	invs, err := o.store.Investments().ListByUser(ctx, userID, domain.ListOpts{})
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("ledger: summary: positions for %s: %w", userID, err)
	}

	sum := PortfolioSummary{
		UserID:        userID,
		WalletBalance: wallet.Balance,
		TotalInvested: decimal.Zero,
		CurrentValue:  decimal.Zero,
		DividendTotal: decimal.Zero,
	}
	for _, inv := range invs {
		if inv.Status != domain.InvestmentStatusActive {
			continue
		}
		sum.TotalInvested = sum.TotalInvested.Add(inv.InvestmentAmount)
		sum.CurrentValue = sum.CurrentValue.Add(inv.CurrentValue)
		sum.TokensHeld += inv.TokensPurchased
		sum.DividendTotal = sum.DividendTotal.Add(inv.DividendTotal())
		sum.Positions++
	}
	return sum, nil
}

// Distribution returns the user's invested amount per property category,
// with each slice's share of the total.
func (o *Orchestrator) Distribution(ctx context.Context, userID string) ([]CategorySlice, error) {
	invs, err := o.store.Investments().ListByUser(ctx, userID, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("ledger: distribution: positions for %s: %w", userID, err)
	}

	byCategory := map[domain.PropertyCategory]decimal.Decimal{}
	total := decimal.Zero
	for _, inv := range invs {
		if inv.Status != domain.InvestmentStatusActive {
			continue
		}
		prop, err := o.store.Properties().Get(ctx, inv.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("ledger: distribution: property %s: %w", inv.PropertyID, err)
		}
		cur := byCategory[prop.Category]
		byCategory[prop.Category] = cur.Add(inv.InvestmentAmount)
		total = total.Add(inv.InvestmentAmount)
	}

	slices := make([]CategorySlice, 0, len(byCategory))
	for cat, invested := range byCategory {
		slice := CategorySlice{Category: cat, Invested: invested}
		if total.Sign() > 0 {
			pct, _ := invested.Div(total).Float64()
			slice.Percent = pct
		}
		slices = append(slices, slice)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].Category < slices[j].Category })
	return slices, nil
}

// MonthlyHistory groups the user's completed journal entries of the last
// months calendar months by month.
func (o *Orchestrator) MonthlyHistory(ctx context.Context, userID string, months int) ([]MonthlyFlow, error) {
	if months <= 0 {
		months = 12
	}
	since := o.now().AddDate(0, -months, 0)
	txs, err := o.store.Transactions().ListByUser(ctx, userID, domain.ListOpts{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("ledger: history: transactions for %s: %w", userID, err)
	}

	byMonth := map[string]*MonthlyFlow{}
	for _, tx := range txs {
		if tx.Status != domain.TransactionStatusCompleted && tx.Status != domain.TransactionStatusRefunded {
			continue
		}
		month := tx.CreatedAt.Format("2006-01")
		flow, ok := byMonth[month]
		if !ok {
			flow = &MonthlyFlow{
				Month:       month,
				Deposits:    decimal.Zero,
				Withdrawals: decimal.Zero,
				Invested:    decimal.Zero,
				Dividends:   decimal.Zero,
				Net:         decimal.Zero,
			}
			byMonth[month] = flow
		}
		switch tx.Type {
		case domain.TransactionTypeDeposit:
			flow.Deposits = flow.Deposits.Add(tx.Amount)
			flow.Net = flow.Net.Add(tx.Amount)
		case domain.TransactionTypeWithdrawal:
			flow.Withdrawals = flow.Withdrawals.Add(tx.Amount)
			flow.Net = flow.Net.Sub(tx.Amount)
		case domain.TransactionTypePurchase:
			flow.Invested = flow.Invested.Add(tx.Amount)
			flow.Net = flow.Net.Sub(tx.Amount)
		case domain.TransactionTypeSale:
			flow.Net = flow.Net.Add(tx.Amount)
		case domain.TransactionTypeDividend:
			flow.Dividends = flow.Dividends.Add(tx.Amount)
			flow.Net = flow.Net.Add(tx.Amount)
		}
	}

	flows := make([]MonthlyFlow, 0, len(byMonth))
	for _, f := range byMonth {
		flows = append(flows, *f)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Month < flows[j].Month })
	return flows, nil
}

// CheckTokenConservation verifies invariant 1 for one property: available
// tokens plus the sum of active position holdings must equal the total.
// Exposed for operational verification and tests.
func (o *Orchestrator) CheckTokenConservation(ctx context.Context, propertyID string) error {
	prop, err := o.store.Properties().Get(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("ledger: conservation: property %s: %w", propertyID, err)
	}
	invs, err := o.store.Investments().ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("ledger: conservation: positions for %s: %w", propertyID, err)
	}
	var held int64
	for _, inv := range invs {
		held += inv.TokensPurchased
	}
	if prop.AvailableTokens+held != prop.TotalTokens {
		return fmt.Errorf("ledger: conservation violated for %s: available %d + held %d != total %d",
			propertyID, prop.AvailableTokens, held, prop.TotalTokens)
	}
	return nil
}
