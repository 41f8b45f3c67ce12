package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// PurchaseRequest describes a token purchase. Exactly one of Tokens or
// Amount should be supplied; when both are set the token count wins and the
// amount is derived, otherwise tokens are derived by floor division of the
// amount against the token price.
type PurchaseRequest struct {
	UserID     string
	PropertyID string
	Tokens     int64
	Amount     decimal.Decimal
	Currency   domain.Currency
}

// PurchaseInvestment atomically creates a position, reserves inventory,
// debits the buyer's wallet and appends a Completed journal entry.
// Preconditions are checked in order and the first failure wins; nothing is
// visible unless every step commits.
func (o *Orchestrator) PurchaseInvestment(ctx context.Context, req PurchaseRequest) (domain.Investment, domain.Transaction, error) {
	if req.UserID == "" || req.PropertyID == "" {
		return domain.Investment{}, domain.Transaction{}, fmt.Errorf("ledger: purchase: missing user or property id: %w", domain.ErrValidation)
	}
	if req.Tokens <= 0 && req.Amount.Sign() <= 0 {
		return domain.Investment{}, domain.Transaction{}, fmt.Errorf("ledger: purchase: either tokens or amount is required: %w", domain.ErrValidation)
	}
	currency := req.Currency
	if currency == "" {
		currency = o.currency
	}

	var (
		investment domain.Investment
		entry      domain.Transaction
	)

	keys := []string{walletKey(req.UserID), propertyKey(req.PropertyID)}
	err := o.atomically(ctx, keys, func(tx domain.LedgerTx) error {
		prop, err := tx.Properties().Get(ctx, req.PropertyID)
		if err != nil {
			return fmt.Errorf("ledger: purchase: load property %s: %w", req.PropertyID, err)
		}
		wallet, err := tx.Wallets().Get(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("ledger: purchase: load wallet %s: %w", req.UserID, err)
		}

		now := o.now()
		if !prop.AcceptsPurchases(now) {
			return fmt.Errorf("ledger: purchase: property %s is not accepting investments: %w", prop.ID, domain.ErrInvalidState)
		}

		tokens, amount := derivePurchase(req, prop.TokenPrice)
		if tokens < 1 {
			return fmt.Errorf("ledger: purchase: amount buys no tokens at price %s: %w", prop.TokenPrice, domain.ErrValidation)
		}
		if tokens > prop.AvailableTokens {
			return fmt.Errorf("ledger: purchase: %d tokens requested, %d available: %w", tokens, prop.AvailableTokens, domain.ErrInsufficientInventory)
		}
		if amount.LessThan(prop.MinInvestment) {
			return fmt.Errorf("ledger: purchase: amount %s below minimum %s: %w", amount, prop.MinInvestment, domain.ErrValidation)
		}
		if !wallet.CanDebit(amount) {
			return fmt.Errorf("ledger: purchase: balance %s below amount %s: %w", wallet.Balance, amount, domain.ErrInsufficientFunds)
		}

		investment = domain.Investment{
			ID:               uuid.New().String(),
			UserID:           req.UserID,
			PropertyID:       req.PropertyID,
			TokensPurchased:  tokens,
			InvestmentAmount: amount,
			TokenPrice:       prop.TokenPrice,
			CurrentValue:     amount,
			Status:           domain.InvestmentStatusActive,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Investments().Create(ctx, investment); err != nil {
			return fmt.Errorf("ledger: purchase: create position: %w", err)
		}

		if err := prop.Reserve(tokens); err != nil {
			return fmt.Errorf("ledger: purchase: reserve tokens: %w", err)
		}
		prop.UpdatedAt = now
		if err := tx.Properties().Update(ctx, prop); err != nil {
			return fmt.Errorf("ledger: purchase: update inventory: %w", err)
		}

		if err := wallet.Debit(amount); err != nil {
			return fmt.Errorf("ledger: purchase: debit wallet: %w", err)
		}
		wallet.TotalInvested = wallet.TotalInvested.Add(amount)
		wallet.UpdatedAt = now
		if err := tx.Wallets().Update(ctx, wallet); err != nil {
			return fmt.Errorf("ledger: purchase: update wallet: %w", err)
		}

		entry = domain.Transaction{
			ID:       uuid.New().String(),
			UserID:   req.UserID,
			Type:     domain.TransactionTypePurchase,
			Amount:   amount,
			Currency: currency,
			Status:   domain.TransactionStatusCompleted,
			Related:  &domain.EntityRef{Type: domain.EntityTypeInvestment, ID: investment.ID},
			Metadata: map[string]string{
				"property_id": req.PropertyID,
				"tokens":      fmt.Sprintf("%d", tokens),
			},
			Fee:         decimal.Zero,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := tx.Transactions().Create(ctx, entry); err != nil {
			return fmt.Errorf("ledger: purchase: journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Investment{}, domain.Transaction{}, err
	}

	o.publish(ctx, "investments", map[string]any{
		"event":         "investment.purchased",
		"investment_id": investment.ID,
		"user_id":       investment.UserID,
		"property_id":   investment.PropertyID,
		"tokens":        investment.TokensPurchased,
		"amount":        investment.InvestmentAmount.String(),
	})
	o.auditLog(ctx, "investment.purchased", map[string]any{
		"investment_id":  investment.ID,
		"transaction_id": entry.ID,
		"user_id":        investment.UserID,
		"property_id":    investment.PropertyID,
		"tokens":         investment.TokensPurchased,
		"amount":         investment.InvestmentAmount.String(),
	})
	o.anchorEntry(ctx, entry)

	o.logger.InfoContext(ctx, "ledger: investment purchased",
		slog.String("investment_id", investment.ID),
		slog.String("user_id", investment.UserID),
		slog.String("property_id", investment.PropertyID),
		slog.Int64("tokens", investment.TokensPurchased),
	)

	return investment, entry, nil
}

// derivePurchase resolves the token count and charged amount from a request.
// A supplied token count wins; otherwise tokens are the floor of
// amount/price and the charged amount is tokens*price.
func derivePurchase(req PurchaseRequest, price decimal.Decimal) (int64, decimal.Decimal) {
	if req.Tokens > 0 {
		return req.Tokens, price.Mul(decimal.NewFromInt(req.Tokens))
	}
	if price.Sign() <= 0 {
		return 0, decimal.Zero
	}
	tokens := req.Amount.Div(price).Floor().IntPart()
	return tokens, price.Mul(decimal.NewFromInt(tokens))
}
