package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// CreateSellOrder appends an Open sell order to an Active position owned by
// the actor. The quantity is checked against tokensPurchased minus all
// currently open sell-order quantities, so a position can never have more
// tokens on offer than it holds.
func (o *Orchestrator) CreateSellOrder(ctx context.Context, positionID, actorID string, quantity int64, price decimal.Decimal) (domain.SellOrder, error) {
	if quantity <= 0 {
		return domain.SellOrder{}, fmt.Errorf("ledger: sell order: quantity must be positive: %w", domain.ErrValidation)
	}
	if price.Sign() <= 0 {
		return domain.SellOrder{}, fmt.Errorf("ledger: sell order: price must be positive: %w", domain.ErrValidation)
	}

	var order domain.SellOrder
	err := o.atomically(ctx, []string{investmentKey(positionID)}, func(tx domain.LedgerTx) error {
		inv, err := tx.Investments().Get(ctx, positionID)
		if err != nil {
			return fmt.Errorf("ledger: sell order: load position %s: %w", positionID, err)
		}
		if inv.UserID != actorID {
			return fmt.Errorf("ledger: sell order: position %s is not owned by %s: %w", positionID, actorID, domain.ErrPermissionDenied)
		}
		if inv.Status != domain.InvestmentStatusActive {
			return fmt.Errorf("ledger: sell order: position %s is %s: %w", positionID, inv.Status, domain.ErrInvalidState)
		}
		if open := inv.OpenSellQuantity(); quantity+open > inv.TokensPurchased {
			return fmt.Errorf("ledger: sell order: %d requested with %d already open exceeds %d held: %w",
				quantity, open, inv.TokensPurchased, domain.ErrValidation)
		}

		now := o.now()
		order = domain.SellOrder{
			ID:       uuid.New().String(),
			Quantity: quantity,
			Price:    price,
			Status:   domain.SellOrderStatusOpen,
			Date:     now,
		}
		inv.SellOrders = append(inv.SellOrders, order)
		inv.UpdatedAt = now
		if err := tx.Investments().Update(ctx, inv); err != nil {
			return fmt.Errorf("ledger: sell order: update position: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SellOrder{}, err
	}

	o.publish(ctx, "investments", map[string]any{
		"event":         "sell_order.created",
		"investment_id": positionID,
		"order_id":      order.ID,
		"quantity":      order.Quantity,
		"price":         order.Price.String(),
	})
	o.auditLog(ctx, "sell_order.created", map[string]any{
		"investment_id": positionID,
		"order_id":      order.ID,
		"actor_id":      actorID,
		"quantity":      order.Quantity,
	})
	return order, nil
}

// CancelSellOrder moves an Open sell order to the terminal Cancelled state.
// No wallet or inventory effect: this ledger records offers, it does not
// match them.
func (o *Orchestrator) CancelSellOrder(ctx context.Context, positionID, orderID, actorID string) error {
	err := o.atomically(ctx, []string{investmentKey(positionID)}, func(tx domain.LedgerTx) error {
		inv, err := tx.Investments().Get(ctx, positionID)
		if err != nil {
			return fmt.Errorf("ledger: cancel sell order: load position %s: %w", positionID, err)
		}
		if inv.UserID != actorID {
			return fmt.Errorf("ledger: cancel sell order: position %s is not owned by %s: %w", positionID, actorID, domain.ErrPermissionDenied)
		}
		order := inv.SellOrderByID(orderID)
		if order == nil {
			return fmt.Errorf("ledger: cancel sell order: order %s: %w", orderID, domain.ErrNotFound)
		}
		if err := domain.SellOrderTransitions.Step(order.Status, domain.SellOrderStatusCancelled); err != nil {
			return fmt.Errorf("ledger: cancel sell order %s: %w", orderID, err)
		}
		order.Status = domain.SellOrderStatusCancelled
		inv.UpdatedAt = o.now()
		if err := tx.Investments().Update(ctx, inv); err != nil {
			return fmt.Errorf("ledger: cancel sell order: update position: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.publish(ctx, "investments", map[string]any{
		"event":         "sell_order.cancelled",
		"investment_id": positionID,
		"order_id":      orderID,
	})
	o.auditLog(ctx, "sell_order.cancelled", map[string]any{
		"investment_id": positionID,
		"order_id":      orderID,
		"actor_id":      actorID,
	})
	return nil
}

// AddDividend atomically appends a dividend to the position, credits the
// position owner's wallet and appends a Completed Dividend journal entry.
// Only the property's registered owner may distribute dividends.
func (o *Orchestrator) AddDividend(ctx context.Context, positionID string, amount decimal.Decimal, kind domain.DividendKind, actorID string) (domain.Dividend, error) {
	if amount.Sign() <= 0 {
		return domain.Dividend{}, fmt.Errorf("ledger: dividend: amount must be positive: %w", domain.ErrValidation)
	}

	var (
		dividend domain.Dividend
		entry    domain.Transaction
		ownerID  string
	)
	err := o.atomically(ctx, []string{investmentKey(positionID)}, func(tx domain.LedgerTx) error {
		inv, err := tx.Investments().Get(ctx, positionID)
		if err != nil {
			return fmt.Errorf("ledger: dividend: load position %s: %w", positionID, err)
		}
		prop, err := tx.Properties().Get(ctx, inv.PropertyID)
		if err != nil {
			return fmt.Errorf("ledger: dividend: load property %s: %w", inv.PropertyID, err)
		}
		if prop.OwnerID != actorID {
			return fmt.Errorf("ledger: dividend: %s does not own property %s: %w", actorID, prop.ID, domain.ErrPermissionDenied)
		}

		now := o.now()
		dividend = domain.Dividend{
			ID:     uuid.New().String(),
			Amount: amount,
			Kind:   kind,
			Date:   now,
		}
		inv.Dividends = append(inv.Dividends, dividend)
		inv.UpdatedAt = now
		if err := tx.Investments().Update(ctx, inv); err != nil {
			return fmt.Errorf("ledger: dividend: update position: %w", err)
		}

		wallet, err := tx.Wallets().Get(ctx, inv.UserID)
		if err != nil {
			return fmt.Errorf("ledger: dividend: load wallet %s: %w", inv.UserID, err)
		}
		if err := wallet.Credit(amount); err != nil {
			return fmt.Errorf("ledger: dividend: credit wallet: %w", err)
		}
		wallet.UpdatedAt = now
		if err := tx.Wallets().Update(ctx, wallet); err != nil {
			return fmt.Errorf("ledger: dividend: update wallet: %w", err)
		}

		entry = domain.Transaction{
			ID:       uuid.New().String(),
			UserID:   inv.UserID,
			Type:     domain.TransactionTypeDividend,
			Amount:   amount,
			Currency: o.currency,
			Status:   domain.TransactionStatusCompleted,
			Related:  &domain.EntityRef{Type: domain.EntityTypeInvestment, ID: inv.ID},
			Metadata: map[string]string{
				"dividend_id": dividend.ID,
				"kind":        string(kind),
			},
			Fee:         decimal.Zero,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := tx.Transactions().Create(ctx, entry); err != nil {
			return fmt.Errorf("ledger: dividend: journal entry: %w", err)
		}
		ownerID = inv.UserID
		return nil
	})
	if err != nil {
		return domain.Dividend{}, err
	}

	o.publish(ctx, "dividends", map[string]any{
		"event":         "dividend.paid",
		"investment_id": positionID,
		"dividend_id":   dividend.ID,
		"user_id":       ownerID,
		"amount":        amount.String(),
		"kind":          string(kind),
	})
	o.auditLog(ctx, "dividend.paid", map[string]any{
		"investment_id": positionID,
		"dividend_id":   dividend.ID,
		"actor_id":      actorID,
		"amount":        amount.String(),
	})
	o.anchorEntry(ctx, entry)

	o.logger.InfoContext(ctx, "ledger: dividend paid",
		slog.String("investment_id", positionID),
		slog.String("amount", amount.String()),
	)
	return dividend, nil
}

// UpdateInvestmentValue sets a position's current value. This is the only
// path that mutates CurrentValue; purchase and sale bookkeeping never touch
// it. Only the property owner may revalue positions.
func (o *Orchestrator) UpdateInvestmentValue(ctx context.Context, positionID string, newValue decimal.Decimal, actorID string) error {
	if newValue.Sign() < 0 {
		return fmt.Errorf("ledger: revalue: value must not be negative: %w", domain.ErrValidation)
	}

	err := o.atomically(ctx, []string{investmentKey(positionID)}, func(tx domain.LedgerTx) error {
		inv, err := tx.Investments().Get(ctx, positionID)
		if err != nil {
			return fmt.Errorf("ledger: revalue: load position %s: %w", positionID, err)
		}
		prop, err := tx.Properties().Get(ctx, inv.PropertyID)
		if err != nil {
			return fmt.Errorf("ledger: revalue: load property %s: %w", inv.PropertyID, err)
		}
		if prop.OwnerID != actorID {
			return fmt.Errorf("ledger: revalue: %s does not own property %s: %w", actorID, prop.ID, domain.ErrPermissionDenied)
		}

		inv.CurrentValue = newValue
		inv.UpdatedAt = o.now()
		if err := tx.Investments().Update(ctx, inv); err != nil {
			return fmt.Errorf("ledger: revalue: update position: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.publish(ctx, "investments", map[string]any{
		"event":         "investment.revalued",
		"investment_id": positionID,
		"value":         newValue.String(),
	})
	o.auditLog(ctx, "investment.revalued", map[string]any{
		"investment_id": positionID,
		"actor_id":      actorID,
		"value":         newValue.String(),
	})
	return nil
}
