package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// CashflowRequest describes a deposit or withdrawal intake. The entry is
// created Pending; the wallet is only touched when the entry is confirmed.
type CashflowRequest struct {
	UserID        string
	Amount        decimal.Decimal
	Currency      domain.Currency
	PaymentMethod *domain.PaymentMethod
	Fee           decimal.Decimal
	Metadata      map[string]string
}

func (r CashflowRequest) validate() error {
	if r.UserID == "" {
		return fmt.Errorf("ledger: cashflow: missing user id: %w", domain.ErrValidation)
	}
	if r.Amount.Sign() <= 0 {
		return fmt.Errorf("ledger: cashflow: amount must be positive: %w", domain.ErrValidation)
	}
	if r.Fee.Sign() < 0 {
		return fmt.Errorf("ledger: cashflow: fee must not be negative: %w", domain.ErrValidation)
	}
	switch r.Currency {
	case "", domain.CurrencyUSD, domain.CurrencyBTC, domain.CurrencyETH, domain.CurrencyUSDC:
	default:
		return fmt.Errorf("ledger: cashflow: unsupported currency %q: %w", r.Currency, domain.ErrValidation)
	}
	return nil
}

// CreateDeposit records a Pending deposit journal entry. The wallet balance
// is credited later by ConfirmTransaction.
func (o *Orchestrator) CreateDeposit(ctx context.Context, req CashflowRequest) (domain.Transaction, error) {
	return o.createCashflow(ctx, req, domain.TransactionTypeDeposit)
}

// CreateWithdrawal records a Pending withdrawal journal entry. The balance
// check happens at confirmation time, so the entry can stay Pending and be
// retried after funds arrive.
func (o *Orchestrator) CreateWithdrawal(ctx context.Context, req CashflowRequest) (domain.Transaction, error) {
	return o.createCashflow(ctx, req, domain.TransactionTypeWithdrawal)
}

func (o *Orchestrator) createCashflow(ctx context.Context, req CashflowRequest, typ domain.TransactionType) (domain.Transaction, error) {
	if err := req.validate(); err != nil {
		return domain.Transaction{}, err
	}
	currency := req.Currency
	if currency == "" {
		currency = o.currency
	}

	now := o.now()
	entry := domain.Transaction{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Type:          typ,
		Amount:        req.Amount,
		Currency:      currency,
		Status:        domain.TransactionStatusPending,
		Related:       &domain.EntityRef{Type: domain.EntityTypeWallet, ID: req.UserID},
		PaymentMethod: req.PaymentMethod,
		Metadata:      req.Metadata,
		Fee:           req.Fee,
		CreatedAt:     now,
	}

	err := o.atomically(ctx, []string{walletKey(req.UserID)}, func(tx domain.LedgerTx) error {
		// The wallet must exist before money can move against it.
		if _, err := tx.Wallets().Get(ctx, req.UserID); err != nil {
			return fmt.Errorf("ledger: cashflow: load wallet %s: %w", req.UserID, err)
		}
		if err := tx.Transactions().Create(ctx, entry); err != nil {
			return fmt.Errorf("ledger: cashflow: journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	o.publish(ctx, "transactions", map[string]any{
		"event":          "transaction.created",
		"transaction_id": entry.ID,
		"user_id":        entry.UserID,
		"type":           string(entry.Type),
		"amount":         entry.Amount.String(),
	})
	o.auditLog(ctx, "transaction.created", map[string]any{
		"transaction_id": entry.ID,
		"user_id":        entry.UserID,
		"type":           string(entry.Type),
		"amount":         entry.Amount.String(),
	})

	return entry, nil
}

// ConfirmTransaction completes a Pending deposit or withdrawal, applying the
// wallet delta exactly once. A second confirmation of the same entry fails
// with ErrInvalidState and never double-applies the delta. Withdrawals
// additionally require sufficient balance at confirmation time; on
// ErrInsufficientFunds the entry stays Pending for a later retry.
func (o *Orchestrator) ConfirmTransaction(ctx context.Context, entryID, actorID string, externalHash *string) (domain.Transaction, error) {
	var confirmed domain.Transaction

	err := o.atomically(ctx, []string{transactionKey(entryID)}, func(tx domain.LedgerTx) error {
		entry, err := tx.Transactions().Get(ctx, entryID)
		if err != nil {
			return fmt.Errorf("ledger: confirm: load entry %s: %w", entryID, err)
		}
		if entry.Status != domain.TransactionStatusPending {
			return fmt.Errorf("ledger: confirm: entry %s is %s: %w", entryID, entry.Status, domain.ErrInvalidState)
		}
		if entry.Type != domain.TransactionTypeDeposit && entry.Type != domain.TransactionTypeWithdrawal {
			return fmt.Errorf("ledger: confirm: %s entries are not confirmable: %w", entry.Type, domain.ErrInvalidState)
		}

		wallet, err := tx.Wallets().Get(ctx, entry.UserID)
		if err != nil {
			return fmt.Errorf("ledger: confirm: load wallet %s: %w", entry.UserID, err)
		}

		now := o.now()
		switch entry.Type {
		case domain.TransactionTypeDeposit:
			if err := wallet.Credit(entry.Amount); err != nil {
				return fmt.Errorf("ledger: confirm: credit wallet: %w", err)
			}
		case domain.TransactionTypeWithdrawal:
			if err := wallet.Debit(entry.Amount); err != nil {
				return fmt.Errorf("ledger: confirm: debit wallet: %w", err)
			}
		}
		wallet.UpdatedAt = now
		if err := tx.Wallets().Update(ctx, wallet); err != nil {
			return fmt.Errorf("ledger: confirm: update wallet: %w", err)
		}

		// Conditional on the entry still being Pending: this is the
		// single-shot guarantee against concurrent double confirmation.
		if err := tx.Transactions().UpdateStatus(ctx, entry.ID, domain.TransactionStatusPending, domain.TransactionStatusCompleted, &now); err != nil {
			return fmt.Errorf("ledger: confirm: complete entry: %w", err)
		}
		if externalHash != nil && *externalHash != "" {
			if err := tx.Transactions().AttachHash(ctx, entry.ID, *externalHash); err != nil {
				return fmt.Errorf("ledger: confirm: attach hash: %w", err)
			}
			entry.AnchorHash = externalHash
		}

		entry.Status = domain.TransactionStatusCompleted
		entry.CompletedAt = &now
		confirmed = entry
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	o.publish(ctx, "transactions", map[string]any{
		"event":          "transaction.confirmed",
		"transaction_id": confirmed.ID,
		"user_id":        confirmed.UserID,
		"type":           string(confirmed.Type),
		"amount":         confirmed.Amount.String(),
	})
	o.auditLog(ctx, "transaction.confirmed", map[string]any{
		"transaction_id": confirmed.ID,
		"actor_id":       actorID,
		"type":           string(confirmed.Type),
		"amount":         confirmed.Amount.String(),
	})
	o.anchorEntry(ctx, confirmed)

	o.logger.InfoContext(ctx, "ledger: transaction confirmed",
		slog.String("transaction_id", confirmed.ID),
		slog.String("type", string(confirmed.Type)),
	)

	return confirmed, nil
}

// CancelTransaction moves a Pending entry owned by actor to the terminal
// Failed state. No wallet or inventory effect is applied.
func (o *Orchestrator) CancelTransaction(ctx context.Context, entryID, actorID string) error {
	err := o.atomically(ctx, []string{transactionKey(entryID)}, func(tx domain.LedgerTx) error {
		entry, err := tx.Transactions().Get(ctx, entryID)
		if err != nil {
			return fmt.Errorf("ledger: cancel: load entry %s: %w", entryID, err)
		}
		if entry.UserID != actorID {
			return fmt.Errorf("ledger: cancel: entry %s is not owned by %s: %w", entryID, actorID, domain.ErrPermissionDenied)
		}
		if entry.Status != domain.TransactionStatusPending {
			return fmt.Errorf("ledger: cancel: entry %s is %s: %w", entryID, entry.Status, domain.ErrInvalidState)
		}
		if err := tx.Transactions().UpdateStatus(ctx, entry.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed, nil); err != nil {
			return fmt.Errorf("ledger: cancel: fail entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.publish(ctx, "transactions", map[string]any{
		"event":          "transaction.cancelled",
		"transaction_id": entryID,
	})
	o.auditLog(ctx, "transaction.cancelled", map[string]any{
		"transaction_id": entryID,
		"actor_id":       actorID,
	})
	return nil
}

// ProcessRefund reverses a Completed deposit or investment purchase: the
// original entry becomes Refunded and a compensating Completed entry of the
// inverse type is created with a back-reference. A refunded purchase credits
// the owner's wallet with the original amount.
func (o *Orchestrator) ProcessRefund(ctx context.Context, entryID, reason, actorID string) (domain.Transaction, error) {
	var compensating domain.Transaction

	err := o.atomically(ctx, []string{transactionKey(entryID)}, func(tx domain.LedgerTx) error {
		entry, err := tx.Transactions().Get(ctx, entryID)
		if err != nil {
			return fmt.Errorf("ledger: refund: load entry %s: %w", entryID, err)
		}
		if !entry.Refundable() {
			return fmt.Errorf("ledger: refund: %s entry in status %s is not refundable: %w", entry.Type, entry.Status, domain.ErrInvalidState)
		}

		now := o.now()
		if err := tx.Transactions().UpdateStatus(ctx, entry.ID, domain.TransactionStatusCompleted, domain.TransactionStatusRefunded, nil); err != nil {
			return fmt.Errorf("ledger: refund: mark refunded: %w", err)
		}

		compensating = domain.Transaction{
			ID:       uuid.New().String(),
			UserID:   entry.UserID,
			Type:     entry.InverseType(),
			Amount:   entry.Amount,
			Currency: entry.Currency,
			Status:   domain.TransactionStatusCompleted,
			Related:  entry.Related,
			Metadata: map[string]string{
				"refund_of": entry.ID,
				"reason":    reason,
				"actor_id":  actorID,
			},
			Fee:         decimal.Zero,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := tx.Transactions().Create(ctx, compensating); err != nil {
			return fmt.Errorf("ledger: refund: compensating entry: %w", err)
		}

		if entry.Type == domain.TransactionTypePurchase {
			wallet, err := tx.Wallets().Get(ctx, entry.UserID)
			if err != nil {
				return fmt.Errorf("ledger: refund: load wallet %s: %w", entry.UserID, err)
			}
			if err := wallet.Credit(entry.Amount); err != nil {
				return fmt.Errorf("ledger: refund: credit wallet: %w", err)
			}
			wallet.UpdatedAt = now
			if err := tx.Wallets().Update(ctx, wallet); err != nil {
				return fmt.Errorf("ledger: refund: update wallet: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	o.publish(ctx, "transactions", map[string]any{
		"event":          "transaction.refunded",
		"transaction_id": entryID,
		"refund_id":      compensating.ID,
		"amount":         compensating.Amount.String(),
	})
	o.auditLog(ctx, "transaction.refunded", map[string]any{
		"transaction_id": entryID,
		"refund_id":      compensating.ID,
		"actor_id":       actorID,
		"reason":         reason,
	})
	o.anchorEntry(ctx, compensating)

	o.logger.InfoContext(ctx, "ledger: refund processed",
		slog.String("transaction_id", entryID),
		slog.String("refund_id", compensating.ID),
	)

	return compensating, nil
}
