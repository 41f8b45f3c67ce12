package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// Watcher subscribes to committed ledger events and raises operator alerts
// for the ones worth a human's attention: refunds and withdrawals above a
// configured threshold.
type Watcher struct {
	bus       domain.EventBus
	notifier  *Notifier
	threshold decimal.Decimal
	logger    *slog.Logger
}

// NewWatcher creates a Watcher alerting on withdrawals at or above threshold
// and on every refund.
func NewWatcher(bus domain.EventBus, notifier *Notifier, threshold decimal.Decimal, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:       bus,
		notifier:  notifier,
		threshold: threshold,
		logger:    logger.With(slog.String("component", "notify-watcher")),
	}
}

// Run consumes the transactions channel until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	events, err := w.bus.Subscribe(ctx, "transactions")
	if err != nil {
		return fmt.Errorf("notify: subscribe transactions: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			w.handle(ctx, payload)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, payload []byte) {
	var event struct {
		Event         string `json:"event"`
		TransactionID string `json:"transaction_id"`
		UserID        string `json:"user_id"`
		Type          string `json:"type"`
		Amount        string `json:"amount"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		w.logger.WarnContext(ctx, "unparseable event payload",
			slog.String("error", err.Error()),
		)
		return
	}

	switch event.Event {
	case "transaction.refunded":
		w.send(ctx, event.Event, "Refund processed",
			fmt.Sprintf("entry %s refunded for %s", event.TransactionID, event.Amount))

	case "transaction.confirmed":
		if event.Type != string(domain.TransactionTypeWithdrawal) {
			return
		}
		amount, err := decimal.NewFromString(event.Amount)
		if err != nil || amount.LessThan(w.threshold) {
			return
		}
		w.send(ctx, event.Event, "Large withdrawal",
			fmt.Sprintf("user %s withdrew %s (entry %s)", event.UserID, event.Amount, event.TransactionID))
	}
}

func (w *Watcher) send(ctx context.Context, event, title, message string) {
	if err := w.notifier.Notify(ctx, event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
