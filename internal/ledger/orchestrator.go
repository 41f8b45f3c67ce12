// Package ledger implements the investment/transaction orchestrator: the one
// component allowed to mutate more than one of wallet, property inventory,
// position and journal in a single logical operation. Every mutation runs
// inside LedgerStore.Atomic and is retried on version conflicts, so the
// cross-entity invariants (token conservation, non-negative balances, one-way
// journal transitions) hold after every operation.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/brickfolio/brickfolio/internal/domain"
)

const (
	// defaultMaxAttempts bounds optimistic-concurrency retries before the
	// operation surfaces ErrConflict to the caller.
	defaultMaxAttempts = 3

	// defaultLockTTL bounds how long a per-entity lock can outlive a crashed
	// holder.
	defaultLockTTL = 10 * time.Second
)

// Anchorer attaches an external hash annotation to a committed journal entry.
// It runs strictly after the atomic unit and is best-effort only: a failed or
// missing anchor never affects ledger state.
type Anchorer interface {
	Anchor(ctx context.Context, tx domain.Transaction) (string, error)
}

// Orchestrator coordinates all ledger operations. The store is required;
// locks, bus, audit and anchor are optional capabilities that degrade to
// no-ops when absent.
type Orchestrator struct {
	store  domain.LedgerStore
	locks  domain.LockManager
	bus    domain.EventBus
	audit  domain.AuditStore
	anchor Anchorer
	logger *slog.Logger

	now         func() time.Time
	maxAttempts int
	lockTTL     time.Duration
	currency    domain.Currency
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLockManager enables pessimistic per-entity serialization in addition
// to version compare-and-swap. Lock contention is retried like a conflict.
func WithLockManager(lm domain.LockManager) Option {
	return func(o *Orchestrator) { o.locks = lm }
}

// WithEventBus publishes a JSON event for every committed operation.
func WithEventBus(bus domain.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithAuditStore records every committed operation in the audit log.
func WithAuditStore(audit domain.AuditStore) Option {
	return func(o *Orchestrator) { o.audit = audit }
}

// WithAnchorer enables best-effort post-commit anchoring of journal entries.
func WithAnchorer(a Anchorer) Option {
	return func(o *Orchestrator) { o.anchor = a }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLockTTL bounds how long a per-entity lock can outlive a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithDefaultCurrency sets the currency assumed when a request omits one.
func WithDefaultCurrency(c domain.Currency) Option {
	return func(o *Orchestrator) {
		if c != "" {
			o.currency = c
		}
	}
}

// New creates an Orchestrator over the given store.
func New(store domain.LedgerStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		logger:      logger.With(slog.String("component", "ledger")),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
		lockTTL:     defaultLockTTL,
		currency:    domain.CurrencyUSD,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// atomically runs fn inside a store transaction, serialized on the given
// entity keys. Version conflicts and lock contention are retried with fresh
// state up to maxAttempts, then reported as ErrConflict. fn must re-read
// everything it touches on every attempt.
func (o *Orchestrator) atomically(ctx context.Context, keys []string, fn func(tx domain.LedgerTx) error) error {
	// Sort keys so concurrent operations acquire locks in one global order.
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*25*time.Millisecond); err != nil {
				return err
			}
		}

		unlock, err := o.acquireAll(ctx, sorted)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				lastErr = err
				continue
			}
			return err
		}

		err = o.store.Atomic(ctx, fn)
		unlock()

		if errors.Is(err, domain.ErrConflict) {
			lastErr = err
			continue
		}
		return err
	}

	o.logger.WarnContext(ctx, "ledger: retries exhausted",
		slog.Int("attempts", o.maxAttempts),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("ledger: retries exhausted: %w", domain.ErrConflict)
}

// acquireAll takes every per-entity lock in order and returns one unlock
// function releasing them all. Without a lock manager it is a no-op.
func (o *Orchestrator) acquireAll(ctx context.Context, keys []string) (func(), error) {
	if o.locks == nil {
		return func() {}, nil
	}

	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range keys {
		unlock, err := o.locks.Acquire(ctx, key, o.lockTTL)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func walletKey(userID string) string { return "wallet:" + userID }

func propertyKey(id string) string { return "property:" + id }

func investmentKey(id string) string { return "investment:" + id }

func transactionKey(id string) string { return "transaction:" + id }

// publish sends a committed-operation event on the bus. Failures are logged,
// never propagated: the commit already happened.
func (o *Orchestrator) publish(ctx context.Context, channel string, event map[string]any) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := o.bus.Publish(ctx, channel, payload); err != nil {
		o.logger.WarnContext(ctx, "ledger: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog appends an audit entry. Failures are logged, never propagated.
func (o *Orchestrator) auditLog(ctx context.Context, event string, detail map[string]any) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Log(ctx, event, detail); err != nil {
		o.logger.WarnContext(ctx, "ledger: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// anchorEntry asks the anchorer for an external hash and attaches it to the
// committed entry. Strictly best-effort: any failure is logged and dropped.
func (o *Orchestrator) anchorEntry(ctx context.Context, tx domain.Transaction) {
	if o.anchor == nil || tx.AnchorHash != nil {
		return
	}
	hash, err := o.anchor.Anchor(ctx, tx)
	if err != nil {
		o.logger.WarnContext(ctx, "ledger: anchor failed",
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := o.store.Transactions().AttachHash(ctx, tx.ID, hash); err != nil {
		o.logger.WarnContext(ctx, "ledger: attach anchor hash failed",
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()),
		)
	}
}
