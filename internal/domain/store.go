package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// WalletStore persists wallet accounts. Update must compare-and-swap on
// Wallet.Version and return ErrConflict on mismatch.
type WalletStore interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, userID string) (Wallet, error)
	Update(ctx context.Context, w Wallet) error
}

// PropertyStore persists property token inventories. Update must
// compare-and-swap on Property.Version and return ErrConflict on mismatch.
type PropertyStore interface {
	Create(ctx context.Context, p Property) error
	Get(ctx context.Context, id string) (Property, error)
	Update(ctx context.Context, p Property) error
	List(ctx context.Context, opts ListOpts) ([]Property, error)
}

// InvestmentStore persists positions, including their dividend and
// sell-order sub-ledgers. Update must compare-and-swap on Version.
type InvestmentStore interface {
	Create(ctx context.Context, inv Investment) error
	Get(ctx context.Context, id string) (Investment, error)
	Update(ctx context.Context, inv Investment) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Investment, error)
	ListActiveByProperty(ctx context.Context, propertyID string) ([]Investment, error)
}

// TransactionStore persists journal entries. Entries are append-oriented:
// after Create, only UpdateStatus and AttachHash touch a row.
type TransactionStore interface {
	Create(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)

	// UpdateStatus transitions an entry from the expected status, stamping
	// completedAt when non-nil. It must be conditional on the current status
	// matching expect and return ErrInvalidState otherwise, which is what
	// makes duplicate confirmations single-shot.
	UpdateStatus(ctx context.Context, id string, expect, next TransactionStatus, completedAt *time.Time) error

	// AttachHash annotates an entry with an external anchor hash. The hash is
	// globally unique when present.
	AttachHash(ctx context.Context, id, hash string) error

	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
}

// LedgerTx is the set of stores visible inside one atomic unit. Every
// multi-record mutation in the orchestrator runs against a LedgerTx so that
// either all of its writes commit or none do.
type LedgerTx interface {
	Wallets() WalletStore
	Properties() PropertyStore
	Investments() InvestmentStore
	Transactions() TransactionStore
}

// LedgerStore is the persistence boundary of the ledger. Reads outside an
// atomic unit go through the embedded LedgerTx view; mutations go through
// Atomic, which either commits every write made through the passed LedgerTx
// or rolls all of them back.
type LedgerStore interface {
	LedgerTx
	Atomic(ctx context.Context, fn func(tx LedgerTx) error) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// LockManager provides per-entity advisory locks used to serialize
// multi-record operations across processes. Acquire returns an unlock
// function on success and ErrLockHeld when another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// EventBus publishes committed ledger events to interested consumers and
// lets the API layer subscribe to them.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter bounds the rate of mutating API calls per caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
