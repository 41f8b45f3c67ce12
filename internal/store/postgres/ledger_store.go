package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx. Every
// entity store is written against it, so the same store code serves both
// auto-commit reads and writes inside an atomic unit.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// LedgerStore implements domain.LedgerStore on a connection pool. Atomic
// sections run inside a single database transaction, so either every write
// made through the passed LedgerTx commits or none do.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the client's pool.
func NewLedgerStore(client *Client) *LedgerStore {
	return &LedgerStore{pool: client.Pool()}
}

func (s *LedgerStore) Wallets() domain.WalletStore           { return &WalletStore{q: s.pool} }
func (s *LedgerStore) Properties() domain.PropertyStore      { return &PropertyStore{q: s.pool} }
func (s *LedgerStore) Investments() domain.InvestmentStore   { return &InvestmentStore{q: s.pool} }
func (s *LedgerStore) Transactions() domain.TransactionStore { return &TransactionStore{q: s.pool} }

// Atomic runs fn inside one database transaction and commits only when fn
// returns nil. Serialization failures surface as domain.ErrConflict so the
// orchestrator's retry loop can handle them uniformly with version
// mismatches.
func (s *LedgerStore) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txView{q: tx}); err != nil {
		return translateErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateErr(fmt.Errorf("postgres: commit: %w", err))
	}
	return nil
}

// txView exposes the entity stores bound to one transaction.
type txView struct {
	q pgx.Tx
}

func (v *txView) Wallets() domain.WalletStore           { return &WalletStore{q: v.q} }
func (v *txView) Properties() domain.PropertyStore      { return &PropertyStore{q: v.q} }
func (v *txView) Investments() domain.InvestmentStore   { return &InvestmentStore{q: v.q} }
func (v *txView) Transactions() domain.TransactionStore { return &TransactionStore{q: v.q} }

// translateErr maps driver-level conflicts onto the domain error taxonomy.
// 40001 is serialization_failure, 40P01 deadlock_detected, 23505 a unique
// violation (duplicate id or anchor hash).
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%v: %w", err, domain.ErrConflict)
		}
	}
	return err
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
