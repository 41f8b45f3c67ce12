package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	q Querier
}

// NewWalletStore creates a WalletStore against the given querier.
func NewWalletStore(q Querier) *WalletStore {
	return &WalletStore{q: q}
}

// Create inserts a new wallet at version 1.
func (s *WalletStore) Create(ctx context.Context, w domain.Wallet) error {
	const query = `
		INSERT INTO wallets (user_id, balance, total_invested, updated_at, version)
		VALUES ($1, $2, $3, $4, 1)`

	_, err := s.q.Exec(ctx, query,
		w.UserID, w.Balance.String(), w.TotalInvested.String(), w.UpdatedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("postgres: create wallet %s: %w", w.UserID, err))
	}
	return nil
}

// Get retrieves a wallet by user id.
func (s *WalletStore) Get(ctx context.Context, userID string) (domain.Wallet, error) {
	const query = `
		SELECT user_id, balance, total_invested, updated_at, version
		FROM wallets WHERE user_id = $1`

	var (
		w                 domain.Wallet
		balance, invested string
	)
	err := s.q.QueryRow(ctx, query, userID).Scan(
		&w.UserID, &balance, &invested, &w.UpdatedAt, &w.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, domain.ErrNotFound
		}
		return domain.Wallet{}, fmt.Errorf("postgres: get wallet %s: %w", userID, err)
	}
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return domain.Wallet{}, fmt.Errorf("postgres: wallet %s balance: %w", userID, err)
	}
	if w.TotalInvested, err = decimal.NewFromString(invested); err != nil {
		return domain.Wallet{}, fmt.Errorf("postgres: wallet %s total_invested: %w", userID, err)
	}
	return w, nil
}

// Update writes the wallet back, compare-and-swapping on version. A stale
// version yields ErrConflict; a missing row yields ErrNotFound.
func (s *WalletStore) Update(ctx context.Context, w domain.Wallet) error {
	const query = `
		UPDATE wallets
		SET balance = $1, total_invested = $2, updated_at = $3, version = version + 1
		WHERE user_id = $4 AND version = $5`

	tag, err := s.q.Exec(ctx, query,
		w.Balance.String(), w.TotalInvested.String(), w.UpdatedAt, w.UserID, w.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update wallet %s: %w", w.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, w.UserID)
	}
	return nil
}

func (s *WalletStore) missingOrStale(ctx context.Context, userID string) error {
	var exists bool
	if err := s.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)", userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check wallet %s: %w", userID, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
