package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL. The
// journal is append-oriented: rows are inserted once and only status,
// completed_at and anchor_hash ever change afterwards.
type TransactionStore struct {
	q Querier
}

// NewTransactionStore creates a TransactionStore against the given querier.
func NewTransactionStore(q Querier) *TransactionStore {
	return &TransactionStore{q: q}
}

// Create inserts a new journal entry.
func (s *TransactionStore) Create(ctx context.Context, tx domain.Transaction) error {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: create transaction %s: marshal metadata: %w", tx.ID, err)
	}

	var relatedType, relatedID *string
	if tx.Related != nil {
		rt := string(tx.Related.Type)
		relatedType, relatedID = &rt, &tx.Related.ID
	}
	var paymentMethod *string
	if tx.PaymentMethod != nil {
		pm := string(*tx.PaymentMethod)
		paymentMethod = &pm
	}

	const query = `
		INSERT INTO transactions (
			id, user_id, type, amount, currency, status,
			related_type, related_id, payment_method, anchor_hash,
			metadata, fee, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = s.q.Exec(ctx, query,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount.String(), string(tx.Currency),
		string(tx.Status), relatedType, relatedID, paymentMethod, tx.AnchorHash,
		metadata, tx.Fee.String(), tx.CreatedAt, tx.CompletedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("postgres: create transaction %s: %w", tx.ID, err))
	}
	return nil
}

const transactionSelectCols = `id, user_id, type, amount, currency, status,
	related_type, related_id, payment_method, anchor_hash,
	metadata, fee, created_at, completed_at`

func scanTransactionFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Transaction, error) {
	var (
		tx                     domain.Transaction
		typ, currency, status  string
		amount, fee            string
		relatedType, relatedID *string
		paymentMethod          *string
		metadata               []byte
	)
	err := scanner.Scan(
		&tx.ID, &tx.UserID, &typ, &amount, &currency, &status,
		&relatedType, &relatedID, &paymentMethod, &tx.AnchorHash,
		&metadata, &fee, &tx.CreatedAt, &tx.CompletedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Type = domain.TransactionType(typ)
	tx.Currency = domain.Currency(currency)
	tx.Status = domain.TransactionStatus(status)
	if relatedType != nil && relatedID != nil {
		tx.Related = &domain.EntityRef{Type: domain.EntityType(*relatedType), ID: *relatedID}
	}
	if paymentMethod != nil {
		pm := domain.PaymentMethod(*paymentMethod)
		tx.PaymentMethod = &pm
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	if tx.Fee, err = decimal.NewFromString(fee); err != nil {
		return domain.Transaction{}, fmt.Errorf("fee: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return domain.Transaction{}, fmt.Errorf("metadata: %w", err)
		}
	}
	return tx, nil
}

// Get retrieves one journal entry by id.
func (s *TransactionStore) Get(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions WHERE id = $1`, id)

	tx, err := scanTransactionFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return tx, nil
}

// UpdateStatus transitions an entry conditionally on its current status
// matching expect. The WHERE clause carries the expectation, so a concurrent
// confirmation loses the race at the database and gets ErrInvalidState
// instead of double-applying.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, expect, next domain.TransactionStatus, completedAt *time.Time) error {
	if err := domain.TransactionTransitions.Step(expect, next); err != nil {
		return err
	}

	const query = `
		UPDATE transactions
		SET status = $1, completed_at = COALESCE($2, completed_at)
		WHERE id = $3 AND status = $4`

	tag, err := s.q.Exec(ctx, query, string(next), completedAt, id, string(expect))
	if err != nil {
		return fmt.Errorf("postgres: update transaction status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.q.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check transaction %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: transaction %s is not %s: %w", id, expect, domain.ErrInvalidState)
	}
	return nil
}

// AttachHash annotates an entry with its anchor hash. A unique partial index
// on anchor_hash rejects a hash already attached to another entry.
func (s *TransactionStore) AttachHash(ctx context.Context, id, hash string) error {
	tag, err := s.q.Exec(ctx,
		"UPDATE transactions SET anchor_hash = $1 WHERE id = $2", hash, id)
	if err != nil {
		return translateErr(fmt.Errorf("postgres: attach hash to %s: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser returns a user's journal entries in creation order, filtered and
// paginated per opts.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionSelectCols + ` FROM transactions WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactionRows(rows)
}

// ListBefore returns every entry created before the cutoff, oldest first.
// Used by the archival job.
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions
		 WHERE created_at < $1 ORDER BY created_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before, err)
	}
	defer rows.Close()

	return scanTransactionRows(rows)
}

func scanTransactionRows(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransactionFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan transactions: %w", err)
	}
	return txs, nil
}
