package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// InvestmentStore implements domain.InvestmentStore using PostgreSQL. The
// dividend and sell-order sub-ledgers live in JSONB columns on the position
// row, so a position and its sub-ledgers always update as one unit.
type InvestmentStore struct {
	q Querier
}

// NewInvestmentStore creates an InvestmentStore against the given querier.
func NewInvestmentStore(q Querier) *InvestmentStore {
	return &InvestmentStore{q: q}
}

// Create inserts a new position at version 1.
func (s *InvestmentStore) Create(ctx context.Context, inv domain.Investment) error {
	dividends, sellOrders, err := marshalSubLedgers(inv)
	if err != nil {
		return fmt.Errorf("postgres: create investment %s: %w", inv.ID, err)
	}

	const query = `
		INSERT INTO investments (
			id, user_id, property_id, tokens_purchased, investment_amount,
			token_price, current_value, status, dividends, sell_orders,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`

	_, err = s.q.Exec(ctx, query,
		inv.ID, inv.UserID, inv.PropertyID, inv.TokensPurchased,
		inv.InvestmentAmount.String(), inv.TokenPrice.String(), inv.CurrentValue.String(),
		string(inv.Status), dividends, sellOrders, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("postgres: create investment %s: %w", inv.ID, err))
	}
	return nil
}

func marshalSubLedgers(inv domain.Investment) ([]byte, []byte, error) {
	dividends, err := json.Marshal(orEmptyDividends(inv.Dividends))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal dividends: %w", err)
	}
	sellOrders, err := json.Marshal(orEmptySellOrders(inv.SellOrders))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal sell orders: %w", err)
	}
	return dividends, sellOrders, nil
}

func orEmptyDividends(d []domain.Dividend) []domain.Dividend {
	if d == nil {
		return []domain.Dividend{}
	}
	return d
}

func orEmptySellOrders(o []domain.SellOrder) []domain.SellOrder {
	if o == nil {
		return []domain.SellOrder{}
	}
	return o
}

const investmentSelectCols = `id, user_id, property_id, tokens_purchased, investment_amount,
	token_price, current_value, status, dividends, sell_orders,
	created_at, updated_at, version`

func scanInvestmentFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Investment, error) {
	var (
		inv                  domain.Investment
		amount, price, value string
		status               string
		dividends, orders    []byte
	)
	err := scanner.Scan(
		&inv.ID, &inv.UserID, &inv.PropertyID, &inv.TokensPurchased,
		&amount, &price, &value, &status, &dividends, &orders,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.Version,
	)
	if err != nil {
		return domain.Investment{}, err
	}
	inv.Status = domain.InvestmentStatus(status)
	if inv.InvestmentAmount, err = decimal.NewFromString(amount); err != nil {
		return domain.Investment{}, fmt.Errorf("investment_amount: %w", err)
	}
	if inv.TokenPrice, err = decimal.NewFromString(price); err != nil {
		return domain.Investment{}, fmt.Errorf("token_price: %w", err)
	}
	if inv.CurrentValue, err = decimal.NewFromString(value); err != nil {
		return domain.Investment{}, fmt.Errorf("current_value: %w", err)
	}
	if err := json.Unmarshal(dividends, &inv.Dividends); err != nil {
		return domain.Investment{}, fmt.Errorf("dividends: %w", err)
	}
	if err := json.Unmarshal(orders, &inv.SellOrders); err != nil {
		return domain.Investment{}, fmt.Errorf("sell_orders: %w", err)
	}
	return inv, nil
}

// Get retrieves one position by id, sub-ledgers included.
func (s *InvestmentStore) Get(ctx context.Context, id string) (domain.Investment, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+investmentSelectCols+` FROM investments WHERE id = $1`, id)

	inv, err := scanInvestmentFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Investment{}, domain.ErrNotFound
		}
		return domain.Investment{}, fmt.Errorf("postgres: get investment %s: %w", id, err)
	}
	return inv, nil
}

// Update writes the position and its sub-ledgers back, compare-and-swapping
// on version.
func (s *InvestmentStore) Update(ctx context.Context, inv domain.Investment) error {
	dividends, sellOrders, err := marshalSubLedgers(inv)
	if err != nil {
		return fmt.Errorf("postgres: update investment %s: %w", inv.ID, err)
	}

	const query = `
		UPDATE investments
		SET current_value = $1, status = $2, dividends = $3, sell_orders = $4,
			updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`

	tag, err := s.q.Exec(ctx, query,
		inv.CurrentValue.String(), string(inv.Status), dividends, sellOrders,
		inv.UpdatedAt, inv.ID, inv.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update investment %s: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, inv.ID)
	}
	return nil
}

func (s *InvestmentStore) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := s.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM investments WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check investment %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// ListByUser returns a user's positions ordered by creation time.
func (s *InvestmentStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Investment, error) {
	query := `SELECT ` + investmentSelectCols + ` FROM investments WHERE user_id = $1 ORDER BY created_at`
	args := []any{userID}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list investments: %w", err)
	}
	defer rows.Close()

	return scanInvestmentRows(rows)
}

// ListActiveByProperty returns every active position against one property.
func (s *InvestmentStore) ListActiveByProperty(ctx context.Context, propertyID string) ([]domain.Investment, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+investmentSelectCols+` FROM investments
		 WHERE property_id = $1 AND status = 'active'
		 ORDER BY created_at`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list investments by property: %w", err)
	}
	defer rows.Close()

	return scanInvestmentRows(rows)
}

func scanInvestmentRows(rows pgx.Rows) ([]domain.Investment, error) {
	var invs []domain.Investment
	for rows.Next() {
		inv, err := scanInvestmentFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan investment: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan investments: %w", err)
	}
	return invs, nil
}
