package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// PropertyStore implements domain.PropertyStore using PostgreSQL.
type PropertyStore struct {
	q Querier
}

// NewPropertyStore creates a PropertyStore against the given querier.
func NewPropertyStore(q Querier) *PropertyStore {
	return &PropertyStore{q: q}
}

// Create inserts a new property inventory at version 1.
func (s *PropertyStore) Create(ctx context.Context, p domain.Property) error {
	const query = `
		INSERT INTO properties (
			id, owner_id, category, total_tokens, available_tokens,
			token_price, min_investment, status, window_start, window_end,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`

	_, err := s.q.Exec(ctx, query,
		p.ID, p.OwnerID, string(p.Category), p.TotalTokens, p.AvailableTokens,
		p.TokenPrice.String(), p.MinInvestment.String(), string(p.Status),
		p.WindowStart, p.WindowEnd, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("postgres: create property %s: %w", p.ID, err))
	}
	return nil
}

const propertySelectCols = `id, owner_id, category, total_tokens, available_tokens,
	token_price, min_investment, status, window_start, window_end,
	created_at, updated_at, version`

func scanPropertyFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Property, error) {
	var (
		p                domain.Property
		category, status string
		price, minInv    string
	)
	err := scanner.Scan(
		&p.ID, &p.OwnerID, &category, &p.TotalTokens, &p.AvailableTokens,
		&price, &minInv, &status, &p.WindowStart, &p.WindowEnd,
		&p.CreatedAt, &p.UpdatedAt, &p.Version,
	)
	if err != nil {
		return domain.Property{}, err
	}
	p.Category = domain.PropertyCategory(category)
	p.Status = domain.PropertyStatus(status)
	if p.TokenPrice, err = decimal.NewFromString(price); err != nil {
		return domain.Property{}, fmt.Errorf("token_price: %w", err)
	}
	if p.MinInvestment, err = decimal.NewFromString(minInv); err != nil {
		return domain.Property{}, fmt.Errorf("min_investment: %w", err)
	}
	return p, nil
}

// Get retrieves one property inventory by id.
func (s *PropertyStore) Get(ctx context.Context, id string) (domain.Property, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+propertySelectCols+` FROM properties WHERE id = $1`, id)

	p, err := scanPropertyFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Property{}, domain.ErrNotFound
		}
		return domain.Property{}, fmt.Errorf("postgres: get property %s: %w", id, err)
	}
	return p, nil
}

// Update writes the property back, compare-and-swapping on version.
func (s *PropertyStore) Update(ctx context.Context, p domain.Property) error {
	const query = `
		UPDATE properties
		SET available_tokens = $1, token_price = $2, min_investment = $3,
			status = $4, window_start = $5, window_end = $6,
			updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9`

	tag, err := s.q.Exec(ctx, query,
		p.AvailableTokens, p.TokenPrice.String(), p.MinInvestment.String(),
		string(p.Status), p.WindowStart, p.WindowEnd, p.UpdatedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update property %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, p.ID)
	}
	return nil
}

func (s *PropertyStore) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := s.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM properties WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check property %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// List returns property inventories ordered by creation time with pagination.
func (s *PropertyStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	query := `SELECT ` + propertySelectCols + ` FROM properties ORDER BY created_at`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list properties: %w", err)
	}
	defer rows.Close()

	var props []domain.Property
	for rows.Next() {
		p, err := scanPropertyFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list properties: %w", err)
	}
	return props, nil
}
