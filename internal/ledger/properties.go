package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// PropertyRequest describes a new token inventory. The catalog owns the
// presentation metadata; the ledger only records the fields that money and
// tokens move against.
type PropertyRequest struct {
	OwnerID       string
	Category      domain.PropertyCategory
	TotalTokens   int64
	TokenPrice    decimal.Decimal
	MinInvestment decimal.Decimal
	WindowStart   *time.Time
	WindowEnd     *time.Time
}

// CreateProperty registers a new inventory in Draft status with all tokens
// available.
func (o *Orchestrator) CreateProperty(ctx context.Context, req PropertyRequest) (domain.Property, error) {
	if req.OwnerID == "" {
		return domain.Property{}, fmt.Errorf("ledger: property: missing owner id: %w", domain.ErrValidation)
	}
	if req.TotalTokens <= 0 {
		return domain.Property{}, fmt.Errorf("ledger: property: total tokens must be positive: %w", domain.ErrValidation)
	}
	if req.TokenPrice.Sign() <= 0 {
		return domain.Property{}, fmt.Errorf("ledger: property: token price must be positive: %w", domain.ErrValidation)
	}
	if req.MinInvestment.Sign() < 0 {
		return domain.Property{}, fmt.Errorf("ledger: property: min investment must not be negative: %w", domain.ErrValidation)
	}
	switch req.Category {
	case domain.PropertyCategoryResidential, domain.PropertyCategoryCommercial,
		domain.PropertyCategoryIndustrial, domain.PropertyCategoryLand:
	default:
		return domain.Property{}, fmt.Errorf("ledger: property: unknown category %q: %w", req.Category, domain.ErrValidation)
	}
	if req.WindowStart != nil && req.WindowEnd != nil && req.WindowEnd.Before(*req.WindowStart) {
		return domain.Property{}, fmt.Errorf("ledger: property: window ends before it starts: %w", domain.ErrValidation)
	}

	now := o.now()
	prop := domain.Property{
		ID:              uuid.New().String(),
		OwnerID:         req.OwnerID,
		Category:        req.Category,
		TotalTokens:     req.TotalTokens,
		AvailableTokens: req.TotalTokens,
		TokenPrice:      req.TokenPrice,
		MinInvestment:   req.MinInvestment,
		Status:          domain.PropertyStatusDraft,
		WindowStart:     req.WindowStart,
		WindowEnd:       req.WindowEnd,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := o.atomically(ctx, []string{propertyKey(prop.ID)}, func(tx domain.LedgerTx) error {
		if err := tx.Properties().Create(ctx, prop); err != nil {
			return fmt.Errorf("ledger: property: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Property{}, err
	}

	o.publish(ctx, "properties", map[string]any{
		"event":        "property.created",
		"property_id":  prop.ID,
		"owner_id":     prop.OwnerID,
		"total_tokens": prop.TotalTokens,
	})
	o.auditLog(ctx, "property.created", map[string]any{
		"property_id":  prop.ID,
		"owner_id":     prop.OwnerID,
		"total_tokens": prop.TotalTokens,
	})

	o.logger.InfoContext(ctx, "ledger: property created",
		slog.String("property_id", prop.ID),
		slog.Int64("total_tokens", prop.TotalTokens),
	)
	return prop, nil
}

// TransitionProperty moves a property along its status FSM. Only the
// property owner may transition it; edges not in PropertyTransitions are
// rejected with ErrInvalidState.
func (o *Orchestrator) TransitionProperty(ctx context.Context, propertyID string, next domain.PropertyStatus, actorID string) (domain.Property, error) {
	var updated domain.Property
	err := o.atomically(ctx, []string{propertyKey(propertyID)}, func(tx domain.LedgerTx) error {
		prop, err := tx.Properties().Get(ctx, propertyID)
		if err != nil {
			return fmt.Errorf("ledger: transition: load property %s: %w", propertyID, err)
		}
		if prop.OwnerID != actorID {
			return fmt.Errorf("ledger: transition: %s does not own property %s: %w", actorID, propertyID, domain.ErrPermissionDenied)
		}
		if err := prop.TransitionTo(next); err != nil {
			return fmt.Errorf("ledger: transition property %s: %w", propertyID, err)
		}
		prop.UpdatedAt = o.now()
		if err := tx.Properties().Update(ctx, prop); err != nil {
			return fmt.Errorf("ledger: transition: update property: %w", err)
		}
		updated = prop
		return nil
	})
	if err != nil {
		return domain.Property{}, err
	}

	o.publish(ctx, "properties", map[string]any{
		"event":       "property.transitioned",
		"property_id": propertyID,
		"status":      string(next),
	})
	o.auditLog(ctx, "property.transitioned", map[string]any{
		"property_id": propertyID,
		"actor_id":    actorID,
		"status":      string(next),
	})
	return updated, nil
}

// SetFundingWindow updates the investment window bounds. Nil bounds are
// treated as unset (open-ended).
func (o *Orchestrator) SetFundingWindow(ctx context.Context, propertyID string, start, end *time.Time, actorID string) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("ledger: window: ends before it starts: %w", domain.ErrValidation)
	}
	return o.atomically(ctx, []string{propertyKey(propertyID)}, func(tx domain.LedgerTx) error {
		prop, err := tx.Properties().Get(ctx, propertyID)
		if err != nil {
			return fmt.Errorf("ledger: window: load property %s: %w", propertyID, err)
		}
		if prop.OwnerID != actorID {
			return fmt.Errorf("ledger: window: %s does not own property %s: %w", actorID, propertyID, domain.ErrPermissionDenied)
		}
		prop.WindowStart = start
		prop.WindowEnd = end
		prop.UpdatedAt = o.now()
		if err := tx.Properties().Update(ctx, prop); err != nil {
			return fmt.Errorf("ledger: window: update property: %w", err)
		}
		return nil
	})
}
