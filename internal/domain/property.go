package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PropertyStatus tracks the funding lifecycle of a property.
type PropertyStatus string

const (
	PropertyStatusDraft   PropertyStatus = "draft"
	PropertyStatusActive  PropertyStatus = "active"
	PropertyStatusFunding PropertyStatus = "funding"
	PropertyStatusClosed  PropertyStatus = "closed"
	PropertyStatusSold    PropertyStatus = "sold"
)

// PropertyCategory classifies a property for portfolio distribution queries.
type PropertyCategory string

const (
	PropertyCategoryResidential PropertyCategory = "residential"
	PropertyCategoryCommercial  PropertyCategory = "commercial"
	PropertyCategoryIndustrial  PropertyCategory = "industrial"
	PropertyCategoryLand        PropertyCategory = "land"
)

// Property is the token inventory for a single tokenized property. Title,
// images and other presentation metadata live in the external catalog; the
// ledger owns only the fields that participate in money/token movements.
type Property struct {
	ID              string
	OwnerID         string
	Category        PropertyCategory
	TotalTokens     int64 // fixed at creation
	AvailableTokens int64
	TokenPrice      decimal.Decimal
	MinInvestment   decimal.Decimal
	Status          PropertyStatus

	// Investment window: purchases are accepted only while Status is funding
	// and the current time lies within [WindowStart, WindowEnd]. A nil bound
	// is treated as unset (open-ended on that side).
	WindowStart *time.Time
	WindowEnd   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// FundingPercent returns (total - available) / total in [0, 1].
func (p Property) FundingPercent() float64 {
	if p.TotalTokens <= 0 {
		return 0
	}
	return float64(p.TotalTokens-p.AvailableTokens) / float64(p.TotalTokens)
}

// AcceptsPurchases reports whether a purchase is permitted at the given time:
// the property must be in funding status and inside its investment window.
func (p Property) AcceptsPurchases(at time.Time) bool {
	if p.Status != PropertyStatusFunding {
		return false
	}
	if p.WindowStart != nil && at.Before(*p.WindowStart) {
		return false
	}
	if p.WindowEnd != nil && at.After(*p.WindowEnd) {
		return false
	}
	return true
}

// Reserve removes tokens from availability. It returns
// ErrInsufficientInventory when fewer than tokens are available and
// ErrValidation for non-positive counts.
func (p *Property) Reserve(tokens int64) error {
	if tokens <= 0 {
		return ErrValidation
	}
	if tokens > p.AvailableTokens {
		return ErrInsufficientInventory
	}
	p.AvailableTokens -= tokens
	return nil
}

// Release returns tokens to availability, capped at TotalTokens.
func (p *Property) Release(tokens int64) error {
	if tokens <= 0 {
		return ErrValidation
	}
	if p.AvailableTokens+tokens > p.TotalTokens {
		return ErrValidation
	}
	p.AvailableTokens += tokens
	return nil
}

// TransitionTo moves the property along its status FSM, rejecting edges not
// in PropertyTransitions.
func (p *Property) TransitionTo(next PropertyStatus) error {
	if err := PropertyTransitions.Step(p.Status, next); err != nil {
		return err
	}
	p.Status = next
	return nil
}
