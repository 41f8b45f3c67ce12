package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProperty() Property {
	return Property{
		ID:              "prop-1",
		OwnerID:         "owner-1",
		Category:        PropertyCategoryResidential,
		TotalTokens:     1000,
		AvailableTokens: 1000,
		TokenPrice:      decimal.NewFromInt(50),
		MinInvestment:   decimal.NewFromInt(100),
		Status:          PropertyStatusFunding,
	}
}

func TestPropertyReserve(t *testing.T) {
	t.Parallel()

	t.Run("reserves inventory", func(t *testing.T) {
		p := testProperty()
		require.NoError(t, p.Reserve(300))
		assert.Equal(t, int64(700), p.AvailableTokens)
	})

	t.Run("last token", func(t *testing.T) {
		p := testProperty()
		p.AvailableTokens = 1
		require.NoError(t, p.Reserve(1))
		assert.Equal(t, int64(0), p.AvailableTokens)
	})

	t.Run("oversell rejected", func(t *testing.T) {
		p := testProperty()
		p.AvailableTokens = 10
		err := p.Reserve(11)
		assert.ErrorIs(t, err, ErrInsufficientInventory)
		assert.Equal(t, int64(10), p.AvailableTokens)
	})

	t.Run("non-positive rejected", func(t *testing.T) {
		p := testProperty()
		assert.ErrorIs(t, p.Reserve(0), ErrValidation)
		assert.ErrorIs(t, p.Reserve(-3), ErrValidation)
	})
}

func TestPropertyRelease(t *testing.T) {
	t.Parallel()

	p := testProperty()
	require.NoError(t, p.Reserve(400))
	require.NoError(t, p.Release(100))
	assert.Equal(t, int64(700), p.AvailableTokens)

	// Releasing beyond the fixed supply violates conservation.
	err := p.Release(301)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(700), p.AvailableTokens)
}

func TestPropertyFundingPercent(t *testing.T) {
	t.Parallel()

	p := testProperty()
	assert.InDelta(t, 0.0, p.FundingPercent(), 1e-9)

	require.NoError(t, p.Reserve(250))
	assert.InDelta(t, 0.25, p.FundingPercent(), 1e-9)

	require.NoError(t, p.Reserve(750))
	assert.InDelta(t, 1.0, p.FundingPercent(), 1e-9)

	zero := Property{}
	assert.InDelta(t, 0.0, zero.FundingPercent(), 1e-9)
}

func TestPropertyAcceptsPurchases(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name   string
		status PropertyStatus
		start  *time.Time
		end    *time.Time
		want   bool
	}{
		{"funding no window", PropertyStatusFunding, nil, nil, true},
		{"funding inside window", PropertyStatusFunding, &before, &after, true},
		{"funding before window", PropertyStatusFunding, &after, nil, false},
		{"funding after window", PropertyStatusFunding, nil, &before, false},
		{"draft never", PropertyStatusDraft, nil, nil, false},
		{"active never", PropertyStatusActive, nil, nil, false},
		{"closed never", PropertyStatusClosed, nil, nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := testProperty()
			p.Status = tt.status
			p.WindowStart = tt.start
			p.WindowEnd = tt.end
			assert.Equal(t, tt.want, p.AcceptsPurchases(now))
		})
	}
}

func TestPropertyTransitionTo(t *testing.T) {
	t.Parallel()

	p := testProperty()
	p.Status = PropertyStatusDraft

	require.NoError(t, p.TransitionTo(PropertyStatusFunding))
	assert.Equal(t, PropertyStatusFunding, p.Status)

	err := p.TransitionTo(PropertyStatusDraft)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, PropertyStatusFunding, p.Status)
}
