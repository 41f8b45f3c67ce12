package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
	"github.com/brickfolio/brickfolio/internal/ledger"
)

// PropertyService defines what the property handler needs from the ledger.
type PropertyService interface {
	CreateProperty(ctx context.Context, req ledger.PropertyRequest) (domain.Property, error)
	TransitionProperty(ctx context.Context, propertyID string, next domain.PropertyStatus, actorID string) (domain.Property, error)
	SetFundingWindow(ctx context.Context, propertyID string, start, end *time.Time, actorID string) error
	Property(ctx context.Context, id string) (domain.Property, error)
	ListProperties(ctx context.Context, opts domain.ListOpts) ([]domain.Property, error)
}

// PropertyCache is the optional read-through cache in front of property
// lookups. A nil cache disables caching.
type PropertyCache interface {
	Get(ctx context.Context, id string) (domain.Property, error)
	Set(ctx context.Context, p domain.Property) error
	Invalidate(ctx context.Context, id string) error
}

// PropertyHandler serves property inventory endpoints.
type PropertyHandler struct {
	ledger PropertyService
	cache  PropertyCache
	logger *slog.Logger
}

// NewPropertyHandler creates a PropertyHandler. cache may be nil.
func NewPropertyHandler(ledger PropertyService, cache PropertyCache, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{
		ledger: ledger,
		cache:  cache,
		logger: logger,
	}
}

// propertyResponse is the wire shape of a property inventory.
type propertyResponse struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Category        string     `json:"category"`
	TotalTokens     int64      `json:"total_tokens"`
	AvailableTokens int64      `json:"available_tokens"`
	TokenPrice      string     `json:"token_price"`
	MinInvestment   string     `json:"min_investment"`
	Status          string     `json:"status"`
	FundingPercent  float64    `json:"funding_percent"`
	WindowStart     *time.Time `json:"window_start,omitempty"`
	WindowEnd       *time.Time `json:"window_end,omitempty"`
	CreatedAt       string     `json:"created_at"`
}

func toPropertyResponse(p domain.Property) propertyResponse {
	return propertyResponse{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Category:        string(p.Category),
		TotalTokens:     p.TotalTokens,
		AvailableTokens: p.AvailableTokens,
		TokenPrice:      p.TokenPrice.String(),
		MinInvestment:   p.MinInvestment.String(),
		Status:          string(p.Status),
		FundingPercent:  p.FundingPercent(),
		WindowStart:     p.WindowStart,
		WindowEnd:       p.WindowEnd,
		CreatedAt:       p.CreatedAt.Format(timeFormat),
	}
}

// createPropertyRequest is the JSON body for property creation.
type createPropertyRequest struct {
	Category      string          `json:"category"`
	TotalTokens   int64           `json:"total_tokens"`
	TokenPrice    decimal.Decimal `json:"token_price"`
	MinInvestment decimal.Decimal `json:"min_investment"`
	WindowStart   *time.Time      `json:"window_start"`
	WindowEnd     *time.Time      `json:"window_end"`
}

// CreateProperty registers a new token inventory owned by the caller.
// POST /api/properties
func (h *PropertyHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	var body createPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	prop, err := h.ledger.CreateProperty(r.Context(), ledger.PropertyRequest{
		OwnerID:       actor,
		Category:      domain.PropertyCategory(body.Category),
		TotalTokens:   body.TotalTokens,
		TokenPrice:    body.TokenPrice,
		MinInvestment: body.MinInvestment,
		WindowStart:   body.WindowStart,
		WindowEnd:     body.WindowEnd,
	})
	if err != nil {
		writeDomainError(w, err, "failed to create property")
		return
	}

	writeJSON(w, http.StatusCreated, toPropertyResponse(prop))
}

// GetProperty returns one inventory, served from the cache when possible.
// GET /api/properties/{id}
func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing property id")
		return
	}

	if h.cache != nil {
		if p, err := h.cache.Get(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, toPropertyResponse(p))
			return
		}
	}

	prop, err := h.ledger.Property(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load property")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), prop); err != nil {
			h.logger.WarnContext(r.Context(), "handler: property cache set failed",
				slog.String("property_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, toPropertyResponse(prop))
}

// ListProperties returns inventories with pagination.
// GET /api/properties?limit=50&offset=0
func (h *PropertyHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	props, err := h.ledger.ListProperties(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err, "failed to list properties")
		return
	}

	out := make([]propertyResponse, 0, len(props))
	for _, p := range props {
		out = append(out, toPropertyResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": out})
}

// transitionRequest is the JSON body for a status transition.
type transitionRequest struct {
	Status string `json:"status"`
}

// TransitionProperty moves a property along its lifecycle.
// POST /api/properties/{id}/transition
func (h *PropertyHandler) TransitionProperty(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing property id or X-Actor-ID header")
		return
	}

	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	prop, err := h.ledger.TransitionProperty(r.Context(), id, domain.PropertyStatus(body.Status), actor)
	if err != nil {
		writeDomainError(w, err, "failed to transition property")
		return
	}

	h.invalidate(r.Context(), id)
	writeJSON(w, http.StatusOK, toPropertyResponse(prop))
}

// windowRequest is the JSON body for setting a funding window.
type windowRequest struct {
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
}

// SetFundingWindow updates a property's investment window bounds.
// PUT /api/properties/{id}/window
func (h *PropertyHandler) SetFundingWindow(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing property id or X-Actor-ID header")
		return
	}

	var body windowRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.ledger.SetFundingWindow(r.Context(), id, body.WindowStart, body.WindowEnd, actor); err != nil {
		writeDomainError(w, err, "failed to set funding window")
		return
	}

	h.invalidate(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "property_id": id})
}

func (h *PropertyHandler) invalidate(ctx context.Context, id string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "handler: property cache invalidate failed",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
	}
}
