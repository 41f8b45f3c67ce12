package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/brickfolio/brickfolio/internal/ledger"
)

// PortfolioService defines the aggregate queries the portfolio handler needs.
type PortfolioService interface {
	Summary(ctx context.Context, userID string) (ledger.PortfolioSummary, error)
	Distribution(ctx context.Context, userID string) ([]ledger.CategorySlice, error)
	MonthlyHistory(ctx context.Context, userID string, months int) ([]ledger.MonthlyFlow, error)
	CheckTokenConservation(ctx context.Context, propertyID string) error
}

// PortfolioHandler serves read-only aggregate endpoints.
type PortfolioHandler struct {
	ledger PortfolioService
	logger *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(ledger PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Summary returns the calling user's portfolio totals.
// GET /api/portfolio/summary
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	sum, err := h.ledger.Summary(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err, "failed to compute summary")
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

// Distribution returns the user's invested amount per property category.
// GET /api/portfolio/distribution
func (h *PortfolioHandler) Distribution(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	slices, err := h.ledger.Distribution(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err, "failed to compute distribution")
		return
	}

	if slices == nil {
		slices = []ledger.CategorySlice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"distribution": slices})
}

// History returns monthly cash flows for the user's journal.
// GET /api/portfolio/history?months=12
func (h *PortfolioHandler) History(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	months := 12
	if v := r.URL.Query().Get("months"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			months = n
		}
	}

	flows, err := h.ledger.MonthlyHistory(r.Context(), actor, months)
	if err != nil {
		writeDomainError(w, err, "failed to compute history")
		return
	}

	if flows == nil {
		flows = []ledger.MonthlyFlow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": flows})
}

// Conservation verifies token conservation for one property. Operational
// endpoint used by monitoring.
// GET /api/properties/{id}/conservation
func (h *PortfolioHandler) Conservation(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing property id")
		return
	}

	if err := h.ledger.CheckTokenConservation(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: conservation check failed",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "conservation violated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "conserved",
		"property_id": id,
	})
}
