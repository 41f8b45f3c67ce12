package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/brickfolio/brickfolio/internal/domain"
	"github.com/brickfolio/brickfolio/internal/ledger"
)

// InvestmentService defines what the investment handler needs from the
// ledger.
type InvestmentService interface {
	PurchaseInvestment(ctx context.Context, req ledger.PurchaseRequest) (domain.Investment, domain.Transaction, error)
	CreateSellOrder(ctx context.Context, positionID, actorID string, quantity int64, price decimal.Decimal) (domain.SellOrder, error)
	CancelSellOrder(ctx context.Context, positionID, orderID, actorID string) error
	AddDividend(ctx context.Context, positionID string, amount decimal.Decimal, kind domain.DividendKind, actorID string) (domain.Dividend, error)
	UpdateInvestmentValue(ctx context.Context, positionID string, newValue decimal.Decimal, actorID string) error
	Investment(ctx context.Context, id string) (domain.Investment, error)
	ListInvestments(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Investment, error)
}

// InvestmentHandler serves position endpoints.
type InvestmentHandler struct {
	ledger InvestmentService
	logger *slog.Logger
}

// NewInvestmentHandler creates an InvestmentHandler.
func NewInvestmentHandler(ledger InvestmentService, logger *slog.Logger) *InvestmentHandler {
	return &InvestmentHandler{
		ledger: ledger,
		logger: logger,
	}
}

// investmentResponse is the wire shape of a position.
type investmentResponse struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	PropertyID       string             `json:"property_id"`
	TokensPurchased  int64              `json:"tokens_purchased"`
	InvestmentAmount string             `json:"investment_amount"`
	TokenPrice       string             `json:"token_price"`
	CurrentValue     string             `json:"current_value"`
	Status           string             `json:"status"`
	Dividends        []domain.Dividend  `json:"dividends"`
	SellOrders       []domain.SellOrder `json:"sell_orders"`
	CreatedAt        string             `json:"created_at"`
}

func toInvestmentResponse(inv domain.Investment) investmentResponse {
	dividends := inv.Dividends
	if dividends == nil {
		dividends = []domain.Dividend{}
	}
	orders := inv.SellOrders
	if orders == nil {
		orders = []domain.SellOrder{}
	}
	return investmentResponse{
		ID:               inv.ID,
		UserID:           inv.UserID,
		PropertyID:       inv.PropertyID,
		TokensPurchased:  inv.TokensPurchased,
		InvestmentAmount: inv.InvestmentAmount.String(),
		TokenPrice:       inv.TokenPrice.String(),
		CurrentValue:     inv.CurrentValue.String(),
		Status:           string(inv.Status),
		Dividends:        dividends,
		SellOrders:       orders,
		CreatedAt:        inv.CreatedAt.Format(timeFormat),
	}
}

// purchaseRequest is the JSON body for a purchase. Either tokens or amount
// must be given; when both are present the token count wins.
type purchaseRequest struct {
	PropertyID string          `json:"property_id"`
	Tokens     int64           `json:"tokens"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// Purchase buys tokens in a property for the calling user.
// POST /api/investments
func (h *InvestmentHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	var body purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.PropertyID == "" {
		writeError(w, http.StatusBadRequest, "property_id is required")
		return
	}

	inv, entry, err := h.ledger.PurchaseInvestment(r.Context(), ledger.PurchaseRequest{
		UserID:     actor,
		PropertyID: body.PropertyID,
		Tokens:     body.Tokens,
		Amount:     body.Amount,
		Currency:   domain.Currency(body.Currency),
	})
	if err != nil {
		writeDomainError(w, err, "failed to purchase investment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"investment":     toInvestmentResponse(inv),
		"transaction_id": entry.ID,
	})
}

// GetInvestment returns one position.
// GET /api/investments/{id}
func (h *InvestmentHandler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing investment id")
		return
	}

	inv, err := h.ledger.Investment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load investment")
		return
	}

	writeJSON(w, http.StatusOK, toInvestmentResponse(inv))
}

// ListInvestments returns the calling user's positions.
// GET /api/investments?limit=50&offset=0
func (h *InvestmentHandler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	invs, err := h.ledger.ListInvestments(r.Context(), actor, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err, "failed to list investments")
		return
	}

	out := make([]investmentResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvestmentResponse(inv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"investments": out})
}

// sellOrderRequest is the JSON body for creating a sell order.
type sellOrderRequest struct {
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// CreateSellOrder records a standing sell offer on a position.
// POST /api/investments/{id}/sell-orders
func (h *InvestmentHandler) CreateSellOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing investment id or X-Actor-ID header")
		return
	}

	var body sellOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.ledger.CreateSellOrder(r.Context(), id, actor, body.Quantity, body.Price)
	if err != nil {
		writeDomainError(w, err, "failed to create sell order")
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// CancelSellOrder cancels an open sell order.
// DELETE /api/investments/{id}/sell-orders/{order_id}
func (h *InvestmentHandler) CancelSellOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	orderID := pathParam(r, "order_id")
	actor := actorID(r)
	if id == "" || orderID == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing ids or X-Actor-ID header")
		return
	}

	if err := h.ledger.CancelSellOrder(r.Context(), id, orderID, actor); err != nil {
		writeDomainError(w, err, "failed to cancel sell order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": orderID,
	})
}

// dividendRequest is the JSON body for a dividend distribution.
type dividendRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Kind   string          `json:"kind"`
}

// AddDividend distributes a dividend to one position. Only the property
// owner may call this.
// POST /api/investments/{id}/dividends
func (h *InvestmentHandler) AddDividend(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing investment id or X-Actor-ID header")
		return
	}

	var body dividendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	kind := domain.DividendKind(body.Kind)
	if kind == "" {
		kind = domain.DividendKindRental
	}

	dividend, err := h.ledger.AddDividend(r.Context(), id, body.Amount, kind, actor)
	if err != nil {
		writeDomainError(w, err, "failed to add dividend")
		return
	}

	writeJSON(w, http.StatusCreated, dividend)
}

// revalueRequest is the JSON body for a valuation update.
type revalueRequest struct {
	CurrentValue decimal.Decimal `json:"current_value"`
}

// UpdateValue sets a position's current valuation. Only the property owner
// may call this.
// PUT /api/investments/{id}/value
func (h *InvestmentHandler) UpdateValue(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing investment id or X-Actor-ID header")
		return
	}

	var body revalueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.ledger.UpdateInvestmentValue(r.Context(), id, body.CurrentValue, actor); err != nil {
		writeDomainError(w, err, "failed to update valuation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "updated",
		"investment_id": id,
	})
}
