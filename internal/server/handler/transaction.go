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

// TransactionService defines what the transaction handler needs from the
// ledger.
type TransactionService interface {
	CreateDeposit(ctx context.Context, req ledger.CashflowRequest) (domain.Transaction, error)
	CreateWithdrawal(ctx context.Context, req ledger.CashflowRequest) (domain.Transaction, error)
	ConfirmTransaction(ctx context.Context, entryID, actorID string, externalHash *string) (domain.Transaction, error)
	CancelTransaction(ctx context.Context, entryID, actorID string) error
	ProcessRefund(ctx context.Context, entryID, reason, actorID string) (domain.Transaction, error)
	Transaction(ctx context.Context, id string) (domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error)
}

// TransactionHandler serves journal endpoints.
type TransactionHandler struct {
	ledger TransactionService
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(ledger TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledger,
		logger: logger,
	}
}

// transactionResponse is the wire shape of a journal entry.
type transactionResponse struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Type          string            `json:"type"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Related       *domain.EntityRef `json:"related,omitempty"`
	PaymentMethod *string           `json:"payment_method,omitempty"`
	AnchorHash    *string           `json:"anchor_hash,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Fee           string            `json:"fee"`
	CreatedAt     string            `json:"created_at"`
	CompletedAt   *string           `json:"completed_at,omitempty"`
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:         tx.ID,
		UserID:     tx.UserID,
		Type:       string(tx.Type),
		Amount:     tx.Amount.String(),
		Currency:   string(tx.Currency),
		Status:     string(tx.Status),
		Related:    tx.Related,
		AnchorHash: tx.AnchorHash,
		Metadata:   tx.Metadata,
		Fee:        tx.Fee.String(),
		CreatedAt:  tx.CreatedAt.Format(timeFormat),
	}
	if tx.PaymentMethod != nil {
		pm := string(*tx.PaymentMethod)
		resp.PaymentMethod = &pm
	}
	if tx.CompletedAt != nil {
		at := tx.CompletedAt.Format(timeFormat)
		resp.CompletedAt = &at
	}
	return resp
}

// cashflowRequest is the JSON body for deposits and withdrawals.
type cashflowRequest struct {
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"payment_method"`
	Fee           decimal.Decimal   `json:"fee"`
	Metadata      map[string]string `json:"metadata"`
}

func (h *TransactionHandler) decodeCashflow(r *http.Request) (ledger.CashflowRequest, string, error) {
	actor := actorID(r)
	var body cashflowRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ledger.CashflowRequest{}, actor, err
	}

	req := ledger.CashflowRequest{
		UserID:   actor,
		Amount:   body.Amount,
		Currency: domain.Currency(body.Currency),
		Fee:      body.Fee,
		Metadata: body.Metadata,
	}
	if body.PaymentMethod != "" {
		pm := domain.PaymentMethod(body.PaymentMethod)
		req.PaymentMethod = &pm
	}
	return req, actor, nil
}

// CreateDeposit records a pending deposit for the calling user.
// POST /api/transactions/deposits
func (h *TransactionHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	req, actor, err := h.decodeCashflow(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.ledger.CreateDeposit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "failed to create deposit")
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(entry))
}

// CreateWithdrawal records a pending withdrawal for the calling user.
// POST /api/transactions/withdrawals
func (h *TransactionHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	req, actor, err := h.decodeCashflow(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.ledger.CreateWithdrawal(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "failed to create withdrawal")
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(entry))
}

// confirmRequest is the JSON body for a confirmation.
type confirmRequest struct {
	ExternalHash *string `json:"external_hash"`
}

// Confirm completes a pending deposit or withdrawal, applying the wallet
// delta exactly once.
// POST /api/transactions/{id}/confirm
func (h *TransactionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id or X-Actor-ID header")
		return
	}

	var body confirmRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	entry, err := h.ledger.ConfirmTransaction(r.Context(), id, actor, body.ExternalHash)
	if err != nil {
		writeDomainError(w, err, "failed to confirm transaction")
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(entry))
}

// Cancel fails a pending entry owned by the caller.
// POST /api/transactions/{id}/cancel
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id or X-Actor-ID header")
		return
	}

	if err := h.ledger.CancelTransaction(r.Context(), id, actor); err != nil {
		writeDomainError(w, err, "failed to cancel transaction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "cancelled",
		"transaction_id": id,
	})
}

// refundRequest is the JSON body for a refund.
type refundRequest struct {
	Reason string `json:"reason"`
}

// Refund reverses a completed deposit or purchase with a compensating entry.
// POST /api/transactions/{id}/refund
func (h *TransactionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	actor := actorID(r)
	if id == "" || actor == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id or X-Actor-ID header")
		return
	}

	var body refundRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	compensating, err := h.ledger.ProcessRefund(r.Context(), id, body.Reason, actor)
	if err != nil {
		writeDomainError(w, err, "failed to process refund")
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(compensating))
}

// GetTransaction returns one journal entry.
// GET /api/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	entry, err := h.ledger.Transaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load transaction")
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(entry))
}

// ListTransactions returns the calling user's journal entries.
// GET /api/transactions?limit=50&offset=0
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Actor-ID header")
		return
	}

	txs, err := h.ledger.ListTransactions(r.Context(), actor, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}
