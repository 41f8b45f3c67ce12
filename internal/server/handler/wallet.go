package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// WalletService defines what the wallet handler needs from the ledger.
type WalletService interface {
	Wallet(ctx context.Context, userID string) (domain.Wallet, error)
	EnsureWallet(ctx context.Context, userID string) (domain.Wallet, error)
}

// WalletHandler serves wallet endpoints.
type WalletHandler struct {
	ledger WalletService
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(ledger WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		ledger: ledger,
		logger: logger,
	}
}

// walletResponse is the wire shape of a wallet.
type walletResponse struct {
	UserID        string `json:"user_id"`
	Balance       string `json:"balance"`
	TotalInvested string `json:"total_invested"`
	UpdatedAt     string `json:"updated_at"`
}

func toWalletResponse(w domain.Wallet) walletResponse {
	return walletResponse{
		UserID:        w.UserID,
		Balance:       w.Balance.String(),
		TotalInvested: w.TotalInvested.String(),
		UpdatedAt:     w.UpdatedAt.Format(timeFormat),
	}
}

// GetWallet returns a user's wallet.
// GET /api/wallets/{user_id}
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	wallet, err := h.ledger.Wallet(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "failed to load wallet")
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

// EnsureWallet creates the user's wallet if absent and returns it.
// POST /api/wallets/{user_id}
func (h *WalletHandler) EnsureWallet(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	wallet, err := h.ledger.EnsureWallet(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: ensure wallet failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to ensure wallet")
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}
