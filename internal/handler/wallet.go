package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/auth"
	"github.com/sakif/secretum/internal/model"
)

// Ledger is the part of service.LedgerService the wallet endpoints need.
type Ledger interface {
	Balance(ctx context.Context, userID string) (*model.User, error)
	AdjustByAction(ctx context.Context, userID string, action model.BalanceAction, amount int64) (int64, error)
	RedeemPromo(ctx context.Context, userID, code string) (model.Redemption, error)
}

// WalletHandler serves the balance and promo endpoints. Every route is behind
// auth.RequireAuth; the user id always comes from the verified token, never
// from the request body.
type WalletHandler struct {
	ledger Ledger
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(ledger Ledger, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, logger: logger}
}

type adjustRequest struct {
	Action model.BalanceAction `json:"action"`
	Amount int64               `json:"amount"`
}

type adjustResponse struct {
	Balance int64 `json:"balance"`
}

type redeemRequest struct {
	Code string `json:"code"`
}

type redeemResponse struct {
	Success bool `json:"success"`
	model.Redemption
	Message string `json:"message"`
}

// HandleGetBalance returns the caller's profile including the balance.
//
// HTTP: GET /api/balance
func (h *WalletHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthMissing())
		return
	}

	user, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleAdjustBalance adds to or subtracts from the caller's balance.
//
// HTTP: POST /api/balance
//
// Request:  {"action": "add" | "subtract", "amount": 100}
// Response: {"balance": 170}
func (h *WalletHandler) HandleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthMissing())
		return
	}

	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	balance, err := h.ledger.AdjustByAction(r.Context(), userID, req.Action, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustResponse{Balance: balance})
}

// HandleRedeem redeems a promo code for the caller.
//
// HTTP: POST /api/promo
//
// Request:  {"code": "WELCOME"}
// Response: {"success": true, "reward": 500, "new_balance": 525, "message": "Promo code activated! +500"}
func (h *WalletHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthMissing())
		return
	}

	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ledger.RedeemPromo(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		Success:    true,
		Redemption: result,
		Message:    fmt.Sprintf("Promo code activated! +%d", result.Reward),
	})
}

// HandleHealth reports liveness.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
