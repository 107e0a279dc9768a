package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// HoldTokener defines only the methods needed by these handlers.
type HoldTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Holder defines the interface that the service must implement.
type Holder interface {
	Hold(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error)
	Release(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error)
}

// HoldRequest represents the JSON body for holding or releasing funds
// swagger:model HoldRequest
type HoldRequest struct {
	// Wallet identifier
	// required: true
	WalletID string `json:"wallet_id"`

	// Amount to hold or release
	// required: true
	// default: 25.00
	Amount string `json:"amount"`

	// Idempotency reference
	Reference string `json:"reference"`

	// Human-readable description
	Description string `json:"description"`
}

// HoldResponse represents a successful hold or release response
// swagger:model HoldResponse
type HoldResponse struct {
	// Success message
	Message string `json:"message"`

	// The resulting ledger transaction
	Transaction TransactionResponse `json:"transaction"`
}

// NewHoldHandler returns an HTTP handler for reserving wallet funds.
// @Summary Hold funds
// @Description Moves funds from available to pending so they cannot be spent while an operation is in flight.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.HoldRequest true "Hold Request"
// @Success 200 {object} handlers.HoldResponse "Funds held successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 422 {object} handlers.ErrorResponse "Insufficient balance"
// @Router /wallet/hold [post]
// @Security BearerAuth
func NewHoldHandler(
	svc Holder,
	tokenGetter HoldTokener,
) http.HandlerFunc {
	return holdOrRelease(svc.Hold, tokenGetter, models.TransactionTypeHold, "Funds held successfully")
}

// NewReleaseHandler returns an HTTP handler for releasing held wallet funds.
// @Summary Release held funds
// @Description Returns previously held funds to the available balance.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.HoldRequest true "Release Request"
// @Success 200 {object} handlers.HoldResponse "Funds released successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 422 {object} handlers.ErrorResponse "Insufficient held funds"
// @Router /wallet/release [post]
// @Security BearerAuth
func NewReleaseHandler(
	svc Holder,
	tokenGetter HoldTokener,
) http.HandlerFunc {
	return holdOrRelease(svc.Release, tokenGetter, models.TransactionTypeRelease, "Funds released successfully")
}

func holdOrRelease(
	op func(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error),
	tokenGetter HoldTokener,
	opType models.TransactionType,
	successMessage string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		var req HoldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode hold request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		operation, err := buildOperation(opType, req.WalletID, "", req.Amount, "", req.Reference, false, req.Description)
		if err != nil {
			logger.Log.Warnw("invalid hold request", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		txn, err := op(ctx, operation)
		if err != nil {
			logger.Log.Errorw("hold operation failed", "user_id", claims.UserID, "type", opType, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, HoldResponse{
			Message:     successMessage,
			Transaction: toTransactionResponse(txn),
		})
	}
}
