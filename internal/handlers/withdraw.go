package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// WithdrawTokener defines only the methods needed by this handler.
type WithdrawTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Withdrawer defines the interface that the service must implement.
type Withdrawer interface {
	Withdraw(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error)
}

// WithdrawRequest represents the JSON body for withdrawing funds
// swagger:model WithdrawRequest
type WithdrawRequest struct {
	// Source wallet identifier
	// required: true
	WalletID string `json:"wallet_id"`

	// Amount to withdraw
	// required: true
	// default: 50.00
	Amount string `json:"amount"`

	// Currency
	// default: USD
	Currency string `json:"currency"`

	// Idempotency reference
	Reference string `json:"reference"`

	// Retry a previously failed reference
	Retry bool `json:"retry"`
}

// WithdrawResponse represents a successful withdrawal response
// swagger:model WithdrawResponse
type WithdrawResponse struct {
	// Success message
	// default: Withdrawal completed successfully
	Message string `json:"message"`

	// The resulting ledger transaction
	Transaction TransactionResponse `json:"transaction"`
}

// NewWithdrawHandler returns an HTTP handler for withdrawing funds from a wallet.
// @Summary Withdraw funds
// @Description Holds the amount, settles through the payment provider and debits the wallet. A provider failure releases the hold.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.WithdrawRequest true "Withdraw Request"
// @Success 200 {object} handlers.WithdrawResponse "Withdrawal completed successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid amount or currency"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 422 {object} handlers.ErrorResponse "Insufficient balance"
// @Failure 502 {object} handlers.ErrorResponse "Payment provider failure"
// @Router /wallet/withdraw [post]
// @Security BearerAuth
func NewWithdrawHandler(
	svc Withdrawer,
	tokenGetter WithdrawTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		var req WithdrawRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode withdraw request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		op, err := buildOperation(models.TransactionTypeWithdrawal, req.WalletID, "", req.Amount, req.Currency, req.Reference, req.Retry, "")
		if err != nil {
			logger.Log.Warnw("invalid withdraw request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid amount or currency")
			return
		}

		txn, err := svc.Withdraw(ctx, op)
		if err != nil {
			logger.Log.Errorw("withdrawal failed", "user_id", claims.UserID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, WithdrawResponse{
			Message:     "Withdrawal completed successfully",
			Transaction: toTransactionResponse(txn),
		})
	}
}
