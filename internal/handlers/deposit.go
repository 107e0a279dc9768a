package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// DepositTokener defines only the methods needed by this handler.
type DepositTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Depositor defines the interface that the service must implement.
type Depositor interface {
	Deposit(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error)
}

// DepositRequest represents the JSON body for depositing funds
// swagger:model DepositRequest
type DepositRequest struct {
	// Destination wallet identifier
	// required: true
	WalletID string `json:"wallet_id"`

	// Amount to deposit
	// required: true
	// default: 100.00
	Amount string `json:"amount"`

	// Currency
	// default: USD
	Currency string `json:"currency"`

	// Idempotency reference
	Reference string `json:"reference"`

	// Retry a previously failed reference
	Retry bool `json:"retry"`
}

// DepositResponse represents a successful deposit response
// swagger:model DepositResponse
type DepositResponse struct {
	// Success message
	// default: Account topped up successfully
	Message string `json:"message"`

	// The resulting ledger transaction
	Transaction TransactionResponse `json:"transaction"`
}

// NewDepositHandler returns an HTTP handler for depositing funds into a wallet.
// @Summary Deposit funds
// @Description Settles an inbound deposit through the payment provider and credits the wallet minus the deposit fee.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.DepositRequest true "Deposit Request"
// @Success 200 {object} handlers.DepositResponse "Account topped up successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid amount or currency"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 502 {object} handlers.ErrorResponse "Payment provider failure"
// @Router /wallet/deposit [post]
// @Security BearerAuth
func NewDepositHandler(
	svc Depositor,
	tokenGetter DepositTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		var req DepositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode deposit request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		op, err := buildOperation(models.TransactionTypeDeposit, "", req.WalletID, req.Amount, req.Currency, req.Reference, req.Retry, "")
		if err != nil {
			logger.Log.Warnw("invalid deposit request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid amount or currency")
			return
		}

		txn, err := svc.Deposit(ctx, op)
		if err != nil {
			logger.Log.Errorw("deposit failed", "user_id", claims.UserID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, DepositResponse{
			Message:     "Account topped up successfully",
			Transaction: toTransactionResponse(txn),
		})
	}
}
