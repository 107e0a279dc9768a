package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// PaymentTokener defines only the methods needed by this handler.
type PaymentTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Payer defines the interface that the service must implement.
type Payer interface {
	Pay(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error)
}

// PaymentRequest represents the JSON body for paying a merchant
// swagger:model PaymentRequest
type PaymentRequest struct {
	// Payer wallet identifier
	// required: true
	FromWalletID string `json:"from_wallet_id"`

	// Merchant wallet identifier
	// required: true
	MerchantWalletID string `json:"merchant_wallet_id"`

	// Amount to pay
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

	// Human-readable description
	Description string `json:"description"`
}

// PaymentResponse represents a successful payment response
// swagger:model PaymentResponse
type PaymentResponse struct {
	// Success message
	// default: Payment completed successfully
	Message string `json:"message"`

	// The resulting ledger transaction
	Transaction TransactionResponse `json:"transaction"`
}

// NewPaymentHandler returns an HTTP handler for merchant payments.
// @Summary Pay a merchant
// @Description Debits the payer the full amount and credits the merchant the amount minus the processing fee.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.PaymentRequest true "Payment Request"
// @Success 200 {object} handlers.PaymentResponse "Payment completed successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 422 {object} handlers.ErrorResponse "Insufficient balance"
// @Router /wallet/pay [post]
// @Security BearerAuth
func NewPaymentHandler(
	svc Payer,
	tokenGetter PaymentTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode payment request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		op, err := buildOperation(models.TransactionTypePayment, req.FromWalletID, req.MerchantWalletID, req.Amount, req.Currency, req.Reference, req.Retry, req.Description)
		if err != nil {
			logger.Log.Warnw("invalid payment request", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		txn, err := svc.Pay(ctx, op)
		if err != nil {
			logger.Log.Errorw("payment failed", "user_id", claims.UserID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, PaymentResponse{
			Message:     "Payment completed successfully",
			Transaction: toTransactionResponse(txn),
		})
	}
}
