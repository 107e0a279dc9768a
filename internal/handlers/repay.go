package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// RepayTokener defines only the methods needed by this handler.
type RepayTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Repayer defines the interface that the service must implement.
type Repayer interface {
	Repay(ctx context.Context, req models.OperationRequest, loanID uuid.UUID) (*models.TransactionDB, error)
}

// RepayRequest represents the JSON body for a manual loan repayment
// swagger:model RepayRequest
type RepayRequest struct {
	// Wallet to collect the repayment from
	// required: true
	WalletID string `json:"wallet_id"`

	// Amount to repay
	// required: true
	// default: 50.00
	Amount string `json:"amount"`

	// Idempotency reference
	Reference string `json:"reference"`

	// Retry a previously failed reference
	Retry bool `json:"retry"`
}

// RepayResponse represents a successful repayment response
// swagger:model RepayResponse
type RepayResponse struct {
	// Success message
	// default: Repayment collected successfully
	Message string `json:"message"`

	// The resulting ledger transaction
	Transaction TransactionResponse `json:"transaction"`
}

// NewRepayHandler returns an HTTP handler for manual loan repayments.
// @Summary Repay a loan
// @Description Collects a manual repayment toward the loan's next installment. A successful repayment reactivates a suspended auto-repayment.
// @Tags loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param request body handlers.RepayRequest true "Repay Request"
// @Success 200 {object} handlers.RepayResponse "Repayment collected successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 422 {object} handlers.ErrorResponse "Insufficient balance"
// @Router /loans/{id}/repay [post]
// @Security BearerAuth
func NewRepayHandler(
	svc Repayer,
	tokenGetter RepayTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		loanID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid loan id")
			return
		}

		var req RepayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode repay request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		op, err := buildOperation(models.TransactionTypeRepayment, req.WalletID, "", req.Amount, "", req.Reference, req.Retry, "Manual loan repayment")
		if err != nil {
			logger.Log.Warnw("invalid repay request", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		txn, err := svc.Repay(ctx, op, loanID)
		if err != nil {
			logger.Log.Errorw("repayment failed", "user_id", claims.UserID, "loan_id", loanID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, RepayResponse{
			Message:     "Repayment collected successfully",
			Transaction: toTransactionResponse(txn),
		})
	}
}
