package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// TransferTokener defines only the methods needed by this handler.
type TransferTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Transferer defines the interface that the service must implement.
type Transferer interface {
	Transfer(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error)
}

// TransferRequest represents the JSON body for a wallet-to-wallet transfer
// swagger:model TransferRequest
type TransferRequest struct {
	// Source wallet identifier
	// required: true
	FromWalletID string `json:"from_wallet_id"`

	// Destination wallet identifier
	// required: true
	ToWalletID string `json:"to_wallet_id"`

	// Amount to transfer
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

// TransferResponse represents a successful transfer response
// swagger:model TransferResponse
type TransferResponse struct {
	// Success message
	// default: Transfer completed successfully
	Message string `json:"message"`

	// The resulting ledger transaction
	Transaction TransactionResponse `json:"transaction"`
}

// NewTransferHandler returns an HTTP handler for wallet-to-wallet transfers.
// @Summary Transfer funds
// @Description Moves funds between two wallets atomically. Cross-owner transfers incur a fee on top of the amount.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.TransferRequest true "Transfer Request"
// @Success 200 {object} handlers.TransferResponse "Transfer completed successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 409 {object} handlers.ErrorResponse "Duplicate reference"
// @Failure 422 {object} handlers.ErrorResponse "Insufficient balance"
// @Router /wallet/transfer [post]
// @Security BearerAuth
func NewTransferHandler(
	svc Transferer,
	tokenGetter TransferTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		var req TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode transfer request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		op, err := buildOperation(models.TransactionTypeTransfer, req.FromWalletID, req.ToWalletID, req.Amount, req.Currency, req.Reference, req.Retry, req.Description)
		if err != nil {
			logger.Log.Warnw("invalid transfer request", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		txn, err := svc.Transfer(ctx, op)
		if err != nil {
			logger.Log.Errorw("transfer failed", "user_id", claims.UserID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, TransferResponse{
			Message:     "Transfer completed successfully",
			Transaction: toTransactionResponse(txn),
		})
	}
}

// authorize extracts and validates the caller's token claims; on failure the
// 401 response has already been written.
func authorize(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	getToken func(ctx context.Context, r *http.Request) (string, error),
	getClaims func(ctx context.Context, tokenString string) (*jwt.Claims, error),
) (*jwt.Claims, bool) {
	tokenStr, err := getToken(ctx, r)
	if err != nil {
		logger.Log.Errorw("failed to get token from request", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	claims, err := getClaims(ctx, tokenStr)
	if err != nil {
		logger.Log.Errorw("failed to get claims from token", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return claims, true
}

// buildOperation parses wallet ids and the amount into an operation request.
// Operations arriving through authenticated handlers are pre-verified.
func buildOperation(opType models.TransactionType, fromID, toID, amount, currency, reference string, retry bool, description string) (models.OperationRequest, error) {
	op := models.OperationRequest{
		Type:            opType,
		Currency:        currency,
		Reference:       reference,
		Retry:           retry,
		Description:     description,
		PreVerifiedAuth: true,
	}

	if fromID != "" {
		id, err := uuid.Parse(fromID)
		if err != nil {
			return op, err
		}
		op.SourceWalletID = &id
	}
	if toID != "" {
		id, err := uuid.Parse(toID)
		if err != nil {
			return op, err
		}
		op.DestWalletID = &id
	}

	parsed, err := money.Parse(amount)
	if err != nil {
		return op, err
	}
	op.Amount = parsed

	return op, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
