package handlers

import (
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/services"
)

// ErrorResponse represents an error response body
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Invalid request
	Error string `json:"error"`
}

// statusForServiceError maps the service error taxonomy onto HTTP statuses.
func statusForServiceError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		return http.StatusBadRequest, "Invalid amount"
	case errors.Is(err, services.ErrCurrencyMismatch):
		return http.StatusBadRequest, "Currency mismatch"
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden, "Not authorized"
	case errors.Is(err, services.ErrWalletNotFound):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, services.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, services.ErrWalletNotActive):
		return http.StatusUnprocessableEntity, "Wallet is not active"
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "Insufficient balance"
	case errors.Is(err, services.ErrInsufficientPending):
		return http.StatusUnprocessableEntity, "Insufficient held funds"
	case errors.Is(err, services.ErrSpendingLimitExceeded):
		return http.StatusUnprocessableEntity, "Spending limit exceeded"
	case errors.Is(err, services.ErrDuplicateReference):
		return http.StatusConflict, "Duplicate reference"
	case errors.Is(err, services.ErrAlreadyDisputed):
		return http.StatusConflict, "Transaction already disputed"
	case errors.Is(err, services.ErrDisputeWindowExpired):
		return http.StatusUnprocessableEntity, "Dispute window expired"
	case errors.Is(err, services.ErrConcurrentModification):
		return http.StatusConflict, "Concurrent modification, retry the operation"
	case errors.Is(err, services.ErrProviderFailure):
		return http.StatusBadGateway, "Payment provider failure"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
