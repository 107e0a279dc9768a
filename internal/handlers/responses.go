package handlers

import (
	"time"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// TransactionResponse represents a ledger transaction in API responses
// swagger:model TransactionResponse
type TransactionResponse struct {
	// Transaction identifier
	TransactionID string `json:"transaction_id"`

	// Operation type
	// default: transfer
	Type string `json:"type"`

	// Transaction status
	// default: completed
	Status string `json:"status"`

	// Gross amount
	// default: 100.00
	Amount string `json:"amount"`

	// Fee charged
	// default: 1.50
	Fee string `json:"fee"`

	// Net amount after fees
	// default: 98.50
	NetAmount string `json:"net_amount"`

	// Currency code
	// default: USD
	Currency string `json:"currency"`

	// Caller-supplied idempotency reference
	Reference string `json:"reference,omitempty"`

	// Completion time, RFC 3339
	CompletedAt string `json:"completed_at,omitempty"`
}

func toTransactionResponse(txn *models.TransactionDB) TransactionResponse {
	resp := TransactionResponse{
		TransactionID: txn.TransactionID.String(),
		Type:          string(txn.Type),
		Status:        string(txn.Status),
		Amount:        txn.Amount.String(),
		Fee:           txn.FeeAmount.String(),
		NetAmount:     txn.NetAmount.String(),
		Currency:      txn.Currency,
		Reference:     txn.ExternalReference,
	}
	if txn.CompletedAt != nil {
		resp.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
