package models

import (
	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// OperationRequest is the validated request handed to the ledger core by the
// API layer. Authentication and PIN checks happen upstream; the core only
// sees the PreVerifiedAuth outcome.
type OperationRequest struct {
	Type            TransactionType
	SourceWalletID  *uuid.UUID
	DestWalletID    *uuid.UUID
	Amount          money.Money
	Currency        string
	Reference       string
	PreVerifiedAuth bool

	// Retry marks an explicit retry of a previously failed operation with
	// the same reference. Without it a known failed reference is rejected.
	Retry bool

	Description string
}
