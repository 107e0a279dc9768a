package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// Fee line kinds attached to ledger transactions.
const (
	FeeTypeTransfer = "transfer"
	FeeTypePayment  = "payment"
	FeeTypeDeposit  = "deposit"
	FeeTypeProvider = "provider"
)

// TransactionFeeDB is a fee line attached to a ledger transaction.
// Fee rows are written before the parent transaction is marked completed.
type TransactionFeeDB struct {
	FeeID         uuid.UUID        `json:"fee_id" db:"fee_id"`
	TransactionID uuid.UUID        `json:"transaction_id" db:"transaction_id"`
	FeeType       string           `json:"fee_type" db:"fee_type"`
	Amount        money.Money      `json:"amount" db:"amount"`
	Percentage    *decimal.Decimal `json:"percentage,omitempty" db:"percentage"`
	Description   string           `json:"description,omitempty" db:"description"`
}
