package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// TransactionType describes what kind of balance movement a ledger row records.
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRepayment  TransactionType = "repayment"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypeHold       TransactionType = "hold"
	TransactionTypeRelease    TransactionType = "release"
)

// TransactionStatus is the lifecycle state of a ledger transaction.
// A transaction transitions to completed or failed exactly once and is
// never modified after reaching a terminal state.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusReversed   TransactionStatus = "reversed"
)

// TransactionDirection distinguishes movements that cross the system boundary.
type TransactionDirection string

const (
	DirectionInbound  TransactionDirection = "inbound"
	DirectionOutbound TransactionDirection = "outbound"
	DirectionInternal TransactionDirection = "internal"
)

// TransactionDB is an immutable ledger row recording one balance movement
// with before/after snapshots on both sides. User and wallet references are
// nullable for flows that cross the system boundary (external deposits,
// withdrawals to a bank account).
type TransactionDB struct {
	TransactionID uuid.UUID            `json:"transaction_id" db:"transaction_id"`
	Type          TransactionType      `json:"transaction_type" db:"transaction_type"`
	Status        TransactionStatus    `json:"status" db:"status"`
	Direction     TransactionDirection `json:"direction" db:"direction"`

	Amount    money.Money `json:"amount" db:"amount"`
	FeeAmount money.Money `json:"fee_amount" db:"fee_amount"`
	NetAmount money.Money `json:"net_amount" db:"net_amount"`
	Currency  string      `json:"currency" db:"currency"`

	FromUserID   *uuid.UUID `json:"from_user_id,omitempty" db:"from_user_id"`
	ToUserID     *uuid.UUID `json:"to_user_id,omitempty" db:"to_user_id"`
	FromWalletID *uuid.UUID `json:"from_wallet_id,omitempty" db:"from_wallet_id"`
	ToWalletID   *uuid.UUID `json:"to_wallet_id,omitempty" db:"to_wallet_id"`

	FromBalanceBefore *money.Money `json:"from_balance_before,omitempty" db:"from_balance_before"`
	FromBalanceAfter  *money.Money `json:"from_balance_after,omitempty" db:"from_balance_after"`
	ToBalanceBefore   *money.Money `json:"to_balance_before,omitempty" db:"to_balance_before"`
	ToBalanceAfter    *money.Money `json:"to_balance_after,omitempty" db:"to_balance_after"`

	Description       string  `json:"description,omitempty" db:"description"`
	ExternalReference string  `json:"external_reference,omitempty" db:"external_reference"`
	ProviderReference *string `json:"provider_reference,omitempty" db:"provider_reference"`
	FailureReason     *string `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt    *time.Time `json:"failed_at,omitempty" db:"failed_at"`
}

// IsTerminal reports whether the transaction has reached a final state.
func (t *TransactionDB) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusReversed:
		return true
	}
	return false
}
