package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// AutoRepaymentStatus is the lifecycle state of a recurring auto-repayment.
type AutoRepaymentStatus string

const (
	AutoRepaymentStatusActive    AutoRepaymentStatus = "active"
	AutoRepaymentStatusPaused    AutoRepaymentStatus = "paused"
	AutoRepaymentStatusSuspended AutoRepaymentStatus = "suspended"
)

// AutoRepaymentDB is a recurring scheduled debit against a wallet for a loan.
// Consecutive failures drive the suspension state machine: the counter is
// bumped on every failed attempt and the entity is suspended once it reaches
// MaxRetryAttempts. A later manual repayment resets the counter and
// reactivates the entity.
type AutoRepaymentDB struct {
	AutoRepaymentID  uuid.UUID           `json:"auto_repayment_id" db:"auto_repayment_id"`
	LoanID           uuid.UUID           `json:"loan_id" db:"loan_id"`
	WalletID         uuid.UUID           `json:"wallet_id" db:"wallet_id"`
	Status           AutoRepaymentStatus `json:"status" db:"status"`
	PayFullAmount    bool                `json:"pay_full_amount" db:"pay_full_amount"`
	CustomAmount     *money.Money        `json:"custom_amount,omitempty" db:"custom_amount"`
	MaxRetryAttempts int                 `json:"max_retry_attempts" db:"max_retry_attempts"`

	ConsecutiveFailures int        `json:"consecutive_failures" db:"consecutive_failures"`
	LastFailureReason   *string    `json:"last_failure_reason,omitempty" db:"last_failure_reason"`
	NextAttemptAt       *time.Time `json:"next_attempt_at,omitempty" db:"next_attempt_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RepaymentScheduleStatus is the state of one loan installment.
type RepaymentScheduleStatus string

const (
	RepaymentStatusPending RepaymentScheduleStatus = "pending"
	RepaymentStatusPaid    RepaymentScheduleStatus = "paid"
	RepaymentStatusOverdue RepaymentScheduleStatus = "overdue"
)

// RepaymentScheduleDB is one installment of a loan repayment plan.
// Every successful repayment decrements the outstanding amount; the row is
// marked paid once AmountPaid covers AmountDue.
type RepaymentScheduleDB struct {
	ScheduleID        uuid.UUID               `json:"schedule_id" db:"schedule_id"`
	LoanID            uuid.UUID               `json:"loan_id" db:"loan_id"`
	InstallmentNumber int                     `json:"installment_number" db:"installment_number"`
	DueDate           time.Time               `json:"due_date" db:"due_date"`
	AmountDue         money.Money             `json:"amount_due" db:"amount_due"`
	AmountPaid        money.Money             `json:"amount_paid" db:"amount_paid"`
	Status            RepaymentScheduleStatus `json:"status" db:"status"`
}

// Outstanding returns the unpaid part of the installment.
func (s *RepaymentScheduleDB) Outstanding() money.Money {
	return s.AmountDue.Sub(s.AmountPaid)
}
