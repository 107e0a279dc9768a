package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// Supported currency codes
const (
	USD = "USD"
	EUR = "EUR"
	NGN = "NGN"
)

// WalletStatus is the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusInactive  WalletStatus = "inactive"
	WalletStatusFrozen    WalletStatus = "frozen"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

// WalletDB represents a wallet row in the database.
// Invariant: Balance = AvailableBalance + PendingBalance at all times.
// Balance fields change only through the balance mutator, while the row
// is held under a FOR UPDATE lock.
type WalletDB struct {
	WalletID         uuid.UUID    `json:"wallet_id" db:"wallet_id"`
	UserID           uuid.UUID    `json:"user_id" db:"user_id"`
	Currency         string       `json:"currency" db:"currency"`
	Name             string       `json:"name" db:"name"`
	Status           WalletStatus `json:"status" db:"status"`
	Balance          money.Money  `json:"balance" db:"balance"`
	AvailableBalance money.Money  `json:"available_balance" db:"available_balance"`
	PendingBalance   money.Money  `json:"pending_balance" db:"pending_balance"`

	// Spending limits; nil means unlimited.
	DailyLimit   *money.Money `json:"daily_limit,omitempty" db:"daily_limit"`
	MonthlyLimit *money.Money `json:"monthly_limit,omitempty" db:"monthly_limit"`
	DailySpent   money.Money  `json:"daily_spent" db:"daily_spent"`
	MonthlySpent money.Money  `json:"monthly_spent" db:"monthly_spent"`

	IsDefault   bool `json:"is_default" db:"is_default"`
	RequiresPIN bool `json:"requires_pin" db:"requires_pin"`

	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty" db:"last_transaction_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the wallet may take part in balance mutations.
func (w *WalletDB) IsActive() bool {
	return w.Status == WalletStatusActive
}

// BalanceSnapshot captures a wallet's total balance before and after a
// mutation; ledger rows record these for auditing.
type BalanceSnapshot struct {
	Before money.Money
	After  money.Money
}
