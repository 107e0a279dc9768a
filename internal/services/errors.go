package services

import (
	"errors"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// Error taxonomy surfaced to callers. Validation errors are synchronous and
// never leave partial state; ErrPersistenceFailure means the whole unit of
// work rolled back and the operation may be retried with the same reference.
var (
	// ErrInvalidAmount is returned for zero or negative mutation amounts.
	ErrInvalidAmount = money.ErrInvalidAmount

	// ErrWalletNotFound is returned when a referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletNotActive is returned for mutations on frozen, suspended,
	// inactive or closed wallets.
	ErrWalletNotActive = errors.New("wallet is not active")

	// ErrInsufficientBalance is returned when available funds do not cover
	// a debit or hold; it is wrapped with the shortfall amount.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrInsufficientPending is returned when a release exceeds held funds.
	ErrInsufficientPending = errors.New("insufficient pending balance to release")

	// ErrSpendingLimitExceeded is returned when a debit would break the
	// wallet's daily or monthly spending limit.
	ErrSpendingLimitExceeded = errors.New("spending limit exceeded")

	// ErrCurrencyMismatch is returned when the wallets in an operation do
	// not share a currency.
	ErrCurrencyMismatch = errors.New("currency mismatch between wallets")

	// ErrDuplicateReference is returned when an idempotency reference is
	// already attached to an in-flight or failed transaction and the caller
	// did not ask for an explicit retry.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrNotAuthorized is returned when the upstream auth/PIN verification
	// outcome was negative.
	ErrNotAuthorized = errors.New("operation not authorized")

	// ErrProviderFailure is returned when the payment provider rejected or
	// failed the operation; retryable, no balances were changed.
	ErrProviderFailure = errors.New("payment provider failure")

	// ErrPersistenceFailure is returned when the durability layer failed
	// mid-commit; the unit of work was rolled back in full.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrConcurrentModification is returned when row-lock contention could
	// not be resolved: a deadlock, a lock wait timeout, or a status
	// transition that lost the race to another writer. The unit of work
	// was rolled back and the operation may be retried.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrTransactionNotFound is returned when a referenced ledger
	// transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDisputeWindowExpired is returned when a dispute is opened more
	// than the allowed window after completion.
	ErrDisputeWindowExpired = errors.New("dispute window has expired")

	// ErrAlreadyDisputed is returned when a transaction already has a dispute.
	ErrAlreadyDisputed = errors.New("transaction is already disputed")
)
