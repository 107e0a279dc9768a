package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// WalletSaver persists wallet balance state. Implemented by the wallet write
// repository; the mutator always calls it inside the enclosing unit of work.
type WalletSaver interface {
	Save(ctx context.Context, w *models.WalletDB) error
}

// BalanceMutator applies the four semantic balance mutations to a wallet.
// Callers must hold the wallet's row lock (GetForUpdate) for the duration of
// the enclosing transaction; the mutator validates preconditions, applies
// the change and persists the row, returning the balance snapshot used for
// the ledger entry. It never returns success without having persisted.
type BalanceMutator struct {
	wallets WalletSaver
}

func NewBalanceMutator(wallets WalletSaver) *BalanceMutator {
	return &BalanceMutator{wallets: wallets}
}

// Credit adds funds: balance += amount, available += amount.
func (m *BalanceMutator) Credit(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error) {
	if err := m.validate(w, amount); err != nil {
		return models.BalanceSnapshot{}, err
	}

	before := w.Balance
	w.Balance = w.Balance.Add(amount)
	w.AvailableBalance = w.AvailableBalance.Add(amount)

	return m.persist(ctx, w, before)
}

// Debit removes funds: balance -= amount, available -= amount. It also
// advances the wallet's spending counters and enforces configured limits.
func (m *BalanceMutator) Debit(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error) {
	if err := m.validate(w, amount); err != nil {
		return models.BalanceSnapshot{}, err
	}
	if w.AvailableBalance.LessThan(amount) {
		return models.BalanceSnapshot{}, fmt.Errorf("%w: short %s %s",
			ErrInsufficientBalance, amount.Sub(w.AvailableBalance), w.Currency)
	}
	if w.DailyLimit != nil && w.DailySpent.Add(amount).GreaterThan(*w.DailyLimit) {
		return models.BalanceSnapshot{}, fmt.Errorf("%w: daily", ErrSpendingLimitExceeded)
	}
	if w.MonthlyLimit != nil && w.MonthlySpent.Add(amount).GreaterThan(*w.MonthlyLimit) {
		return models.BalanceSnapshot{}, fmt.Errorf("%w: monthly", ErrSpendingLimitExceeded)
	}

	before := w.Balance
	w.Balance = w.Balance.Sub(amount)
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.DailySpent = w.DailySpent.Add(amount)
	w.MonthlySpent = w.MonthlySpent.Add(amount)

	return m.persist(ctx, w, before)
}

// Hold reserves funds without moving them out of the wallet:
// available -= amount, pending += amount. Total balance is unchanged.
func (m *BalanceMutator) Hold(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error) {
	if err := m.validate(w, amount); err != nil {
		return models.BalanceSnapshot{}, err
	}
	if w.AvailableBalance.LessThan(amount) {
		return models.BalanceSnapshot{}, fmt.Errorf("%w: short %s %s",
			ErrInsufficientBalance, amount.Sub(w.AvailableBalance), w.Currency)
	}

	before := w.Balance
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.PendingBalance = w.PendingBalance.Add(amount)

	return m.persist(ctx, w, before)
}

// Release returns held funds to the available balance:
// pending -= amount, available += amount.
func (m *BalanceMutator) Release(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error) {
	if err := m.validate(w, amount); err != nil {
		return models.BalanceSnapshot{}, err
	}
	if w.PendingBalance.LessThan(amount) {
		return models.BalanceSnapshot{}, fmt.Errorf("%w: held %s, release %s",
			ErrInsufficientPending, w.PendingBalance, amount)
	}

	before := w.Balance
	w.PendingBalance = w.PendingBalance.Sub(amount)
	w.AvailableBalance = w.AvailableBalance.Add(amount)

	return m.persist(ctx, w, before)
}

func (m *BalanceMutator) validate(w *models.WalletDB, amount money.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if !w.IsActive() {
		return fmt.Errorf("%w: status %s", ErrWalletNotActive, w.Status)
	}
	return nil
}

func (m *BalanceMutator) persist(ctx context.Context, w *models.WalletDB, before money.Money) (models.BalanceSnapshot, error) {
	now := time.Now()
	w.LastTransactionAt = &now

	if err := m.wallets.Save(ctx, w); err != nil {
		logger.Log.Errorw("failed to persist wallet mutation", "wallet_id", w.WalletID, "error", err)
		return models.BalanceSnapshot{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return models.BalanceSnapshot{Before: before, After: w.Balance}, nil
}
