package repositories

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

const walletColumns = `
	wallet_id, user_id, currency, name, status,
	balance, available_balance, pending_balance,
	daily_limit, monthly_limit, daily_spent, monthly_spent,
	is_default, requires_pin,
	last_transaction_at, created_at, updated_at
`

// WalletWriteRepository handles wallet row locking and balance persistence.
type WalletWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewWalletWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *WalletWriteRepository {
	return &WalletWriteRepository{db: db, txGetter: txGetter}
}

func (r *WalletWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return tx
		}
	}
	return r.db
}

// GetForUpdate loads the given wallets under row-level locks. Locks are
// acquired one by one in ascending wallet id order, so concurrent
// multi-wallet operations cannot form a lock-ordering cycle. Must be called
// inside an enclosing transaction.
func (r *WalletWriteRepository) GetForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.WalletDB, error) {
	const query = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE wallet_id = $1
		FOR UPDATE
	`

	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	executor := r.executor(ctx)

	wallets := make(map[uuid.UUID]*models.WalletDB, len(sorted))
	for _, id := range sorted {
		var w models.WalletDB
		err := sqlx.GetContext(ctx, executor, &w, query, id)

		logger.Log.Infow(
			"query", strings.Join(strings.Fields(query), " "),
			"args", []any{id},
			"error", err,
		)

		if err != nil {
			return nil, err
		}
		wallets[w.WalletID] = &w
	}

	return wallets, nil
}

// Save persists the wallet's balance, counter and status state.
func (r *WalletWriteRepository) Save(ctx context.Context, w *models.WalletDB) error {
	const query = `
		UPDATE wallets
		SET balance = $2,
		    available_balance = $3,
		    pending_balance = $4,
		    daily_spent = $5,
		    monthly_spent = $6,
		    status = $7,
		    last_transaction_at = $8,
		    updated_at = NOW()
		WHERE wallet_id = $1
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		w.WalletID, w.Balance, w.AvailableBalance, w.PendingBalance,
		w.DailySpent, w.MonthlySpent, w.Status, w.LastTransactionAt,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{w.WalletID, w.Balance, w.AvailableBalance, w.PendingBalance},
		"error", err,
	)

	return err
}

// ResetDailySpent zeroes the daily spending counters across all wallets.
// Run by the limits worker at each day boundary.
func (r *WalletWriteRepository) ResetDailySpent(ctx context.Context) (int64, error) {
	const query = `UPDATE wallets SET daily_spent = 0, updated_at = NOW() WHERE daily_spent <> 0`

	res, err := r.executor(ctx).ExecContext(ctx, query)

	logger.Log.Infow(
		"query", query,
		"error", err,
	)

	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetMonthlySpent zeroes the monthly spending counters across all wallets.
// Run by the limits worker at each month boundary.
func (r *WalletWriteRepository) ResetMonthlySpent(ctx context.Context) (int64, error) {
	const query = `UPDATE wallets SET monthly_spent = 0, updated_at = NOW() WHERE monthly_spent <> 0`

	res, err := r.executor(ctx).ExecContext(ctx, query)

	logger.Log.Infow(
		"query", query,
		"error", err,
	)

	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// WalletReadRepository handles wallet read operations outside of locks.
type WalletReadRepository struct {
	db *sqlx.DB
}

func NewWalletReadRepository(db *sqlx.DB) *WalletReadRepository {
	return &WalletReadRepository{db: db}
}

// GetByID retrieves a single wallet without locking it.
func (r *WalletReadRepository) GetByID(ctx context.Context, walletID uuid.UUID) (*models.WalletDB, error) {
	const query = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE wallet_id = $1
	`

	var w models.WalletDB
	err := r.db.GetContext(ctx, &w, query, walletID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{walletID},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetByUserID retrieves all wallets belonging to a user.
func (r *WalletReadRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WalletDB, error) {
	const query = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = $1
		ORDER BY currency, is_default DESC, name
	`

	var wallets []*models.WalletDB
	err := r.db.SelectContext(ctx, &wallets, query, userID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{userID},
		"result_count", len(wallets),
		"error", err,
	)

	return wallets, err
}
