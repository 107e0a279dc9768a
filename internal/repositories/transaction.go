package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

const transactionColumns = `
	transaction_id, transaction_type, status, direction,
	amount, fee_amount, net_amount, currency,
	from_user_id, to_user_id, from_wallet_id, to_wallet_id,
	from_balance_before, from_balance_after, to_balance_before, to_balance_after,
	description, COALESCE(external_reference, '') AS external_reference,
	provider_reference, failure_reason,
	created_at, completed_at, failed_at
`

// TransactionWriteRepository appends ledger rows and drives their status
// transitions. Rows are never updated after reaching a terminal state.
type TransactionWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewTransactionWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db, txGetter: txGetter}
}

func (r *TransactionWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return tx
		}
	}
	return r.db
}

// Save inserts a new ledger row. The unique index on external_reference
// makes duplicate idempotency references surface as a unique violation.
func (r *TransactionWriteRepository) Save(ctx context.Context, txn *models.TransactionDB) error {
	const query = `
		INSERT INTO transactions (
			transaction_id, transaction_type, status, direction,
			amount, fee_amount, net_amount, currency,
			from_user_id, to_user_id, from_wallet_id, to_wallet_id,
			from_balance_before, from_balance_after, to_balance_before, to_balance_after,
			description, external_reference, provider_reference, failure_reason,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, NULLIF($18, ''), $19, $20, $21
		)
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		txn.TransactionID, txn.Type, txn.Status, txn.Direction,
		txn.Amount, txn.FeeAmount, txn.NetAmount, txn.Currency,
		txn.FromUserID, txn.ToUserID, txn.FromWalletID, txn.ToWalletID,
		txn.FromBalanceBefore, txn.FromBalanceAfter, txn.ToBalanceBefore, txn.ToBalanceAfter,
		txn.Description, txn.ExternalReference, txn.ProviderReference, txn.FailureReason,
		txn.CreatedAt,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{txn.TransactionID, txn.Type, txn.Amount, txn.ExternalReference},
		"error", err,
	)

	return err
}

// MarkCompleted transitions a pending or processing row to completed.
// Returns sql.ErrNoRows when the row is missing or already terminal.
func (r *TransactionWriteRepository) MarkCompleted(ctx context.Context, transactionID uuid.UUID, completedAt time.Time) error {
	const query = `
		UPDATE transactions
		SET status = 'completed', completed_at = $2
		WHERE transaction_id = $1 AND status IN ('pending', 'processing')
	`

	res, err := r.executor(ctx).ExecContext(ctx, query, transactionID, completedAt)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{transactionID, completedAt},
		"error", err,
	)

	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkFailed transitions a pending or processing row to failed with a reason.
// Returns sql.ErrNoRows when the row is missing or already terminal.
func (r *TransactionWriteRepository) MarkFailed(ctx context.Context, transactionID uuid.UUID, reason string) error {
	const query = `
		UPDATE transactions
		SET status = 'failed', failure_reason = $2, failed_at = NOW()
		WHERE transaction_id = $1 AND status IN ('pending', 'processing')
	`

	res, err := r.executor(ctx).ExecContext(ctx, query, transactionID, reason)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{transactionID, reason},
		"error", err,
	)

	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransactionReadRepository handles ledger read operations.
type TransactionReadRepository struct {
	db *sqlx.DB
}

func NewTransactionReadRepository(db *sqlx.DB) *TransactionReadRepository {
	return &TransactionReadRepository{db: db}
}

// GetByID retrieves a ledger row by its id.
func (r *TransactionReadRepository) GetByID(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDB, error) {
	const query = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_id = $1
	`

	var txn models.TransactionDB
	err := r.db.GetContext(ctx, &txn, query, transactionID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{transactionID},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetByReference retrieves a ledger row by its idempotency reference.
func (r *TransactionReadRepository) GetByReference(ctx context.Context, reference string) (*models.TransactionDB, error) {
	const query = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE external_reference = $1
	`

	var txn models.TransactionDB
	err := r.db.GetContext(ctx, &txn, query, reference)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{reference},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &txn, nil
}
