package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// DisputeRepository persists transaction disputes.
type DisputeRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewDisputeRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *DisputeRepository {
	return &DisputeRepository{db: db, txGetter: txGetter}
}

func (r *DisputeRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return tx
		}
	}
	return r.db
}

// Save inserts a new dispute. The unique index on transaction_id ensures a
// transaction is disputed at most once.
func (r *DisputeRepository) Save(ctx context.Context, d *models.DisputeDB) error {
	const query = `
		INSERT INTO disputes (dispute_id, transaction_id, opened_by, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		d.DisputeID, d.TransactionID, d.OpenedBy, d.Status, d.Reason, d.CreatedAt,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{d.DisputeID, d.TransactionID, d.Status},
		"error", err,
	)

	return err
}

// Update persists a dispute's status transition.
func (r *DisputeRepository) Update(ctx context.Context, d *models.DisputeDB) error {
	const query = `
		UPDATE disputes
		SET status = $2, resolution = $3, resolved_at = $4
		WHERE dispute_id = $1
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		d.DisputeID, d.Status, d.Resolution, d.ResolvedAt,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{d.DisputeID, d.Status},
		"error", err,
	)

	return err
}

// GetByID retrieves a dispute.
func (r *DisputeRepository) GetByID(ctx context.Context, disputeID uuid.UUID) (*models.DisputeDB, error) {
	const query = `
		SELECT dispute_id, transaction_id, opened_by, status, reason, resolution, created_at, resolved_at
		FROM disputes
		WHERE dispute_id = $1
	`

	var d models.DisputeDB
	err := r.db.GetContext(ctx, &d, query, disputeID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{disputeID},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByTransactionID retrieves the dispute attached to a transaction, if any.
func (r *DisputeRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.DisputeDB, error) {
	const query = `
		SELECT dispute_id, transaction_id, opened_by, status, reason, resolution, created_at, resolved_at
		FROM disputes
		WHERE transaction_id = $1
	`

	var d models.DisputeDB
	err := r.db.GetContext(ctx, &d, query, transactionID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{transactionID},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &d, nil
}
