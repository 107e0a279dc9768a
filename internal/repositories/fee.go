package repositories

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// TransactionFeeWriteRepository appends fee lines to ledger transactions.
type TransactionFeeWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewTransactionFeeWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *TransactionFeeWriteRepository {
	return &TransactionFeeWriteRepository{db: db, txGetter: txGetter}
}

func (r *TransactionFeeWriteRepository) Save(ctx context.Context, fee *models.TransactionFeeDB) error {
	const query = `
		INSERT INTO transaction_fees (fee_id, transaction_id, fee_type, amount, percentage, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var executor sqlx.ExtContext = r.db
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			executor = tx
		}
	}

	_, err := executor.ExecContext(ctx, query,
		fee.FeeID, fee.TransactionID, fee.FeeType, fee.Amount, fee.Percentage, fee.Description,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{fee.TransactionID, fee.FeeType, fee.Amount},
		"error", err,
	)

	return err
}
