package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

const autoRepaymentColumns = `
	auto_repayment_id, loan_id, wallet_id, status,
	pay_full_amount, custom_amount, max_retry_attempts,
	consecutive_failures, last_failure_reason, next_attempt_at,
	created_at, updated_at
`

// AutoRepaymentRepository reads and writes recurring auto-repayment entities
// and their loan repayment schedules.
type AutoRepaymentRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewAutoRepaymentRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *AutoRepaymentRepository {
	return &AutoRepaymentRepository{db: db, txGetter: txGetter}
}

func (r *AutoRepaymentRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return tx
		}
	}
	return r.db
}

// ListDue returns active auto-repayments whose next attempt is due. Entries
// that never failed (next_attempt_at IS NULL) are always eligible.
func (r *AutoRepaymentRepository) ListDue(ctx context.Context, now time.Time) ([]*models.AutoRepaymentDB, error) {
	const query = `
		SELECT ` + autoRepaymentColumns + `
		FROM auto_repayments
		WHERE status = 'active'
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at
	`

	var entries []*models.AutoRepaymentDB
	err := r.db.SelectContext(ctx, &entries, query, now)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{now},
		"result_count", len(entries),
		"error", err,
	)

	return entries, err
}

// GetByLoanID retrieves the auto-repayment configured for a loan.
func (r *AutoRepaymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) (*models.AutoRepaymentDB, error) {
	const query = `
		SELECT ` + autoRepaymentColumns + `
		FROM auto_repayments
		WHERE loan_id = $1
	`

	var entry models.AutoRepaymentDB
	err := r.db.GetContext(ctx, &entry, query, loanID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{loanID},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Save persists the retry/suspension state of an auto-repayment.
func (r *AutoRepaymentRepository) Save(ctx context.Context, entry *models.AutoRepaymentDB) error {
	const query = `
		UPDATE auto_repayments
		SET status = $2,
		    consecutive_failures = $3,
		    last_failure_reason = $4,
		    next_attempt_at = $5,
		    updated_at = NOW()
		WHERE auto_repayment_id = $1
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		entry.AutoRepaymentID, entry.Status, entry.ConsecutiveFailures,
		entry.LastFailureReason, entry.NextAttemptAt,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{entry.AutoRepaymentID, entry.Status, entry.ConsecutiveFailures},
		"error", err,
	)

	return err
}

// NextSchedule returns the earliest unpaid installment for a loan.
func (r *AutoRepaymentRepository) NextSchedule(ctx context.Context, loanID uuid.UUID) (*models.RepaymentScheduleDB, error) {
	const query = `
		SELECT schedule_id, loan_id, installment_number, due_date, amount_due, amount_paid, status
		FROM repayment_schedules
		WHERE loan_id = $1 AND status IN ('pending', 'overdue')
		ORDER BY installment_number
		LIMIT 1
	`

	var schedule models.RepaymentScheduleDB
	err := sqlx.GetContext(ctx, r.executor(ctx), &schedule, query, loanID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{loanID},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// SaveSchedule persists the paid amount and status of an installment.
func (r *AutoRepaymentRepository) SaveSchedule(ctx context.Context, schedule *models.RepaymentScheduleDB) error {
	const query = `
		UPDATE repayment_schedules
		SET amount_paid = $2, status = $3
		WHERE schedule_id = $1
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		schedule.ScheduleID, schedule.AmountPaid, schedule.Status,
	)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{schedule.ScheduleID, schedule.AmountPaid, schedule.Status},
		"error", err,
	)

	return err
}

// MarkOverdue flags pending installments whose due date has passed.
func (r *AutoRepaymentRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE repayment_schedules
		SET status = 'overdue'
		WHERE status = 'pending' AND due_date < $1
	`

	res, err := r.executor(ctx).ExecContext(ctx, query, now)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{now},
		"error", err,
	)

	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
