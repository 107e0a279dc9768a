package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/retry"
)

// RepaymentStore persists auto-repayment entities and loan schedules.
type RepaymentStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*models.AutoRepaymentDB, error)
	GetByLoanID(ctx context.Context, loanID uuid.UUID) (*models.AutoRepaymentDB, error)
	Save(ctx context.Context, entry *models.AutoRepaymentDB) error
	NextSchedule(ctx context.Context, loanID uuid.UUID) (*models.RepaymentScheduleDB, error)
	SaveSchedule(ctx context.Context, schedule *models.RepaymentScheduleDB) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// RepaymentConfig carries the retry policy and the wallet loan repayments
// are collected into.
type RepaymentConfig struct {
	Retry              retry.Policy
	CollectionWalletID *uuid.UUID
}

// RepaymentService collects loan installments from wallets, either on a
// schedule (ProcessDue, driven by a ticker) or manually (Repay). Each
// successful collection debits the wallet, credits the collection wallet and
// updates the installment inside one unit of work. A failed automatic
// attempt bumps the consecutive-failure counter and backs off exponentially;
// once the retry budget is exhausted the auto-repayment is suspended until a
// manual repayment succeeds.
type RepaymentService struct {
	uow     TxRunner
	lockers WalletLocker
	mutator BalanceApplier
	txns    TransactionWriter
	reader  TransactionReader
	store   RepaymentStore
	cache   ReferenceCache
	kafka   KafkaWriter
	cfg     RepaymentConfig
}

func NewRepaymentService(
	uow TxRunner,
	lockers WalletLocker,
	mutator BalanceApplier,
	txns TransactionWriter,
	reader TransactionReader,
	store RepaymentStore,
	cache ReferenceCache,
	kafka KafkaWriter,
	cfg RepaymentConfig,
) *RepaymentService {
	return &RepaymentService{
		uow:     uow,
		lockers: lockers,
		mutator: mutator,
		txns:    txns,
		reader:  reader,
		store:   store,
		cache:   cache,
		kafka:   kafka,
		cfg:     cfg,
	}
}

// ProcessDue runs one collection pass: overdue installments are flagged,
// then every due auto-repayment gets a single attempt. One failing entry
// never blocks the rest of the batch.
func (s *RepaymentService) ProcessDue(ctx context.Context, now time.Time) error {
	if _, err := s.store.MarkOverdue(ctx, now); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	for _, entry := range due {
		if err := s.attempt(ctx, entry, now); err != nil {
			logger.Log.Warnw("auto-repayment attempt failed",
				"loan_id", entry.LoanID,
				"consecutive_failures", entry.ConsecutiveFailures,
				"error", err,
			)
			if saveErr := s.recordFailure(ctx, entry, now, err); saveErr != nil {
				logger.Log.Errorw("failed to record auto-repayment failure", "loan_id", entry.LoanID, "error", saveErr)
			}
			continue
		}

		entry.ConsecutiveFailures = 0
		entry.LastFailureReason = nil
		entry.NextAttemptAt = nil
		if saveErr := s.store.Save(ctx, entry); saveErr != nil {
			logger.Log.Errorw("failed to reset auto-repayment state", "loan_id", entry.LoanID, "error", saveErr)
		}
	}

	return nil
}

// Repay collects a manual repayment toward a loan. A successful manual
// repayment resets the consecutive-failure counter and reactivates a
// suspended auto-repayment.
func (s *RepaymentService) Repay(ctx context.Context, req models.OperationRequest, loanID uuid.UUID) (*models.TransactionDB, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if !req.PreVerifiedAuth {
		return nil, ErrNotAuthorized
	}
	if req.SourceWalletID == nil {
		return nil, fmt.Errorf("%w: source wallet required", ErrWalletNotFound)
	}

	if existing, err := resolveReference(ctx, s.cache, s.reader, req.Reference, req.Retry); existing != nil || err != nil {
		return existing, err
	}

	schedule, err := s.store.NextSchedule(ctx, loanID)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	amount := money.Min(req.Amount, schedule.Outstanding())
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: installment already settled", ErrInvalidAmount)
	}

	txn, err := s.collect(ctx, *req.SourceWalletID, loanID, schedule, amount, req.Reference, req.Description)
	if err != nil {
		return nil, err
	}

	if entry, getErr := s.store.GetByLoanID(ctx, loanID); getErr == nil {
		entry.ConsecutiveFailures = 0
		entry.LastFailureReason = nil
		entry.NextAttemptAt = nil
		if entry.Status == models.AutoRepaymentStatusSuspended {
			entry.Status = models.AutoRepaymentStatusActive
			logger.Log.Infow("auto-repayment reactivated after manual repayment", "loan_id", loanID)
		}
		if saveErr := s.store.Save(ctx, entry); saveErr != nil {
			logger.Log.Errorw("failed to reset auto-repayment after manual repayment", "loan_id", loanID, "error", saveErr)
		}
	}

	finalize(ctx, s.cache, s.kafka, txn)
	return txn, nil
}

// attempt runs one automatic collection for a due auto-repayment.
func (s *RepaymentService) attempt(ctx context.Context, entry *models.AutoRepaymentDB, now time.Time) error {
	schedule, err := s.store.NextSchedule(ctx, entry.LoanID)
	if err != nil {
		return mapStorageErr(err)
	}

	amount := schedule.Outstanding()
	if !entry.PayFullAmount && entry.CustomAmount != nil {
		amount = money.Min(*entry.CustomAmount, amount)
	}
	if !amount.IsPositive() {
		return nil
	}

	// One reference per installment and attempt generation keeps a crashed
	// pass from collecting the same installment twice while still allowing
	// the next scheduled retry through.
	reference := fmt.Sprintf("auto-repay:%s:%d:%d", entry.LoanID, schedule.InstallmentNumber, entry.ConsecutiveFailures)
	if existing, err := resolveReference(ctx, s.cache, s.reader, reference, false); existing != nil || err != nil {
		return err
	}

	txn, err := s.collect(ctx, entry.WalletID, entry.LoanID, schedule, amount, reference, "Automatic loan repayment")
	if err != nil {
		return err
	}

	finalize(ctx, s.cache, s.kafka, txn)
	return nil
}

// collect debits the wallet, credits the collection wallet, appends the
// repayment ledger row and advances the installment, all atomically.
func (s *RepaymentService) collect(
	ctx context.Context,
	walletID, loanID uuid.UUID,
	schedule *models.RepaymentScheduleDB,
	amount money.Money,
	reference, description string,
) (*models.TransactionDB, error) {
	var txn *models.TransactionDB
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		lockIDs := []uuid.UUID{walletID}
		if s.cfg.CollectionWalletID != nil {
			lockIDs = append(lockIDs, *s.cfg.CollectionWalletID)
		}

		wallets, err := s.lockers.GetForUpdate(ctx, lockIDs...)
		if err != nil {
			return mapStorageErr(err)
		}
		wallet, ok := wallets[walletID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, walletID)
		}

		snap, err := s.mutator.Debit(ctx, wallet, amount)
		if err != nil {
			return err
		}

		if s.cfg.CollectionWalletID != nil {
			collection, ok := wallets[*s.cfg.CollectionWalletID]
			if !ok {
				return fmt.Errorf("%w: repayment collection wallet", ErrWalletNotFound)
			}
			if _, err := s.mutator.Credit(ctx, collection, amount); err != nil {
				return err
			}
		}

		now := time.Now()
		txn = &models.TransactionDB{
			TransactionID:     uuid.New(),
			Type:              models.TransactionTypeRepayment,
			Status:            models.TransactionStatusPending,
			Direction:         models.DirectionOutbound,
			Amount:            amount,
			FeeAmount:         money.Zero(),
			NetAmount:         amount,
			Currency:          wallet.Currency,
			FromUserID:        &wallet.UserID,
			FromWalletID:      &wallet.WalletID,
			FromBalanceBefore: &snap.Before,
			FromBalanceAfter:  &snap.After,
			Description:       description,
			ExternalReference: reference,
			CreatedAt:         now,
		}
		if err := s.txns.Save(ctx, txn); err != nil {
			return mapStorageErr(err)
		}

		schedule.AmountPaid = schedule.AmountPaid.Add(amount)
		if !schedule.Outstanding().IsPositive() {
			schedule.Status = models.RepaymentStatusPaid
		}
		if err := s.store.SaveSchedule(ctx, schedule); err != nil {
			return mapStorageErr(err)
		}

		completedAt := time.Now()
		if err := s.txns.MarkCompleted(ctx, txn.TransactionID, completedAt); err != nil {
			return mapFinalizeErr(err)
		}
		txn.Status = models.TransactionStatusCompleted
		txn.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// recordFailure bumps the failure counter, schedules the backed-off next
// attempt and suspends the auto-repayment once the retry budget is spent.
func (s *RepaymentService) recordFailure(ctx context.Context, entry *models.AutoRepaymentDB, now time.Time, cause error) error {
	entry.ConsecutiveFailures++
	reason := cause.Error()
	entry.LastFailureReason = &reason

	if s.cfg.Retry.Exhausted(entry.ConsecutiveFailures) {
		entry.Status = models.AutoRepaymentStatusSuspended
		entry.NextAttemptAt = nil
		logger.Log.Warnw("auto-repayment suspended",
			"loan_id", entry.LoanID,
			"consecutive_failures", entry.ConsecutiveFailures,
		)
	} else {
		next := now.Add(s.cfg.Retry.Next(entry.ConsecutiveFailures))
		entry.NextAttemptAt = &next
	}

	return s.store.Save(ctx, entry)
}
