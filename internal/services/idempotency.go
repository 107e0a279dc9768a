package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// Postgres error codes the service layer reacts to.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// resolveReference implements the idempotency contract shared by all
// orchestrated operations: a completed transaction with the same reference
// is returned unchanged; a pending, processing or failed one blocks the
// operation unless the caller marked it an explicit retry. An empty
// reference means the operation is not idempotent-keyed.
func resolveReference(ctx context.Context, cache ReferenceCache, reader TransactionReader, reference string, retry bool) (*models.TransactionDB, error) {
	if reference == "" {
		return nil, nil
	}

	if cache != nil {
		if cached, err := cache.Get(ctx, reference); err != nil {
			logger.Log.Warnw("reference cache lookup failed", "reference", reference, "error", err)
		} else if cached != nil && cached.Status == models.TransactionStatusCompleted {
			logger.Log.Infow("idempotent replay from cache", "reference", reference, "transaction_id", cached.TransactionID)
			return cached, nil
		}
	}

	existing, err := reader.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	switch existing.Status {
	case models.TransactionStatusCompleted:
		logger.Log.Infow("idempotent replay", "reference", reference, "transaction_id", existing.TransactionID)
		return existing, nil
	case models.TransactionStatusFailed:
		if retry {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s previously failed", ErrDuplicateReference, reference)
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrDuplicateReference, reference, existing.Status)
	}
}

// finalize runs the post-commit side effects: reference cache population and
// the Kafka transaction event. Both are best-effort.
func finalize(ctx context.Context, cache ReferenceCache, kafka KafkaWriter, txn *models.TransactionDB) {
	if txn == nil {
		return
	}

	if cache != nil && txn.ExternalReference != "" {
		if err := cache.Set(ctx, txn); err != nil {
			logger.Log.Warnw("failed to cache completed transaction", "reference", txn.ExternalReference, "error", err)
		}
	}

	publishTransaction(ctx, kafka, txn)
}

// publishTransaction publishes a completed transaction to Kafka.
func publishTransaction(ctx context.Context, writer KafkaWriter, txn *models.TransactionDB) {
	if writer == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "transaction_id", txn.TransactionID)
		return
	}

	data, err := json.Marshal(txn)
	if err != nil {
		logger.Log.Errorw("Failed to marshal transaction for Kafka", "transaction_id", txn.TransactionID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(txn.TransactionID.String()),
		Value: data,
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish transaction to Kafka", "transaction_id", txn.TransactionID, "error", err)
	} else {
		logger.Log.Infow("Transaction published to Kafka", "transaction_id", txn.TransactionID, "amount", txn.Amount)
	}
}

// mapStorageErr translates storage-layer failures into the service taxonomy.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %v", ErrDuplicateReference, err)
		case pgLockNotAvailable, pgDeadlockDetected:
			return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrWalletNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
}

// mapFinalizeErr translates failures of a ledger status transition. A
// zero-row update means the guard on non-terminal statuses matched nothing,
// so another writer already finalized the row.
func mapFinalizeErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: transaction already finalized", ErrConcurrentModification)
	}
	return mapStorageErr(err)
}
