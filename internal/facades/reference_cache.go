package facades

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// ReferenceCacheFacade keeps completed transactions in Redis keyed by their
// external reference, so idempotent replays skip the database.
type ReferenceCacheFacade struct {
	client *redis.Client
	exp    time.Duration
}

func NewReferenceCacheFacade(client *redis.Client, expiration time.Duration) *ReferenceCacheFacade {
	return &ReferenceCacheFacade{client: client, exp: expiration}
}

func referenceKey(reference string) string {
	return fmt.Sprintf("txn:ref:%s", reference)
}

// Get returns the cached transaction for a reference, or nil on a miss.
func (f *ReferenceCacheFacade) Get(ctx context.Context, reference string) (*models.TransactionDB, error) {
	key := referenceKey(reference)

	val, err := f.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logger.Log.Infow(
			"key", key,
			"error", err,
		)
		return nil, err
	}

	var txn models.TransactionDB
	if err := json.Unmarshal([]byte(val), &txn); err != nil {
		logger.Log.Warnw("corrupt cached transaction, dropping", "key", key, "error", err)
		f.client.Del(ctx, key)
		return nil, nil
	}

	return &txn, nil
}

// Set caches a transaction under its external reference.
func (f *ReferenceCacheFacade) Set(ctx context.Context, txn *models.TransactionDB) error {
	if txn == nil || txn.ExternalReference == "" {
		return nil
	}
	key := referenceKey(txn.ExternalReference)

	data, err := json.Marshal(txn)
	if err != nil {
		return err
	}

	err = f.client.Set(ctx, key, data, f.exp).Err()

	logger.Log.Infow(
		"key", key,
		"transaction_id", txn.TransactionID,
		"error", err,
	)

	return err
}
