package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// TxRunner is the atomic commit boundary: fn either commits as a whole or
// every write inside it is rolled back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WalletLocker loads wallets under row-level locks in ascending id order.
type WalletLocker interface {
	GetForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.WalletDB, error)
}

// BalanceApplier applies semantic mutations to a locked wallet.
type BalanceApplier interface {
	Credit(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error)
	Debit(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error)
	Hold(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error)
	Release(ctx context.Context, w *models.WalletDB, amount money.Money) (models.BalanceSnapshot, error)
}

// TransactionWriter appends ledger rows and drives status transitions.
type TransactionWriter interface {
	Save(ctx context.Context, txn *models.TransactionDB) error
	MarkCompleted(ctx context.Context, transactionID uuid.UUID, completedAt time.Time) error
	MarkFailed(ctx context.Context, transactionID uuid.UUID, reason string) error
}

// TransactionReader reads ledger rows for idempotency checks.
type TransactionReader interface {
	GetByReference(ctx context.Context, reference string) (*models.TransactionDB, error)
}

// FeeWriter appends fee lines to ledger transactions.
type FeeWriter interface {
	Save(ctx context.Context, fee *models.TransactionFeeDB) error
}

// ReferenceCache is a fast-path cache of completed transactions by reference.
type ReferenceCache interface {
	Get(ctx context.Context, reference string) (*models.TransactionDB, error)
	Set(ctx context.Context, txn *models.TransactionDB) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransferConfig carries the fee policies and the platform fee wallet.
// Transfer fees are added on top of the debited amount; payment fees are
// deducted from the net amount credited to the merchant. The two policies
// stay separate per operation type.
type TransferConfig struct {
	TransferFee      money.FeePolicy
	PaymentFee       money.FeePolicy
	PlatformWalletID *uuid.UUID
}

// TransferService orchestrates multi-wallet balance movements. Every
// money-affecting sequence runs inside one unit of work: debit, credit,
// ledger row, fee rows and the completed mark either all commit or none do.
type TransferService struct {
	uow     TxRunner
	lockers WalletLocker
	mutator BalanceApplier
	txns    TransactionWriter
	reader  TransactionReader
	fees    FeeWriter
	cache   ReferenceCache
	kafka   KafkaWriter
	cfg     TransferConfig
}

func NewTransferService(
	uow TxRunner,
	lockers WalletLocker,
	mutator BalanceApplier,
	txns TransactionWriter,
	reader TransactionReader,
	fees FeeWriter,
	cache ReferenceCache,
	kafka KafkaWriter,
	cfg TransferConfig,
) *TransferService {
	return &TransferService{
		uow:     uow,
		lockers: lockers,
		mutator: mutator,
		txns:    txns,
		reader:  reader,
		fees:    fees,
		cache:   cache,
		kafka:   kafka,
		cfg:     cfg,
	}
}

// Transfer moves funds between two wallets. Cross-owner transfers incur the
// configured transfer fee on top of the amount; transfers between wallets of
// the same owner are fee-exempt. The fee, when a platform wallet is
// configured, is credited there inside the same unit of work.
func (s *TransferService) Transfer(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.SourceWalletID == nil || req.DestWalletID == nil {
		return nil, fmt.Errorf("%w: transfer requires both wallets", ErrWalletNotFound)
	}

	if existing, err := resolveReference(ctx, s.cache, s.reader, req.Reference, req.Retry); existing != nil || err != nil {
		return existing, err
	}

	var txn *models.TransactionDB
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		lockIDs := []uuid.UUID{*req.SourceWalletID, *req.DestWalletID}
		if s.cfg.PlatformWalletID != nil {
			lockIDs = append(lockIDs, *s.cfg.PlatformWalletID)
		}

		wallets, err := s.lockers.GetForUpdate(ctx, lockIDs...)
		if err != nil {
			return mapStorageErr(err)
		}

		source, ok := wallets[*req.SourceWalletID]
		if !ok {
			return fmt.Errorf("%w: source %s", ErrWalletNotFound, req.SourceWalletID)
		}
		dest, ok := wallets[*req.DestWalletID]
		if !ok {
			return fmt.Errorf("%w: destination %s", ErrWalletNotFound, req.DestWalletID)
		}

		if source.Currency != dest.Currency {
			return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, source.Currency, dest.Currency)
		}
		if req.Currency != "" && req.Currency != source.Currency {
			return fmt.Errorf("%w: requested %s, wallet holds %s", ErrCurrencyMismatch, req.Currency, source.Currency)
		}

		// Same-owner transfers are fee-exempt.
		feePolicy := s.cfg.TransferFee
		if source.UserID == dest.UserID {
			feePolicy = money.NoFee{}
		}
		fee, err := money.CalculateFee(req.Amount, feePolicy)
		if err != nil {
			return err
		}

		fromSnap, err := s.mutator.Debit(ctx, source, req.Amount.Add(fee))
		if err != nil {
			return err
		}
		toSnap, err := s.mutator.Credit(ctx, dest, req.Amount)
		if err != nil {
			return err
		}

		if fee.IsPositive() && s.cfg.PlatformWalletID != nil {
			platform, ok := wallets[*s.cfg.PlatformWalletID]
			if !ok {
				return fmt.Errorf("%w: platform fee wallet", ErrWalletNotFound)
			}
			if _, err := s.mutator.Credit(ctx, platform, fee); err != nil {
				return err
			}
		}

		now := time.Now()
		txn = &models.TransactionDB{
			TransactionID:     uuid.New(),
			Type:              models.TransactionTypeTransfer,
			Status:            models.TransactionStatusPending,
			Direction:         models.DirectionInternal,
			Amount:            req.Amount,
			FeeAmount:         fee,
			NetAmount:         req.Amount,
			Currency:          source.Currency,
			FromUserID:        &source.UserID,
			ToUserID:          &dest.UserID,
			FromWalletID:      &source.WalletID,
			ToWalletID:        &dest.WalletID,
			FromBalanceBefore: &fromSnap.Before,
			FromBalanceAfter:  &fromSnap.After,
			ToBalanceBefore:   &toSnap.Before,
			ToBalanceAfter:    &toSnap.After,
			Description:       req.Description,
			ExternalReference: req.Reference,
			CreatedAt:         now,
		}
		if err := s.txns.Save(ctx, txn); err != nil {
			return mapStorageErr(err)
		}

		if fee.IsPositive() {
			if err := s.saveFeeRow(ctx, txn.TransactionID, models.FeeTypeTransfer, fee, feePolicy, "Transfer fee"); err != nil {
				return mapStorageErr(err)
			}
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

	finalize(ctx, s.cache, s.kafka, txn)
	return txn, nil
}

// Pay settles a payment against a merchant wallet. Unlike Transfer, the
// payment fee is deducted from the amount credited to the merchant: the
// payer is debited the full amount, the merchant receives amount - fee.
func (s *TransferService) Pay(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.SourceWalletID == nil || req.DestWalletID == nil {
		return nil, fmt.Errorf("%w: payment requires both wallets", ErrWalletNotFound)
	}

	if existing, err := resolveReference(ctx, s.cache, s.reader, req.Reference, req.Retry); existing != nil || err != nil {
		return existing, err
	}

	var txn *models.TransactionDB
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		lockIDs := []uuid.UUID{*req.SourceWalletID, *req.DestWalletID}
		if s.cfg.PlatformWalletID != nil {
			lockIDs = append(lockIDs, *s.cfg.PlatformWalletID)
		}

		wallets, err := s.lockers.GetForUpdate(ctx, lockIDs...)
		if err != nil {
			return mapStorageErr(err)
		}

		payer, ok := wallets[*req.SourceWalletID]
		if !ok {
			return fmt.Errorf("%w: payer %s", ErrWalletNotFound, req.SourceWalletID)
		}
		merchant, ok := wallets[*req.DestWalletID]
		if !ok {
			return fmt.Errorf("%w: merchant %s", ErrWalletNotFound, req.DestWalletID)
		}
		if payer.Currency != merchant.Currency {
			return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, payer.Currency, merchant.Currency)
		}

		fee, err := money.CalculateFee(req.Amount, s.cfg.PaymentFee)
		if err != nil {
			return err
		}
		net := req.Amount.Sub(fee)

		fromSnap, err := s.mutator.Debit(ctx, payer, req.Amount)
		if err != nil {
			return err
		}
		toSnap, err := s.mutator.Credit(ctx, merchant, net)
		if err != nil {
			return err
		}

		if fee.IsPositive() && s.cfg.PlatformWalletID != nil {
			platform, ok := wallets[*s.cfg.PlatformWalletID]
			if !ok {
				return fmt.Errorf("%w: platform fee wallet", ErrWalletNotFound)
			}
			if _, err := s.mutator.Credit(ctx, platform, fee); err != nil {
				return err
			}
		}

		now := time.Now()
		txn = &models.TransactionDB{
			TransactionID:     uuid.New(),
			Type:              models.TransactionTypePayment,
			Status:            models.TransactionStatusPending,
			Direction:         models.DirectionInternal,
			Amount:            req.Amount,
			FeeAmount:         fee,
			NetAmount:         net,
			Currency:          payer.Currency,
			FromUserID:        &payer.UserID,
			ToUserID:          &merchant.UserID,
			FromWalletID:      &payer.WalletID,
			ToWalletID:        &merchant.WalletID,
			FromBalanceBefore: &fromSnap.Before,
			FromBalanceAfter:  &fromSnap.After,
			ToBalanceBefore:   &toSnap.Before,
			ToBalanceAfter:    &toSnap.After,
			Description:       req.Description,
			ExternalReference: req.Reference,
			CreatedAt:         now,
		}
		if err := s.txns.Save(ctx, txn); err != nil {
			return mapStorageErr(err)
		}

		if fee.IsPositive() {
			if err := s.saveFeeRow(ctx, txn.TransactionID, models.FeeTypePayment, fee, s.cfg.PaymentFee, "Payment processing fee"); err != nil {
				return mapStorageErr(err)
			}
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

	finalize(ctx, s.cache, s.kafka, txn)
	return txn, nil
}

// Hold reserves funds on a single wallet and records a hold ledger row.
func (s *TransferService) Hold(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error) {
	return s.singleWalletOp(ctx, req, models.TransactionTypeHold)
}

// Release returns previously held funds and records a release ledger row.
func (s *TransferService) Release(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error) {
	return s.singleWalletOp(ctx, req, models.TransactionTypeRelease)
}

func (s *TransferService) singleWalletOp(ctx context.Context, req models.OperationRequest, op models.TransactionType) (*models.TransactionDB, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.SourceWalletID == nil {
		return nil, fmt.Errorf("%w: wallet id required", ErrWalletNotFound)
	}

	if existing, err := resolveReference(ctx, s.cache, s.reader, req.Reference, req.Retry); existing != nil || err != nil {
		return existing, err
	}

	var txn *models.TransactionDB
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		wallets, err := s.lockers.GetForUpdate(ctx, *req.SourceWalletID)
		if err != nil {
			return mapStorageErr(err)
		}
		wallet, ok := wallets[*req.SourceWalletID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, req.SourceWalletID)
		}

		var snap models.BalanceSnapshot
		if op == models.TransactionTypeHold {
			snap, err = s.mutator.Hold(ctx, wallet, req.Amount)
		} else {
			snap, err = s.mutator.Release(ctx, wallet, req.Amount)
		}
		if err != nil {
			return err
		}

		now := time.Now()
		txn = &models.TransactionDB{
			TransactionID:     uuid.New(),
			Type:              op,
			Status:            models.TransactionStatusPending,
			Direction:         models.DirectionInternal,
			Amount:            req.Amount,
			FeeAmount:         money.Zero(),
			NetAmount:         req.Amount,
			Currency:          wallet.Currency,
			FromUserID:        &wallet.UserID,
			FromWalletID:      &wallet.WalletID,
			FromBalanceBefore: &snap.Before,
			FromBalanceAfter:  &snap.After,
			Description:       req.Description,
			ExternalReference: req.Reference,
			CreatedAt:         now,
		}
		if err := s.txns.Save(ctx, txn); err != nil {
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

	finalize(ctx, s.cache, s.kafka, txn)
	return txn, nil
}

func (s *TransferService) validateRequest(req models.OperationRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if !req.PreVerifiedAuth {
		return ErrNotAuthorized
	}
	return nil
}

func (s *TransferService) saveFeeRow(ctx context.Context, transactionID uuid.UUID, feeType string, fee money.Money, policy money.FeePolicy, description string) error {
	row := &models.TransactionFeeDB{
		FeeID:         uuid.New(),
		TransactionID: transactionID,
		FeeType:       feeType,
		Amount:        fee,
		Description:   description,
	}
	if p, ok := policy.(money.PercentFee); ok {
		rate := p.Rate
		row.Percentage = &rate
	}
	return s.fees.Save(ctx, row)
}
