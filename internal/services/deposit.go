package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/facades"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// PaymentProvider is the port to the external money rails; protocol details
// live behind it.
type PaymentProvider interface {
	Process(ctx context.Context, amount money.Money, currency, reference string) (facades.ProviderResult, error)
}

// DepositConfig carries the deposit fee policy. The fee is deducted from the
// amount credited to the wallet, mirroring how external providers settle.
type DepositConfig struct {
	DepositFee money.FeePolicy
}

// DepositService handles provider-backed inbound and outbound flows. Both
// flows write a processing ledger row before the provider is contacted, so
// the idempotency reference is claimed before money moves externally, and
// balances only change once the provider has confirmed, inside one unit of
// work. Withdrawals additionally hold the funds while the provider call is
// in flight so available funds cannot be double-spent, without ever needing
// manual compensation of a debit.
type DepositService struct {
	uow      TxRunner
	lockers  WalletLocker
	mutator  BalanceApplier
	txns     TransactionWriter
	reader   TransactionReader
	fees     FeeWriter
	cache    ReferenceCache
	provider PaymentProvider
	kafka    KafkaWriter
	cfg      DepositConfig
}

func NewDepositService(
	uow TxRunner,
	lockers WalletLocker,
	mutator BalanceApplier,
	txns TransactionWriter,
	reader TransactionReader,
	fees FeeWriter,
	cache ReferenceCache,
	provider PaymentProvider,
	kafka KafkaWriter,
	cfg DepositConfig,
) *DepositService {
	return &DepositService{
		uow:      uow,
		lockers:  lockers,
		mutator:  mutator,
		txns:     txns,
		reader:   reader,
		fees:     fees,
		cache:    cache,
		provider: provider,
		kafka:    kafka,
		cfg:      cfg,
	}
}

// Deposit funds a wallet from an external source in two phases. Phase one
// writes a processing ledger row so the idempotency reference is claimed
// before the provider is contacted; two racing deposits with the same
// reference then charge the provider at most once. Phase two, after the
// provider confirms, credits the net amount and completes the row in one
// unit of work; on provider failure the row is marked failed and balances
// are untouched. The deposit fee is deducted from the credited amount; the
// gross amount, fee and net are all recorded on the ledger row.
func (s *DepositService) Deposit(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if req.DestWalletID == nil {
		return nil, fmt.Errorf("%w: destination wallet required", ErrWalletNotFound)
	}

	if existing, err := resolveReference(ctx, s.cache, s.reader, req.Reference, req.Retry); existing != nil || err != nil {
		return existing, err
	}

	fee, err := money.CalculateFee(req.Amount, s.cfg.DepositFee)
	if err != nil {
		return nil, err
	}
	net := req.Amount.Sub(fee)

	var txn *models.TransactionDB

	// Phase one: claim the reference with an in-flight marker.
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		wallets, err := s.lockers.GetForUpdate(ctx, *req.DestWalletID)
		if err != nil {
			return mapStorageErr(err)
		}
		wallet, ok := wallets[*req.DestWalletID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, req.DestWalletID)
		}
		if !wallet.IsActive() {
			return fmt.Errorf("%w: status %s", ErrWalletNotActive, wallet.Status)
		}
		if req.Currency != "" && req.Currency != wallet.Currency {
			return fmt.Errorf("%w: deposit %s into %s wallet", ErrCurrencyMismatch, req.Currency, wallet.Currency)
		}

		txn = &models.TransactionDB{
			TransactionID:     uuid.New(),
			Type:              models.TransactionTypeDeposit,
			Status:            models.TransactionStatusProcessing,
			Direction:         models.DirectionInbound,
			Amount:            req.Amount,
			FeeAmount:         fee,
			NetAmount:         net,
			Currency:          wallet.Currency,
			ToUserID:          &wallet.UserID,
			ToWalletID:        &wallet.WalletID,
			Description:       req.Description,
			ExternalReference: req.Reference,
			CreatedAt:         time.Now(),
		}
		return mapStorageErr(s.txns.Save(ctx, txn))
	})
	if err != nil {
		return nil, err
	}

	result, providerErr := s.provider.Process(ctx, req.Amount, req.Currency, req.Reference)
	if providerErr != nil || !result.Success {
		reason := "provider rejected deposit"
		if providerErr != nil {
			reason = providerErr.Error()
		}
		if markErr := s.txns.MarkFailed(ctx, txn.TransactionID, reason); markErr != nil {
			logger.Log.Errorw("failed to mark deposit failed", "transaction_id", txn.TransactionID, "error", markErr)
		}
		txn.Status = models.TransactionStatusFailed
		txn.FailureReason = &reason
		return txn, fmt.Errorf("%w: %s", ErrProviderFailure, reason)
	}

	// Phase two: credit the wallet and settle the fees.
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		wallets, err := s.lockers.GetForUpdate(ctx, *req.DestWalletID)
		if err != nil {
			return mapStorageErr(err)
		}
		wallet, ok := wallets[*req.DestWalletID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, req.DestWalletID)
		}

		snap, err := s.mutator.Credit(ctx, wallet, net)
		if err != nil {
			return err
		}
		txn.ToBalanceBefore = &snap.Before
		txn.ToBalanceAfter = &snap.After
		txn.ProviderReference = &result.ProviderReference

		if fee.IsPositive() {
			feeRow := &models.TransactionFeeDB{
				FeeID:         uuid.New(),
				TransactionID: txn.TransactionID,
				FeeType:       models.FeeTypeDeposit,
				Amount:        fee,
				Description:   "Deposit processing fee",
			}
			if p, ok := s.cfg.DepositFee.(money.PercentFee); ok {
				rate := p.Rate
				feeRow.Percentage = &rate
			}
			if err := s.fees.Save(ctx, feeRow); err != nil {
				return mapStorageErr(err)
			}
		}
		if result.Fee.IsPositive() {
			providerRow := &models.TransactionFeeDB{
				FeeID:         uuid.New(),
				TransactionID: txn.TransactionID,
				FeeType:       models.FeeTypeProvider,
				Amount:        result.Fee,
				Description:   "Provider fee",
			}
			if err := s.fees.Save(ctx, providerRow); err != nil {
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

// Withdraw moves funds out of a wallet to an external destination in two
// phases. Phase one holds the funds and writes a processing ledger row.
// Phase two, after the provider confirms, releases the hold and debits in
// one unit of work; on provider failure the hold is released and the row
// marked failed, leaving balances exactly as before.
func (s *DepositService) Withdraw(ctx context.Context, req models.OperationRequest) (*models.TransactionDB, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if req.SourceWalletID == nil {
		return nil, fmt.Errorf("%w: source wallet required", ErrWalletNotFound)
	}
	if !req.PreVerifiedAuth {
		return nil, ErrNotAuthorized
	}

	if existing, err := resolveReference(ctx, s.cache, s.reader, req.Reference, req.Retry); existing != nil || err != nil {
		return existing, err
	}

	var txn *models.TransactionDB

	// Phase one: hold the funds.
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		wallets, err := s.lockers.GetForUpdate(ctx, *req.SourceWalletID)
		if err != nil {
			return mapStorageErr(err)
		}
		wallet, ok := wallets[*req.SourceWalletID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, req.SourceWalletID)
		}

		snap, err := s.mutator.Hold(ctx, wallet, req.Amount)
		if err != nil {
			return err
		}

		now := time.Now()
		txn = &models.TransactionDB{
			TransactionID:     uuid.New(),
			Type:              models.TransactionTypeWithdrawal,
			Status:            models.TransactionStatusProcessing,
			Direction:         models.DirectionOutbound,
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
		return mapStorageErr(s.txns.Save(ctx, txn))
	})
	if err != nil {
		return nil, err
	}

	result, providerErr := s.provider.Process(ctx, req.Amount, req.Currency, req.Reference)
	providerOK := providerErr == nil && result.Success

	// Phase two: settle or revert the hold.
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		wallets, err := s.lockers.GetForUpdate(ctx, *req.SourceWalletID)
		if err != nil {
			return mapStorageErr(err)
		}
		wallet, ok := wallets[*req.SourceWalletID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, req.SourceWalletID)
		}

		if _, err := s.mutator.Release(ctx, wallet, req.Amount); err != nil {
			return err
		}

		if !providerOK {
			reason := "provider rejected withdrawal"
			if providerErr != nil {
				reason = providerErr.Error()
			}
			txn.Status = models.TransactionStatusFailed
			txn.FailureReason = &reason
			return mapFinalizeErr(s.txns.MarkFailed(ctx, txn.TransactionID, reason))
		}

		snap, err := s.mutator.Debit(ctx, wallet, req.Amount)
		if err != nil {
			return err
		}
		txn.FromBalanceAfter = &snap.After
		txn.ProviderReference = &result.ProviderReference

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

	if !providerOK {
		logger.Log.Warnw("withdrawal failed at provider", "reference", req.Reference, "error", providerErr)
		return txn, fmt.Errorf("%w: %v", ErrProviderFailure, providerErr)
	}

	finalize(ctx, s.cache, s.kafka, txn)
	return txn, nil
}
