package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// DisputeStore persists transaction disputes.
type DisputeStore interface {
	Save(ctx context.Context, d *models.DisputeDB) error
	Update(ctx context.Context, d *models.DisputeDB) error
	GetByID(ctx context.Context, disputeID uuid.UUID) (*models.DisputeDB, error)
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.DisputeDB, error)
}

// TransactionGetter reads a single ledger transaction by id.
type TransactionGetter interface {
	GetByID(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDB, error)
}

// DisputeService manages the dispute lifecycle over completed ledger
// transactions. A dispute never mutates the transaction it references.
type DisputeService struct {
	disputes DisputeStore
	txns     TransactionGetter
}

func NewDisputeService(disputes DisputeStore, txns TransactionGetter) *DisputeService {
	return &DisputeService{disputes: disputes, txns: txns}
}

// Open raises a dispute against a completed transaction. The caller must be
// a participant of the transaction and the transaction must have completed
// within the dispute window. A transaction can carry at most one dispute.
func (s *DisputeService) Open(ctx context.Context, transactionID, userID uuid.UUID, reason string) (*models.DisputeDB, error) {
	txn, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	if !s.isParticipant(txn, userID) {
		return nil, fmt.Errorf("%w: user %s is not a party to transaction %s", ErrNotAuthorized, userID, transactionID)
	}

	if txn.Status != models.TransactionStatusCompleted || txn.CompletedAt == nil {
		return nil, fmt.Errorf("%w: only completed transactions can be disputed", ErrTransactionNotFound)
	}
	if time.Since(*txn.CompletedAt) > models.DisputeWindow {
		return nil, fmt.Errorf("%w: completed %s", ErrDisputeWindowExpired, txn.CompletedAt.Format(time.RFC3339))
	}

	if existing, err := s.disputes.GetByTransactionID(ctx, transactionID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: dispute %s", ErrAlreadyDisputed, existing.DisputeID)
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	d := &models.DisputeDB{
		DisputeID:     uuid.New(),
		TransactionID: transactionID,
		OpenedBy:      userID,
		Status:        models.DisputeStatusOpen,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}
	if err := s.disputes.Save(ctx, d); err != nil {
		return nil, mapStorageErr(err)
	}

	logger.Log.Infow("dispute opened", "dispute_id", d.DisputeID, "transaction_id", transactionID, "opened_by", userID)
	return d, nil
}

// StartInvestigation moves an open dispute into investigation.
func (s *DisputeService) StartInvestigation(ctx context.Context, disputeID uuid.UUID) (*models.DisputeDB, error) {
	return s.transition(ctx, disputeID, models.DisputeStatusInvestigating, nil)
}

// Resolve closes a dispute in the customer's favor.
func (s *DisputeService) Resolve(ctx context.Context, disputeID uuid.UUID, resolution string) (*models.DisputeDB, error) {
	return s.transition(ctx, disputeID, models.DisputeStatusResolved, &resolution)
}

// Reject closes a dispute without action.
func (s *DisputeService) Reject(ctx context.Context, disputeID uuid.UUID, resolution string) (*models.DisputeDB, error) {
	return s.transition(ctx, disputeID, models.DisputeStatusRejected, &resolution)
}

func (s *DisputeService) transition(ctx context.Context, disputeID uuid.UUID, to models.DisputeStatus, resolution *string) (*models.DisputeDB, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: dispute %s", ErrTransactionNotFound, disputeID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	if !validDisputeTransition(d.Status, to) {
		return nil, fmt.Errorf("%w: dispute %s is %s", ErrAlreadyDisputed, disputeID, d.Status)
	}

	d.Status = to
	if to == models.DisputeStatusResolved || to == models.DisputeStatusRejected {
		now := time.Now()
		d.Resolution = resolution
		d.ResolvedAt = &now
	}
	if err := s.disputes.Update(ctx, d); err != nil {
		return nil, mapStorageErr(err)
	}

	logger.Log.Infow("dispute status changed", "dispute_id", disputeID, "status", to)
	return d, nil
}

func (s *DisputeService) isParticipant(txn *models.TransactionDB, userID uuid.UUID) bool {
	if txn.FromUserID != nil && *txn.FromUserID == userID {
		return true
	}
	if txn.ToUserID != nil && *txn.ToUserID == userID {
		return true
	}
	return false
}

// validDisputeTransition encodes the open -> investigating -> closed state
// machine; closing straight from open is allowed.
func validDisputeTransition(from, to models.DisputeStatus) bool {
	switch from {
	case models.DisputeStatusOpen:
		return to == models.DisputeStatusInvestigating ||
			to == models.DisputeStatusResolved ||
			to == models.DisputeStatusRejected
	case models.DisputeStatusInvestigating:
		return to == models.DisputeStatusResolved || to == models.DisputeStatusRejected
	default:
		return false
	}
}
