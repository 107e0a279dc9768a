package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/facades"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// ledgerFake is an in-memory stand-in for the postgres-backed repositories.
// WithinTx snapshots the whole state and restores it when fn fails, so the
// orchestrators' all-or-nothing behavior is observable. The transaction
// mutex doubles as the row-lock serialization GetForUpdate provides in
// postgres.
type ledgerFake struct {
	mu sync.Mutex

	wallets map[uuid.UUID]*models.WalletDB
	txns    map[uuid.UUID]*models.TransactionDB
	byRef   map[string]uuid.UUID
	fees    []*models.TransactionFeeDB

	// injected faults
	walletSaveErr error
	txnSaveErr    error
	markErr       error
}

func newLedgerFake(wallets ...*models.WalletDB) *ledgerFake {
	f := &ledgerFake{
		wallets: make(map[uuid.UUID]*models.WalletDB),
		txns:    make(map[uuid.UUID]*models.TransactionDB),
		byRef:   make(map[string]uuid.UUID),
	}
	for _, w := range wallets {
		f.wallets[w.WalletID] = w
	}
	return f
}

func (f *ledgerFake) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	walletsBak := make(map[uuid.UUID]models.WalletDB, len(f.wallets))
	for id, w := range f.wallets {
		walletsBak[id] = *w
	}
	txnsBak := make(map[uuid.UUID]models.TransactionDB, len(f.txns))
	for id, t := range f.txns {
		txnsBak[id] = *t
	}
	feesLen := len(f.fees)

	if err := fn(ctx); err != nil {
		f.wallets = make(map[uuid.UUID]*models.WalletDB, len(walletsBak))
		for id := range walletsBak {
			w := walletsBak[id]
			f.wallets[id] = &w
		}
		f.txns = make(map[uuid.UUID]*models.TransactionDB, len(txnsBak))
		f.byRef = make(map[string]uuid.UUID, len(txnsBak))
		for id := range txnsBak {
			t := txnsBak[id]
			f.txns[id] = &t
			if t.ExternalReference != "" {
				f.byRef[t.ExternalReference] = id
			}
		}
		f.fees = f.fees[:feesLen]
		return err
	}
	return nil
}

func (f *ledgerFake) GetForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.WalletDB, error) {
	out := make(map[uuid.UUID]*models.WalletDB, len(ids))
	for _, id := range ids {
		if w, ok := f.wallets[id]; ok {
			out[id] = w
		}
	}
	return out, nil
}

func (f *ledgerFake) SaveWallet(ctx context.Context, w *models.WalletDB) error {
	return f.walletSaveErr
}

func (f *ledgerFake) SaveTxn(ctx context.Context, txn *models.TransactionDB) error {
	if f.txnSaveErr != nil {
		return f.txnSaveErr
	}
	if txn.ExternalReference != "" {
		if _, exists := f.byRef[txn.ExternalReference]; exists {
			return &pgconn.PgError{Code: pgUniqueViolation}
		}
		f.byRef[txn.ExternalReference] = txn.TransactionID
	}
	clone := *txn
	f.txns[txn.TransactionID] = &clone
	return nil
}

func (f *ledgerFake) MarkCompleted(ctx context.Context, transactionID uuid.UUID, completedAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	txn, ok := f.txns[transactionID]
	if !ok || txn.IsTerminal() {
		return sql.ErrNoRows
	}
	txn.Status = models.TransactionStatusCompleted
	txn.CompletedAt = &completedAt
	return nil
}

func (f *ledgerFake) MarkFailed(ctx context.Context, transactionID uuid.UUID, reason string) error {
	txn, ok := f.txns[transactionID]
	if !ok || txn.IsTerminal() {
		return sql.ErrNoRows
	}
	txn.Status = models.TransactionStatusFailed
	txn.FailureReason = &reason
	return nil
}

func (f *ledgerFake) GetByID(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDB, error) {
	txn, ok := f.txns[transactionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *txn
	return &clone, nil
}

func (f *ledgerFake) GetByReference(ctx context.Context, reference string) (*models.TransactionDB, error) {
	id, ok := f.byRef[reference]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f.GetByID(ctx, id)
}

func (f *ledgerFake) SaveFee(ctx context.Context, fee *models.TransactionFeeDB) error {
	clone := *fee
	f.fees = append(f.fees, &clone)
	return nil
}

// Adapters so each small service interface can be satisfied separately.

type walletSaverFake struct{ f *ledgerFake }

func (a walletSaverFake) Save(ctx context.Context, w *models.WalletDB) error {
	return a.f.SaveWallet(ctx, w)
}

type txnWriterFake struct{ f *ledgerFake }

func (a txnWriterFake) Save(ctx context.Context, txn *models.TransactionDB) error {
	return a.f.SaveTxn(ctx, txn)
}

func (a txnWriterFake) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return a.f.MarkCompleted(ctx, id, at)
}

func (a txnWriterFake) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return a.f.MarkFailed(ctx, id, reason)
}

type feeWriterFake struct{ f *ledgerFake }

func (a feeWriterFake) Save(ctx context.Context, fee *models.TransactionFeeDB) error {
	return a.f.SaveFee(ctx, fee)
}

type kafkaFake struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (k *kafkaFake) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.messages = append(k.messages, msgs...)
	return nil
}

func (k *kafkaFake) Close() error { return nil }

type providerFake struct {
	result facades.ProviderResult
	err    error
	calls  int
}

func (p *providerFake) Process(ctx context.Context, amount money.Money, currency, reference string) (facades.ProviderResult, error) {
	p.calls++
	return p.result, p.err
}

type repaymentStoreFake struct {
	entries   map[uuid.UUID]*models.AutoRepaymentDB
	schedules map[uuid.UUID]*models.RepaymentScheduleDB
}

func newRepaymentStoreFake() *repaymentStoreFake {
	return &repaymentStoreFake{
		entries:   make(map[uuid.UUID]*models.AutoRepaymentDB),
		schedules: make(map[uuid.UUID]*models.RepaymentScheduleDB),
	}
}

func (s *repaymentStoreFake) ListDue(ctx context.Context, now time.Time) ([]*models.AutoRepaymentDB, error) {
	var due []*models.AutoRepaymentDB
	for _, e := range s.entries {
		if e.Status != models.AutoRepaymentStatusActive {
			continue
		}
		if e.NextAttemptAt == nil || !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	return due, nil
}

func (s *repaymentStoreFake) GetByLoanID(ctx context.Context, loanID uuid.UUID) (*models.AutoRepaymentDB, error) {
	e, ok := s.entries[loanID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (s *repaymentStoreFake) Save(ctx context.Context, entry *models.AutoRepaymentDB) error {
	s.entries[entry.LoanID] = entry
	return nil
}

func (s *repaymentStoreFake) NextSchedule(ctx context.Context, loanID uuid.UUID) (*models.RepaymentScheduleDB, error) {
	sched, ok := s.schedules[loanID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sched, nil
}

func (s *repaymentStoreFake) SaveSchedule(ctx context.Context, schedule *models.RepaymentScheduleDB) error {
	s.schedules[schedule.LoanID] = schedule
	return nil
}

func (s *repaymentStoreFake) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, sched := range s.schedules {
		if sched.Status == models.RepaymentStatusPending && sched.DueDate.Before(now) {
			sched.Status = models.RepaymentStatusOverdue
			n++
		}
	}
	return n, nil
}

type disputeStoreFake struct {
	byID  map[uuid.UUID]*models.DisputeDB
	byTxn map[uuid.UUID]*models.DisputeDB
}

func newDisputeStoreFake() *disputeStoreFake {
	return &disputeStoreFake{
		byID:  make(map[uuid.UUID]*models.DisputeDB),
		byTxn: make(map[uuid.UUID]*models.DisputeDB),
	}
}

func (s *disputeStoreFake) Save(ctx context.Context, d *models.DisputeDB) error {
	if _, exists := s.byTxn[d.TransactionID]; exists {
		return &pgconn.PgError{Code: pgUniqueViolation}
	}
	clone := *d
	s.byID[d.DisputeID] = &clone
	s.byTxn[d.TransactionID] = &clone
	return nil
}

func (s *disputeStoreFake) Update(ctx context.Context, d *models.DisputeDB) error {
	stored, ok := s.byID[d.DisputeID]
	if !ok {
		return sql.ErrNoRows
	}
	*stored = *d
	return nil
}

func (s *disputeStoreFake) GetByID(ctx context.Context, disputeID uuid.UUID) (*models.DisputeDB, error) {
	d, ok := s.byID[disputeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *d
	return &clone, nil
}

func (s *disputeStoreFake) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.DisputeDB, error) {
	d, ok := s.byTxn[transactionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *d
	return &clone, nil
}

// Test helpers.

func activeWallet(userID uuid.UUID, currency, balance string) *models.WalletDB {
	return &models.WalletDB{
		WalletID:         uuid.New(),
		UserID:           userID,
		Currency:         currency,
		Status:           models.WalletStatusActive,
		Balance:          money.MustParse(balance),
		AvailableBalance: money.MustParse(balance),
		PendingBalance:   money.Zero(),
		DailySpent:       money.Zero(),
		MonthlySpent:     money.Zero(),
	}
}

func newTransferService(f *ledgerFake, cfg TransferConfig) *TransferService {
	return NewTransferService(
		f, f, NewBalanceMutator(walletSaverFake{f}),
		txnWriterFake{f}, f, feeWriterFake{f},
		nil, &kafkaFake{}, cfg,
	)
}

func newDepositService(f *ledgerFake, provider PaymentProvider, cfg DepositConfig) *DepositService {
	return NewDepositService(
		f, f, NewBalanceMutator(walletSaverFake{f}),
		txnWriterFake{f}, f, feeWriterFake{f},
		nil, provider, &kafkaFake{}, cfg,
	)
}

var errInjected = errors.New("injected failure")
