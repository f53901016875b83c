package services

import (
	"context"
	"errors"
	"fmt"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/ledger"
	"moneymanager/internal/log"
	"moneymanager/internal/sheets"
)

// Operation names carried by ledger change events.
const (
	OpMonthCreate       = "month.create"
	OpTransactionAdd    = "transaction.add"
	OpTransactionDelete = "transaction.delete"
	OpBalancesUpdate    = "balances.update"
	OpNoteAdd           = "note.add"
	OpNoteDelete        = "note.delete"
	OpImport            = "import"
)

// ErrUnconfirmedConflicts is returned by Import when incoming months already
// exist and the caller has not decided which of them to overwrite.
var ErrUnconfirmedConflicts = errors.New("import has unconfirmed conflicting months")

// RateSource provides the current exchange rate table.
type RateSource interface {
	Current() currency.Table
}

// ChangeListener is told which month changed after a successful mutation.
type ChangeListener func(month core.MonthKey)

// LedgerService orchestrates month mutations, change events and backups.
type LedgerService struct {
	manager   *ledger.Manager
	rates     RateSource
	publisher amqp.Publisher
	backup    sheets.Target
	logger    *log.Logger
	listeners []ChangeListener
}

func NewLedgerService(manager *ledger.Manager, rates RateSource, publisher amqp.Publisher, backup sheets.Target, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		manager:   manager,
		rates:     rates,
		publisher: publisher,
		backup:    backup,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// OnChange registers a listener, e.g. for cache invalidation.
func (s *LedgerService) OnChange(fn ChangeListener) {
	s.listeners = append(s.listeners, fn)
}

func (s *LedgerService) Manager() *ledger.Manager { return s.manager }

func (s *LedgerService) Rates() currency.Table { return s.rates.Current() }

// CreateMonth returns the month, creating it by rollover when missing.
func (s *LedgerService) CreateMonth(ctx context.Context, key core.MonthKey) (core.MonthRecord, bool, error) {
	_, existed := s.manager.Month(key)
	r, err := s.manager.GetOrCreateMonth(ctx, key)
	if err != nil {
		return core.MonthRecord{}, false, err
	}
	if !existed {
		s.changed(ctx, key, OpMonthCreate)
	}
	return r, !existed, nil
}

func (s *LedgerService) AddTransaction(ctx context.Context, key core.MonthKey, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.manager.AddTransaction(ctx, key, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	log.NewStructuredLogger(s.logger).LogTransactionRecorded(ctx, string(key), saved.ID,
		string(saved.Kind), saved.Amount.String(), string(saved.Currency), saved.Category)
	s.changed(ctx, key, OpTransactionAdd)
	return saved, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, key core.MonthKey, id string) error {
	removed, err := s.manager.DeleteTransaction(ctx, key, id)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldMonth, key, log.FieldTxnID, removed.ID, log.FieldOperation, log.OpDelete)
	s.changed(ctx, key, OpTransactionDelete)
	return nil
}

func (s *LedgerService) UpdateBalances(ctx context.Context, key core.MonthKey, b core.CurrencyBalance) error {
	if err := s.manager.UpdateBalances(ctx, key, b); err != nil {
		return err
	}
	s.changed(ctx, key, OpBalancesUpdate)
	return nil
}

func (s *LedgerService) AddNote(ctx context.Context, key core.MonthKey, bucket core.Bucket, n core.CurrencyNote) (core.CurrencyNote, error) {
	saved, err := s.manager.AddNote(ctx, key, bucket, n)
	if err != nil {
		return core.CurrencyNote{}, err
	}
	s.changed(ctx, key, OpNoteAdd)
	return saved, nil
}

func (s *LedgerService) DeleteNote(ctx context.Context, key core.MonthKey, bucket core.Bucket, id string) error {
	if err := s.manager.DeleteNote(ctx, key, bucket, id); err != nil {
		return err
	}
	s.changed(ctx, key, OpNoteDelete)
	return nil
}

// Summary aggregates an existing month in the display currency using the
// given rates. The returned version is the manager Version the month was
// read at, so callers can key caches on exactly the state summarized.
func (s *LedgerService) Summary(key core.MonthKey, display currency.Display, rates currency.Table) (ledger.MonthSummary, uint64, error) {
	r, version, ok := s.manager.Snapshot(key)
	if !ok {
		return ledger.MonthSummary{}, version, fmt.Errorf("month %s: %w", key, ledger.ErrNotFound)
	}
	return ledger.Summarize(key, r, rates, display), version, nil
}

// Export writes the full history to the backup target.
func (s *LedgerService) Export(ctx context.Context, creds sheets.Credentials) (sheets.ExportStats, error) {
	stats, err := s.backup.Export(ctx, creds, s.manager.History())
	if err != nil {
		s.logger.ErrorContext(ctx, "Export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		return sheets.ExportStats{}, err
	}
	s.logger.InfoContext(ctx, "Export successful",
		log.FieldOperation, log.OpExport,
		log.FieldTxnCount, stats.TransactionsCount,
		log.FieldMonthsCount, stats.MonthsCount)
	return stats, nil
}

// ImportRequest selects which conflicting months may be overwritten.
// With Decided false, any conflict aborts the import before changes are made.
type ImportRequest struct {
	Credentials sheets.Credentials
	Overwrite   []core.MonthKey
	Decided     bool
}

// ImportOutcome reports the merge and the months that were not overwritten.
type ImportOutcome struct {
	Result    ledger.ImportResult
	Conflicts []core.MonthKey
	Incoming  core.MonthHistory
}

// Import reads the backup target and merges it into the ledger. Existing
// months are replaced only when listed in req.Overwrite.
func (s *LedgerService) Import(ctx context.Context, req ImportRequest) (ImportOutcome, error) {
	incoming, err := s.backup.Import(ctx, req.Credentials)
	if err != nil {
		s.logger.ErrorContext(ctx, "Import failed", log.FieldOperation, log.OpImport, log.FieldError, err)
		return ImportOutcome{}, err
	}

	confirmed := map[core.MonthKey]bool{}
	for _, k := range req.Overwrite {
		confirmed[k] = true
	}
	var unconfirmed []core.MonthKey
	for _, k := range s.manager.Conflicts(incoming) {
		if !confirmed[k] {
			unconfirmed = append(unconfirmed, k)
		}
	}
	out := ImportOutcome{Conflicts: unconfirmed, Incoming: incoming}
	if len(unconfirmed) > 0 && !req.Decided {
		return out, ErrUnconfirmedConflicts
	}

	res, err := s.manager.Import(ctx, incoming, ledger.ConfirmKeys(req.Overwrite...))
	if err != nil {
		return out, err
	}
	out.Result = res

	s.logger.InfoContext(ctx, "Import successful",
		log.FieldOperation, log.OpImport,
		log.FieldMonthsCount, len(incoming),
		"inserted", len(res.Inserted),
		"overwritten", len(res.Overwritten),
		"skipped", len(res.Skipped))

	for _, k := range append(append([]core.MonthKey{}, res.Inserted...), res.Overwritten...) {
		s.changed(ctx, k, OpImport)
	}
	return out, nil
}

// changed notifies listeners and publishes the change. Publishing failures
// are logged; the mutation is already persisted.
func (s *LedgerService) changed(ctx context.Context, key core.MonthKey, op string) {
	for _, fn := range s.listeners {
		fn(key)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, string(key), op); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldMonth, key, log.FieldOperation, op, log.FieldError, err)
	}
}
