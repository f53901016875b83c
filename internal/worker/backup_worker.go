package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/ledger"
	"moneymanager/internal/sheets"
)

// BackupWorker mirrors the persisted month history to a backup target whenever
// a ledger change is announced.
type BackupWorker struct {
	history  ledger.HistoryStore
	target   sheets.Exporter
	creds    sheets.Credentials
	debounce time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastExport time.Time
	pending    bool
}

func NewBackupWorker(history ledger.HistoryStore, target sheets.Exporter, creds sheets.Credentials, debounce time.Duration) *BackupWorker {
	return &BackupWorker{
		history:  history,
		target:   target,
		creds:    creds,
		debounce: debounce,
		now:      time.Now,
	}
}

// HandleLedgerChanged processes a single ledger change message from AMQP.
// Changes arriving within the debounce window of the last export are folded
// into the next FlushPending call.
func (w *BackupWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change message",
		"month", msg.Month,
		"operation", msg.Operation)

	w.mu.Lock()
	if w.debounce > 0 && !w.lastExport.IsZero() && w.now().Sub(w.lastExport) < w.debounce {
		w.pending = true
		w.mu.Unlock()
		slog.DebugContext(ctx, "Backup debounced", "month", msg.Month)
		return nil
	}
	w.mu.Unlock()

	return w.ExportNow(ctx)
}

// FlushPending exports if changes were debounced since the last export.
// This is the backstop for bursts of messages.
func (w *BackupWorker) FlushPending(ctx context.Context) error {
	w.mu.Lock()
	pending := w.pending
	w.mu.Unlock()
	if !pending {
		return nil
	}
	return w.ExportNow(ctx)
}

// ExportNow loads the stored history and writes it to the target.
func (w *BackupWorker) ExportNow(ctx context.Context) error {
	h, _, err := w.history.LoadHistory(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	stats, err := w.target.Export(ctx, w.creds, h)
	if err != nil {
		w.mu.Lock()
		w.pending = true
		w.mu.Unlock()
		return fmt.Errorf("export history: %w", err)
	}

	w.mu.Lock()
	w.lastExport = w.now()
	w.pending = false
	w.mu.Unlock()

	slog.InfoContext(ctx, "Backup exported",
		"transactions_count", stats.TransactionsCount,
		"months_count", stats.MonthsCount)
	return nil
}

// Pending reports whether a change is waiting to be exported.
func (w *BackupWorker) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}
