package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// ErrNotFound is returned when a month, transaction or note does not exist.
var ErrNotFound = errors.New("not found")

// HistoryStore loads and saves the whole month history. A save only succeeds
// when the stored history is still at the revision it was loaded at;
// otherwise it fails with storage.ErrRevisionConflict.
type HistoryStore interface {
	LoadHistory(ctx context.Context) (core.MonthHistory, int64, error)
	SaveHistory(ctx context.Context, h core.MonthHistory, expected int64) (int64, error)
}

// KVHistoryStore persists the history as one JSON blob under storage.KeyMonthHistory.
type KVHistoryStore struct {
	KV storage.KV
}

var _ HistoryStore = KVHistoryStore{}

func (s KVHistoryStore) LoadHistory(ctx context.Context) (core.MonthHistory, int64, error) {
	blob, rev, err := s.KV.GetRevision(ctx, storage.KeyMonthHistory)
	if errors.Is(err, storage.ErrNotFound) {
		return core.MonthHistory{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load month history: %w", err)
	}
	h, err := Deserialize(blob)
	if err != nil {
		return nil, 0, err
	}
	return h, rev, nil
}

func (s KVHistoryStore) SaveHistory(ctx context.Context, h core.MonthHistory, expected int64) (int64, error) {
	blob, err := Serialize(h)
	if err != nil {
		return 0, err
	}
	rev, err := s.KV.SetIfRevision(ctx, storage.KeyMonthHistory, blob, expected)
	if err != nil {
		return 0, fmt.Errorf("save month history: %w", err)
	}
	return rev, nil
}

// maxWriteAttempts bounds how often a write is rebuilt after another process
// saved the history first.
const maxWriteAttempts = 3

// Manager owns the month history. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	store    HistoryStore
	history  core.MonthHistory
	revision int64
	// version counts every change to history seen by this manager, local
	// commits and reloads alike.
	version uint64
	now     func() time.Time
	newID   func() string
	logger  *log.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides id generation for new entries.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager loads the persisted history.
func NewManager(ctx context.Context, store HistoryStore, opts ...Option) (*Manager, error) {
	m := &Manager{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.New(log.DefaultConfig())
	}
	m.logger = m.logger.WithComponent(log.ComponentLedger)

	if err := m.reloadLocked(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// reloadLocked replaces the in-memory history with the stored one.
func (m *Manager) reloadLocked(ctx context.Context) error {
	h, rev, err := m.store.LoadHistory(ctx)
	if err != nil {
		return err
	}
	if h == nil {
		h = core.MonthHistory{}
	}
	m.history, m.revision = h, rev
	m.version++
	return nil
}

// Version changes whenever the history this manager serves changes.
func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Snapshot returns a month together with the Version it was read at.
func (m *Manager) Snapshot(key core.MonthKey) (core.MonthRecord, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.history[key]
	if !ok {
		return core.MonthRecord{}, m.version, false
	}
	return r.Clone(), m.version, true
}

// Reconcile ensures the record for the current calendar month exists.
// It is run once at startup.
func (m *Manager) Reconcile(ctx context.Context) (core.MonthKey, bool, error) {
	key := core.MonthKeyOf(m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.history[key]; ok {
		return key, false, nil
	}
	created, err := m.createLocked(ctx, key)
	if err != nil || !created {
		return key, false, err
	}
	m.logger.InfoContext(ctx, "Created current month during reconciliation",
		log.FieldMonth, key, log.FieldOperation, log.OpReconcile)
	return key, true, nil
}

// GetOrCreateMonth returns the month, creating it by rollover when missing.
func (m *Manager) GetOrCreateMonth(ctx context.Context, key core.MonthKey) (core.MonthRecord, error) {
	if _, err := core.ParseMonthKey(string(key)); err != nil {
		return core.MonthRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.history[key]; ok {
		return r.Clone(), nil
	}
	if _, err := m.createLocked(ctx, key); err != nil {
		return core.MonthRecord{}, err
	}
	return m.history[key].Clone(), nil
}

// createLocked applies the rollover rule: balances and notes come from the
// latest existing month, transactions start empty. It reports false when the
// month turned out to exist in the stored history already.
func (m *Manager) createLocked(ctx context.Context, key core.MonthKey) (bool, error) {
	created := false
	err := m.writeLocked(ctx, func(h core.MonthHistory) (core.MonthHistory, error) {
		created = false
		if _, ok := h[key]; ok {
			return nil, nil
		}
		record := core.MonthRecord{Notes: core.EmptyNotes()}
		if latest, ok := h.Latest(); ok {
			prev := h[latest]
			record.Balances = prev.Balances
			record.Notes = prev.Notes.Clone()
		}
		record.Transactions = []core.Transaction{}
		record.Normalize()

		created = true
		return withMonth(h, key, record), nil
	})
	return created, err
}

// Month returns a month without creating it.
func (m *Manager) Month(key core.MonthKey) (core.MonthRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.history[key]
	if !ok {
		return core.MonthRecord{}, false
	}
	return r.Clone(), true
}

// Months returns the month keys in chronological order.
func (m *Manager) Months() []core.MonthKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.SortedKeys()
}

// History returns a deep copy of the whole history.
func (m *Manager) History() core.MonthHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Clone()
}

// Navigate moves step months through the existing keys starting at current.
// It stays at the first or last month when stepping past either end.
func (m *Manager) Navigate(current core.MonthKey, step int) core.MonthKey {
	keys := m.Months()
	if len(keys) == 0 {
		return current
	}
	idx := -1
	for i, k := range keys {
		if k == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		return keys[len(keys)-1]
	}
	idx += step
	if idx < 0 {
		idx = 0
	}
	if idx >= len(keys) {
		idx = len(keys) - 1
	}
	return keys[idx]
}

// IsHistorical reports whether key is older than the latest month.
func (m *Manager) IsHistorical(key core.MonthKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest, ok := m.history.Latest()
	return ok && key != latest
}

// AddTransaction validates and prepends a transaction.
func (m *Manager) AddTransaction(ctx context.Context, key core.MonthKey, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = m.newID()
	}
	if tx.Date.IsZero() {
		tx.Date = m.now()
	}

	err := m.mutate(ctx, key, func(r *core.MonthRecord) error {
		r.Transactions = append([]core.Transaction{tx}, r.Transactions...)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// DeleteTransaction removes exactly one transaction by id.
func (m *Manager) DeleteTransaction(ctx context.Context, key core.MonthKey, id string) (core.Transaction, error) {
	var removed core.Transaction
	err := m.mutate(ctx, key, func(r *core.MonthRecord) error {
		for i, tx := range r.Transactions {
			if tx.ID == id {
				removed = tx
				r.Transactions = append(r.Transactions[:i:i], r.Transactions[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("transaction %q: %w", id, ErrNotFound)
	})
	return removed, err
}

// UpdateBalances replaces the month's balances wholesale.
func (m *Manager) UpdateBalances(ctx context.Context, key core.MonthKey, b core.CurrencyBalance) error {
	return m.mutate(ctx, key, func(r *core.MonthRecord) error {
		r.Balances = b
		return nil
	})
}

// AddNote prepends a note to a currency bucket.
func (m *Manager) AddNote(ctx context.Context, key core.MonthKey, bucket core.Bucket, n core.CurrencyNote) (core.CurrencyNote, error) {
	if _, err := core.ParseBucket(string(bucket)); err != nil {
		return core.CurrencyNote{}, err
	}
	if err := n.Validate(); err != nil {
		return core.CurrencyNote{}, err
	}
	if n.ID == "" {
		n.ID = m.newID()
	}
	if n.Date.IsZero() {
		n.Date = m.now()
	}

	err := m.mutate(ctx, key, func(r *core.MonthRecord) error {
		r.Notes[bucket] = append([]core.CurrencyNote{n}, r.Notes[bucket]...)
		return nil
	})
	if err != nil {
		return core.CurrencyNote{}, err
	}
	return n, nil
}

// DeleteNote removes one note from a currency bucket.
func (m *Manager) DeleteNote(ctx context.Context, key core.MonthKey, bucket core.Bucket, id string) error {
	if _, err := core.ParseBucket(string(bucket)); err != nil {
		return err
	}
	return m.mutate(ctx, key, func(r *core.MonthRecord) error {
		notes := r.Notes[bucket]
		for i, n := range notes {
			if n.ID == id {
				r.Notes[bucket] = append(notes[:i:i], notes[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("note %q in %s: %w", id, bucket, ErrNotFound)
	})
}

// mutate applies fn to a copy of an existing month and commits it. fn may
// run more than once when the stored history moved on underneath.
func (m *Manager) mutate(ctx context.Context, key core.MonthKey, fn func(*core.MonthRecord) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeLocked(ctx, func(h core.MonthHistory) (core.MonthHistory, error) {
		current, ok := h[key]
		if !ok {
			return nil, fmt.Errorf("month %s: %w", key, ErrNotFound)
		}
		record := current.Clone()
		if err := fn(&record); err != nil {
			return nil, err
		}
		return withMonth(h, key, record), nil
	})
}

// writeLocked saves the history build derives from the current one, guarded
// by the revision it was loaded at. When another process saved first, the
// history is reloaded and build runs again, so its change lands on top of
// theirs. A nil history from build means nothing to write. Memory is only
// updated once the store accepted the write.
func (m *Manager) writeLocked(ctx context.Context, build func(core.MonthHistory) (core.MonthHistory, error)) error {
	for attempt := 1; ; attempt++ {
		next, err := build(m.history)
		if err != nil || next == nil {
			return err
		}

		rev, err := m.store.SaveHistory(ctx, next, m.revision)
		if err == nil {
			m.history, m.revision = next, rev
			m.version++
			return nil
		}
		if !errors.Is(err, storage.ErrRevisionConflict) || attempt == maxWriteAttempts {
			m.logger.ErrorContext(ctx, "Failed to persist month history", log.FieldError, err, "attempt", attempt)
			return err
		}

		m.logger.WarnContext(ctx, "Month history changed in storage, reloading", "revision", m.revision)
		if err := m.reloadLocked(ctx); err != nil {
			return err
		}
	}
}

// withMonth copies h with record stored under key.
func withMonth(h core.MonthHistory, key core.MonthKey, record core.MonthRecord) core.MonthHistory {
	next := make(core.MonthHistory, len(h)+1)
	for k, v := range h {
		next[k] = v
	}
	next[key] = record
	return next
}
