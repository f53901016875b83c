package ledger

import (
	"context"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
)

// ConfirmFunc decides whether an existing month may be replaced by an import.
type ConfirmFunc func(key core.MonthKey) bool

// ConfirmKeys confirms exactly the listed keys.
func ConfirmKeys(keys ...core.MonthKey) ConfirmFunc {
	set := make(map[core.MonthKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(k core.MonthKey) bool {
		_, ok := set[k]
		return ok
	}
}

// ConfirmNone declines every overwrite.
func ConfirmNone(core.MonthKey) bool { return false }

// ImportResult reports what happened to each incoming month.
type ImportResult struct {
	Inserted    []core.MonthKey `json:"inserted"`
	Overwritten []core.MonthKey `json:"overwritten"`
	Skipped     []core.MonthKey `json:"skipped"`
}

// Changed reports whether the import modified the history.
func (r ImportResult) Changed() bool {
	return len(r.Inserted) > 0 || len(r.Overwritten) > 0
}

// Import merges incoming months key by key. New keys are inserted; existing
// keys are replaced whole only when confirm returns true, otherwise left as is.
func (m *Manager) Import(ctx context.Context, incoming core.MonthHistory, confirm ConfirmFunc) (ImportResult, error) {
	if confirm == nil {
		confirm = ConfirmNone
	}
	var res ImportResult

	m.mu.Lock()
	defer m.mu.Unlock()

	// Existence is decided against the history being written over, so a
	// month another process created meanwhile still needs confirmation.
	err := m.writeLocked(ctx, func(h core.MonthHistory) (core.MonthHistory, error) {
		res = ImportResult{
			Inserted:    []core.MonthKey{},
			Overwritten: []core.MonthKey{},
			Skipped:     []core.MonthKey{},
		}
		next := make(core.MonthHistory, len(h)+len(incoming))
		for k, v := range h {
			next[k] = v
		}

		for _, key := range incoming.SortedKeys() {
			record := incoming[key].Clone()
			if _, exists := next[key]; !exists {
				next[key] = record
				res.Inserted = append(res.Inserted, key)
				continue
			}
			if confirm(key) {
				next[key] = record
				res.Overwritten = append(res.Overwritten, key)
				continue
			}
			res.Skipped = append(res.Skipped, key)
		}

		if !res.Changed() {
			return nil, nil
		}
		return next, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	if !res.Changed() {
		return res, nil
	}

	m.logger.InfoContext(ctx, "Imported month history",
		log.FieldOperation, log.OpImport,
		"inserted", len(res.Inserted),
		"overwritten", len(res.Overwritten),
		"skipped", len(res.Skipped))
	return res, nil
}

// Conflicts lists incoming keys that already exist locally.
func (m *Manager) Conflicts(incoming core.MonthHistory) []core.MonthKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MonthKey
	for _, key := range incoming.SortedKeys() {
		if _, ok := m.history[key]; ok {
			out = append(out, key)
		}
	}
	return out
}
