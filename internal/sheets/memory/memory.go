package memory

import (
	"context"
	"sync"

	"moneymanager/internal/core"
	"moneymanager/internal/sheets"
)

// Store keeps the exported tables in memory, as a spreadsheet would.
type Store struct {
	mu      sync.Mutex
	txRows  [][]string
	balRows [][]string
	exports int
	newID   func() string
}

var _ sheets.Target = (*Store)(nil)

func New(newID func() string) *Store {
	return &Store{newID: newID}
}

// Export replaces the stored tables with the rendered history.
func (s *Store) Export(_ context.Context, _ sheets.Credentials, h core.MonthHistory) (sheets.ExportStats, error) {
	tx := sheets.TransactionRows(h)
	bal := sheets.BalanceRows(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txRows = sheets.ToStrings(tx)
	s.balRows = sheets.ToStrings(bal)
	s.exports++
	return sheets.Stats(tx, bal), nil
}

// Import parses the stored tables; an empty store yields an empty history.
func (s *Store) Import(_ context.Context, _ sheets.Credentials) (core.MonthHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sheets.ParseHistory(dataRows(s.txRows), dataRows(s.balRows), s.newID), nil
}

// Exports reports how many exports have been written.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}
