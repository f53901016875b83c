// Package xlsx is a backup target that writes the two backup tables to a
// local Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"moneymanager/internal/core"
	"moneymanager/internal/sheets"
)

type Workbook struct {
	mu    sync.Mutex
	path  string
	newID func() string
}

var _ sheets.Target = (*Workbook)(nil)

func New(path string, newID func() string) *Workbook {
	return &Workbook{path: path, newID: newID}
}

func (w *Workbook) Path() string { return w.path }

// Export rewrites the whole workbook. Credentials are ignored.
func (w *Workbook) Export(_ context.Context, _ sheets.Credentials, h core.MonthHistory) (sheets.ExportStats, error) {
	txRows := sheets.TransactionRows(h)
	balRows := sheets.BalanceRows(h)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheets.TransactionsSheet); err != nil {
		return sheets.ExportStats{}, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheets.BalancesSheet); err != nil {
		return sheets.ExportStats{}, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeRows(f, sheets.TransactionsSheet, txRows); err != nil {
		return sheets.ExportStats{}, err
	}
	if err := writeRows(f, sheets.BalancesSheet, balRows); err != nil {
		return sheets.ExportStats{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return sheets.ExportStats{}, fmt.Errorf("create backup dir: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return sheets.ExportStats{}, fmt.Errorf("save workbook: %w", err)
	}
	return sheets.Stats(txRows, balRows), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// Import reads both sheets. A missing workbook is an empty history.
func (w *Workbook) Import(_ context.Context, _ sheets.Credentials) (core.MonthHistory, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return core.MonthHistory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	txRows, err := readRows(f, sheets.TransactionsSheet)
	if err != nil {
		return nil, err
	}
	balRows, err := readRows(f, sheets.BalancesSheet)
	if err != nil {
		return nil, err
	}
	return sheets.ParseHistory(txRows, balRows, w.newID), nil
}

// readRows returns the rows below the header.
func readRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}
