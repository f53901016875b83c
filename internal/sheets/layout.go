// Package sheets defines the two-table backup layout shared by every target.
package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
)

// DateLayout is how transaction dates are written to the transactions table.
const DateLayout = "2006-01-02"

var (
	TransactionsHeader = []any{"Month", "Type", "Currency", "Category", "Amount", "Description", "Date"}
	BalancesHeader     = []any{"Month", "USD", "EUR", "CRYPTO"}
)

// TransactionRows returns the header and one row per transaction, months in
// key order and transactions in stored order.
func TransactionRows(h core.MonthHistory) [][]any {
	rows := [][]any{TransactionsHeader}
	for _, key := range h.SortedKeys() {
		for _, tx := range h[key].Transactions {
			rows = append(rows, []any{
				string(key),
				string(tx.Kind),
				string(tx.Currency),
				tx.Category,
				tx.Amount.InexactFloat64(),
				tx.Description,
				tx.Date.Format(DateLayout),
			})
		}
	}
	return rows
}

// BalanceRows returns the header and one balances row per month.
func BalanceRows(h core.MonthHistory) [][]any {
	rows := [][]any{BalancesHeader}
	for _, key := range h.SortedKeys() {
		b := h[key].Balances
		rows = append(rows, []any{
			string(key),
			b.USD.InexactFloat64(),
			b.EUR.InexactFloat64(),
			b.Crypto.InexactFloat64(),
		})
	}
	return rows
}

// Stats counts the data rows of a rendered export.
func Stats(txRows, balRows [][]any) ExportStats {
	return ExportStats{TransactionsCount: len(txRows) - 1, MonthsCount: len(balRows) - 1}
}

// ParseHistory rebuilds a history from table rows without their header rows.
// Rows with an unusable month key are skipped. Unparsable numbers become zero,
// imported entries get fresh ids and every record gets empty note buckets.
func ParseHistory(txRows, balRows [][]string, newID func() string) core.MonthHistory {
	h := core.MonthHistory{}
	record := func(raw string) (core.MonthKey, bool) {
		key, err := core.ParseMonthKey(raw)
		if err != nil {
			return "", false
		}
		if _, ok := h[key]; !ok {
			h[key] = core.MonthRecord{Transactions: []core.Transaction{}, Notes: core.EmptyNotes()}
		}
		return key, true
	}

	for _, row := range balRows {
		key, ok := record(cell(row, 0))
		if !ok {
			continue
		}
		r := h[key]
		r.Balances = core.CurrencyBalance{
			USD:    parseNumber(cell(row, 1)),
			EUR:    parseNumber(cell(row, 2)),
			Crypto: parseNumber(cell(row, 3)),
		}
		h[key] = r
	}

	for _, row := range txRows {
		key, ok := record(cell(row, 0))
		if !ok {
			continue
		}
		r := h[key]
		r.Transactions = append(r.Transactions, core.Transaction{
			ID:          newID(),
			Kind:        core.Kind(strings.ToLower(cell(row, 1))),
			Currency:    core.Currency(strings.ToUpper(cell(row, 2))),
			Category:    cell(row, 3),
			Amount:      parseNumber(cell(row, 4)),
			Description: cell(row, 5),
			Date:        parseDate(cell(row, 6), key),
		})
		h[key] = r
	}
	return h
}

// ToStrings flattens API cell values to trimmed strings.
func ToStrings(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseNumber accepts signed values; balances may be negative.
func parseNumber(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return decimal.Zero
	}
	return d
}

var dateLayouts = []string{DateLayout, time.RFC3339, "1/2/2006", "02.01.2006"}

// parseDate falls back to the first day of the row's month.
func parseDate(s string, key core.MonthKey) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return key.Time()
}
