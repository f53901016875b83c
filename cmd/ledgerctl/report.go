package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/ledger"
	"moneymanager/internal/sheets"
)

func renderSummary(w io.Writer, s ledger.MonthSummary) {
	f := currency.NewFormatter(string(s.Display))
	fmt.Fprintf(w, "%s in %s (USD/%s %s)\n\n", s.Month, s.Display, s.Rates.Secondary, s.Rates.USDToSecondary.StringFixed(2))

	if s.NoData {
		fmt.Fprintln(w, text.FgHiBlack.Sprint("No transactions recorded."))
	} else {
		renderBreakdown(w, "Expenses", s.Expenses, f)
		renderBreakdown(w, "Income", s.Income, f)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Bucket", "Balance", "Notes spent", "Available"})
	for _, b := range core.Buckets {
		t.AppendRow(table.Row{strings.ToUpper(string(b)), balanceOf(s.Balances, b).StringFixed(2),
			s.Notes[b].Income.Add(s.Notes[b].Expense).StringFixed(2), balanceOf(s.Available, b).StringFixed(2)})
	}
	t.AppendSeparator()
	net := f.Format(s.Totals.Net)
	if s.Totals.Net.IsNegative() {
		net = text.FgRed.Sprint(net)
	} else {
		net = text.FgGreen.Sprint(net)
	}
	t.AppendFooter(table.Row{"", "", text.Bold.Sprint("Month net"), net})
	t.AppendFooter(table.Row{"", "", text.Bold.Sprint("Net worth"), text.Bold.Sprint(f.Format(s.NetWorth))})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}

func renderBreakdown(w io.Writer, title string, b ledger.Breakdown, f currency.Formatter) {
	if len(b.Categories) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Category", "Amount", "Share"})
	for _, c := range b.Categories {
		t.AppendRow(table.Row{c.Name, f.Format(c.Amount), c.Percent.StringFixed(1) + "%"})
	}
	t.AppendFooter(table.Row{"Total", f.Format(b.Total), ""})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(w)
}

func printMonths(w io.Writer, h core.MonthHistory, current core.MonthKey) error {
	keys := h.SortedKeys()
	if len(keys) == 0 {
		fmt.Fprintln(w, "No months recorded.")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Month", "Transactions", "Status"})
	for _, k := range keys {
		status := "historical"
		if k == current {
			status = text.FgGreen.Sprint("current")
		}
		t.AppendRow(table.Row{k, len(h[k].Transactions), status})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func balanceOf(b core.CurrencyBalance, bucket core.Bucket) decimal.Decimal {
	switch bucket {
	case core.BucketEUR:
		return b.EUR
	case core.BucketCrypto:
		return b.Crypto
	default:
		return b.USD
	}
}

type (
	dumpMonth struct {
		Month        string                `yaml:"month"`
		Transactions []dumpTransaction     `yaml:"transactions"`
		Balances     map[string]string     `yaml:"balances"`
		Notes        map[string][]dumpNote `yaml:"notes,omitempty"`
	}

	dumpTransaction struct {
		Date        string `yaml:"date"`
		Type        string `yaml:"type"`
		Amount      string `yaml:"amount"`
		Currency    string `yaml:"currency"`
		Category    string `yaml:"category"`
		Description string `yaml:"description,omitempty"`
	}

	dumpNote struct {
		Date         string `yaml:"date"`
		Type         string `yaml:"type"`
		Amount       string `yaml:"amount"`
		Description  string `yaml:"description,omitempty"`
		ExchangeRate string `yaml:"exchange_rate,omitempty"`
	}
)

// dumpYAML writes the history oldest month first.
func dumpYAML(w io.Writer, h core.MonthHistory) error {
	months := make([]dumpMonth, 0, len(h))
	for _, k := range h.SortedKeys() {
		r := h[k]
		m := dumpMonth{
			Month:        string(k),
			Transactions: make([]dumpTransaction, 0, len(r.Transactions)),
			Balances: map[string]string{
				"usd":    r.Balances.USD.String(),
				"eur":    r.Balances.EUR.String(),
				"crypto": r.Balances.Crypto.String(),
			},
		}
		for _, tx := range r.Transactions {
			m.Transactions = append(m.Transactions, dumpTransaction{
				Date:        tx.Date.Format(sheets.DateLayout),
				Type:        string(tx.Kind),
				Amount:      tx.Amount.String(),
				Currency:    string(tx.Currency),
				Category:    tx.Category,
				Description: tx.Description,
			})
		}
		for _, b := range core.Buckets {
			for _, n := range r.Notes[b] {
				if m.Notes == nil {
					m.Notes = map[string][]dumpNote{}
				}
				dn := dumpNote{
					Date:        n.Date.Format(sheets.DateLayout),
					Type:        string(n.Kind),
					Amount:      n.Amount.String(),
					Description: n.Description,
				}
				if n.ExchangeRate != nil {
					dn.ExchangeRate = n.ExchangeRate.String()
				}
				m.Notes[string(b)] = append(m.Notes[string(b)], dn)
			}
		}
		months = append(months, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"months": months}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
