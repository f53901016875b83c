// Package ledger aggregates month records and manages the month history.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
	"moneymanager/internal/currency"
)

var hundred = decimal.NewFromInt(100)

// Totals are expressed in USD unless converted with In.
type Totals struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Net          decimal.Decimal `json:"net"`
	IncomeCount  int             `json:"incomeCount"`
	ExpenseCount int             `json:"expenseCount"`
}

// ComputeTotals sums income and expense after converting each amount to USD.
func ComputeTotals(txns []core.Transaction, rates currency.Table) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range txns {
		usd := currency.ToUSD(tx.Amount, tx.Currency, rates)
		switch tx.Kind {
		case core.Income:
			t.Income = t.Income.Add(usd)
			t.IncomeCount++
		case core.Expense:
			t.Expense = t.Expense.Add(usd)
			t.ExpenseCount++
		}
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}

// In converts USD totals to the display currency.
func (t Totals) In(to currency.Display, rates currency.Table) Totals {
	t.Income = currency.FromUSD(t.Income, to, rates)
	t.Expense = currency.FromUSD(t.Expense, to, rates)
	t.Net = t.Income.Sub(t.Expense)
	return t
}

// Breakdown is a per-category sum for one kind of transaction.
type Breakdown struct {
	Total      decimal.Decimal       `json:"total"`
	Categories []core.CategoryAmount `json:"categories"`
}

// Empty reports the "no data" state.
func (b Breakdown) Empty() bool { return len(b.Categories) == 0 }

// CategoryBreakdown groups transactions of the given kind by category, in USD.
// Categories keep their first-occurrence order so chart legends stay stable.
func CategoryBreakdown(txns []core.Transaction, kind core.Kind, rates currency.Table) Breakdown {
	b := Breakdown{Total: decimal.Zero, Categories: []core.CategoryAmount{}}
	index := map[string]int{}
	for _, tx := range txns {
		if tx.Kind != kind {
			continue
		}
		usd := currency.ToUSD(tx.Amount, tx.Currency, rates)
		i, ok := index[tx.Category]
		if !ok {
			i = len(b.Categories)
			index[tx.Category] = i
			b.Categories = append(b.Categories, core.CategoryAmount{Name: tx.Category, Amount: decimal.Zero})
		}
		b.Categories[i].Amount = b.Categories[i].Amount.Add(usd)
		b.Total = b.Total.Add(usd)
	}
	b.fillPercents()
	return b
}

func (b *Breakdown) fillPercents() {
	for i := range b.Categories {
		if b.Total.IsZero() {
			b.Categories[i].Percent = decimal.Zero
			continue
		}
		b.Categories[i].Percent = b.Categories[i].Amount.Div(b.Total).Mul(hundred).Round(2)
	}
}

// In converts the breakdown to the display currency. Percentages are unchanged.
func (b Breakdown) In(to currency.Display, rates currency.Table) Breakdown {
	out := Breakdown{
		Total:      currency.FromUSD(b.Total, to, rates),
		Categories: make([]core.CategoryAmount, len(b.Categories)),
	}
	for i, c := range b.Categories {
		c.Amount = currency.FromUSD(c.Amount, to, rates)
		out.Categories[i] = c
	}
	return out
}

// SumNotes totals one bucket's notes in the bucket's own currency.
func SumNotes(notes []core.CurrencyNote) core.NoteTotals {
	t := core.NoteTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, n := range notes {
		switch n.Kind {
		case core.Income:
			t.Income = t.Income.Add(n.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(n.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// NotesSpent is the sum of a bucket's note amounts regardless of kind. Every
// note draws down the bucket it belongs to.
func NotesSpent(notes []core.CurrencyNote) decimal.Decimal {
	spent := decimal.Zero
	for _, n := range notes {
		spent = spent.Add(n.Amount)
	}
	return spent
}

// Available is each bucket's balance minus everything its notes spent. It may
// be negative.
func Available(r core.MonthRecord) core.CurrencyBalance {
	adj := func(b core.Bucket) decimal.Decimal {
		return r.Balances.Get(b).Sub(NotesSpent(r.Notes[b]))
	}
	return core.CurrencyBalance{
		USD:    adj(core.BucketUSD),
		EUR:    adj(core.BucketEUR),
		Crypto: adj(core.BucketCrypto),
	}
}

// NetWorth is the USD value of available balances plus the month's net flow.
func NetWorth(r core.MonthRecord, rates currency.Table) decimal.Decimal {
	avail := Available(r)
	totals := ComputeTotals(r.Transactions, rates)
	return avail.USD.
		Add(currency.ToUSD(avail.EUR, core.EUR, rates)).
		Add(currency.ToUSD(avail.Crypto, core.Crypto, rates)).
		Add(totals.Net)
}

// MonthSummary is everything the dashboard renders for one month.
type MonthSummary struct {
	Month           core.MonthKey                   `json:"month"`
	Display         currency.Display                `json:"displayCurrency"`
	Rates           currency.Table                  `json:"rates"`
	Totals          Totals                          `json:"totals"`
	Expenses        Breakdown                       `json:"expensesByCategory"`
	Income          Breakdown                       `json:"incomeByCategory"`
	IncomeEntries   []core.Transaction              `json:"incomeEntries"`
	Balances        core.CurrencyBalance            `json:"balances"`
	Available       core.CurrencyBalance            `json:"available"`
	Notes           map[core.Bucket]core.NoteTotals `json:"notes"`
	NetWorth        decimal.Decimal                 `json:"netWorth"`
	NetWorthUSD     decimal.Decimal                 `json:"netWorthUsd"`
	NoData          bool                            `json:"noData"`
	TransactionsLen int                             `json:"transactionsCount"`
}

// Summarize computes the month dashboard in the display currency.
func Summarize(key core.MonthKey, r core.MonthRecord, rates currency.Table, display currency.Display) MonthSummary {
	notes := make(map[core.Bucket]core.NoteTotals, len(core.Buckets))
	for _, b := range core.Buckets {
		notes[b] = SumNotes(r.Notes[b])
	}
	worth := NetWorth(r, rates)

	return MonthSummary{
		Month:           key,
		Display:         display,
		Rates:           rates,
		Totals:          ComputeTotals(r.Transactions, rates).In(display, rates),
		Expenses:        CategoryBreakdown(r.Transactions, core.Expense, rates).In(display, rates),
		Income:          CategoryBreakdown(r.Transactions, core.Income, rates).In(display, rates),
		IncomeEntries:   IncomeByDate(r.Transactions),
		Balances:        r.Balances,
		Available:       Available(r),
		Notes:           notes,
		NetWorth:        currency.FromUSD(worth, display, rates),
		NetWorthUSD:     worth,
		NoData:          len(r.Transactions) == 0,
		TransactionsLen: len(r.Transactions),
	}
}

// IncomeByDate returns income transactions, newest first.
func IncomeByDate(txns []core.Transaction) []core.Transaction {
	out := []core.Transaction{}
	for _, tx := range txns {
		if tx.Kind == core.Income {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
