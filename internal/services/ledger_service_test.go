package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/ledger"
	"moneymanager/internal/sheets"
	"moneymanager/internal/sheets/memory"
	"moneymanager/internal/storage"
)

type fixedRates struct{ t currency.Table }

func (f fixedRates) Current() currency.Table { return f.t }

type recordingPublisher struct {
	events []string
	err    error
}

func (p *recordingPublisher) PublishLedgerChanged(_ context.Context, month, operation string) error {
	p.events = append(p.events, month+" "+operation)
	return p.err
}

func newService(t *testing.T, pub *recordingPublisher, backup sheets.Target) *LedgerService {
	t.Helper()
	n := 0
	m, err := ledger.NewManager(context.Background(), ledger.KVHistoryStore{KV: storage.NewMemoryStore()},
		ledger.WithClock(func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) }),
		ledger.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }))
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	var p amqp.Publisher
	if pub != nil {
		p = pub
	}
	return NewLedgerService(m, fixedRates{currency.FallbackTable("UAH")}, p, backup, nil)
}

func TestMutationsPublishAndNotify(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newService(t, pub, memory.New(nil))

	var changed []core.MonthKey
	s.OnChange(func(k core.MonthKey) { changed = append(changed, k) })

	if _, created, err := s.CreateMonth(ctx, "2025-03"); err != nil || !created {
		t.Fatalf("create month: created=%v err=%v", created, err)
	}
	if _, created, _ := s.CreateMonth(ctx, "2025-03"); created {
		t.Fatalf("second create should report existing month")
	}

	tx, err := s.AddTransaction(ctx, "2025-03", core.Transaction{Kind: core.Income, Amount: decimal.NewFromInt(3000), Currency: core.USD, Category: "Salary"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.UpdateBalances(ctx, "2025-03", core.CurrencyBalance{USD: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("balances: %v", err)
	}
	note, err := s.AddNote(ctx, "2025-03", core.BucketEUR, core.CurrencyNote{Kind: core.Expense, Amount: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("note: %v", err)
	}
	if err := s.DeleteNote(ctx, "2025-03", core.BucketEUR, note.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "2025-03", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{
		"2025-03 month.create",
		"2025-03 transaction.add",
		"2025-03 balances.update",
		"2025-03 note.add",
		"2025-03 note.delete",
		"2025-03 transaction.delete",
	}
	if fmt.Sprint(pub.events) != fmt.Sprint(want) {
		t.Errorf("events = %v\nwant %v", pub.events, want)
	}
	if len(changed) != len(want) {
		t.Errorf("listener calls = %d", len(changed))
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newService(t, pub, memory.New(nil))
	if _, _, err := s.CreateMonth(ctx, "2025-03"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AddTransaction(ctx, "2025-03", core.Transaction{Kind: core.Expense, Amount: decimal.NewFromInt(1), Currency: core.USD, Category: "X"}); err != nil {
		t.Fatalf("add should succeed when publishing fails: %v", err)
	}
}

func TestFailedMutationPublishesNothing(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, pub, memory.New(nil))
	_, err := s.AddTransaction(context.Background(), "2025-03", core.Transaction{Kind: core.Income, Amount: decimal.NewFromInt(1), Currency: core.USD, Category: "X"})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing month, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %v", pub.events)
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil, memory.New(nil))
	if _, _, err := s.Summary("2025-03", currency.DisplayUSD, s.Rates()); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("summary of missing month: %v", err)
	}
	_, _, _ = s.CreateMonth(ctx, "2025-03")
	_, _ = s.AddTransaction(ctx, "2025-03", core.Transaction{Kind: core.Income, Amount: decimal.NewFromInt(3000), Currency: core.USD, Category: "Salary"})
	_, _ = s.AddTransaction(ctx, "2025-03", core.Transaction{Kind: core.Expense, Amount: decimal.NewFromInt(120), Currency: core.EUR, Category: "Food"})

	sum, version, err := s.Summary("2025-03", currency.DisplayUSD, s.Rates())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.Totals.Net.Equal(decimal.RequireFromString("2869.2")) {
		t.Errorf("net = %s", sum.Totals.Net)
	}
	if version != s.Manager().Version() {
		t.Errorf("summary read at version %d, manager at %d", version, s.Manager().Version())
	}

	// The caller's table is used, not whatever the refresher holds now.
	doubled := s.Rates()
	doubled.EURToUSD = doubled.EURToUSD.Mul(decimal.NewFromInt(2))
	sum, _, err = s.Summary("2025-03", currency.DisplayUSD, doubled)
	if err != nil {
		t.Fatalf("summary at doubled rate: %v", err)
	}
	if !sum.Totals.Net.Equal(decimal.RequireFromString("2738.4")) {
		t.Errorf("net at doubled rate = %s", sum.Totals.Net)
	}
}

func TestExportImportConflictPolicy(t *testing.T) {
	ctx := context.Background()
	backup := memory.New(func() string { return "imported" })
	s := newService(t, nil, backup)

	_, _, _ = s.CreateMonth(ctx, "2025-02")
	_, _ = s.AddTransaction(ctx, "2025-02", core.Transaction{Kind: core.Income, Amount: decimal.NewFromInt(5), Currency: core.USD, Category: "Gift"})
	_, _, _ = s.CreateMonth(ctx, "2025-03")

	stats, err := s.Export(ctx, sheets.Credentials{})
	if err != nil || stats.MonthsCount != 2 || stats.TransactionsCount != 1 {
		t.Fatalf("export = %+v, %v", stats, err)
	}

	// Local edits after the backup.
	_, _ = s.AddTransaction(ctx, "2025-02", core.Transaction{Kind: core.Expense, Amount: decimal.NewFromInt(9), Currency: core.USD, Category: "Local"})

	out, err := s.Import(ctx, ImportRequest{})
	if !errors.Is(err, ErrUnconfirmedConflicts) {
		t.Fatalf("expected ErrUnconfirmedConflicts, got %v", err)
	}
	if fmt.Sprint(out.Conflicts) != "[2025-02 2025-03]" {
		t.Errorf("conflicts = %v", out.Conflicts)
	}
	if r, _ := s.Manager().Month("2025-02"); len(r.Transactions) != 2 {
		t.Fatalf("undecided import must not change the ledger")
	}

	out, err = s.Import(ctx, ImportRequest{Overwrite: []core.MonthKey{"2025-03"}, Decided: true})
	if err != nil {
		t.Fatalf("decided import: %v", err)
	}
	if fmt.Sprint(out.Result.Skipped) != "[2025-02]" || fmt.Sprint(out.Result.Overwritten) != "[2025-03]" {
		t.Errorf("result = %+v", out.Result)
	}
	if r, _ := s.Manager().Month("2025-02"); len(r.Transactions) != 2 {
		t.Errorf("declined month changed: %+v", r.Transactions)
	}
}
