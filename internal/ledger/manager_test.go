package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/storage"
)

type failingStore struct {
	KVHistoryStore
	fail bool
}

func (f *failingStore) SaveHistory(ctx context.Context, h core.MonthHistory, expected int64) (int64, error) {
	if f.fail {
		return 0, errors.New("disk full")
	}
	return f.KVHistoryStore.SaveHistory(ctx, h, expected)
}

func newTestManager(t *testing.T, now time.Time, seed core.MonthHistory) (*Manager, storage.KV) {
	t.Helper()
	kv := storage.NewMemoryStore()
	store := KVHistoryStore{KV: kv}
	if seed != nil {
		if _, err := store.SaveHistory(context.Background(), seed, 0); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n := 0
	m, err := NewManager(context.Background(), store,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, kv
}

func TestReconcileCreatesEmptyFirstMonth(t *testing.T) {
	m, _ := newTestManager(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), nil)
	key, created, err := m.Reconcile(context.Background())
	if err != nil || !created || key != "2025-03" {
		t.Fatalf("reconcile = %s %v %v", key, created, err)
	}
	r, ok := m.Month(key)
	if !ok || len(r.Transactions) != 0 || !r.Balances.USD.IsZero() {
		t.Fatalf("unexpected first month %+v", r)
	}
	for _, b := range core.Buckets {
		if r.Notes[b] == nil {
			t.Fatalf("bucket %s missing", b)
		}
	}

	_, created, err = m.Reconcile(context.Background())
	if err != nil || created {
		t.Fatalf("second reconcile should be a no-op, got created=%v err=%v", created, err)
	}
}

func TestRolloverCopiesLatestBalancesAndNotes(t *testing.T) {
	seed := core.MonthHistory{
		"2024-12": {
			Transactions: []core.Transaction{tx(core.Income, "1", core.USD, "Old")},
			Balances:     core.CurrencyBalance{USD: dec("1")},
			Notes:        core.EmptyNotes(),
		},
		"2025-01": {
			Transactions: []core.Transaction{tx(core.Expense, "9", core.USD, "Food")},
			Balances:     core.CurrencyBalance{USD: dec("5000"), EUR: dec("2500"), Crypto: dec("1500")},
			Notes:        core.Notes{core.BucketEUR: {{ID: "n1", Kind: core.Expense, Amount: dec("100")}}},
		},
	}
	m, _ := newTestManager(t, time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC), seed)

	key, created, err := m.Reconcile(context.Background())
	if err != nil || !created || key != "2025-02" {
		t.Fatalf("reconcile = %s %v %v", key, created, err)
	}
	r, _ := m.Month(key)
	if len(r.Transactions) != 0 {
		t.Fatalf("new month must start without transactions")
	}
	if !r.Balances.EUR.Equal(dec("2500")) || !r.Balances.Crypto.Equal(dec("1500")) {
		t.Fatalf("balances not carried: %+v", r.Balances)
	}
	if len(r.Notes[core.BucketEUR]) != 1 || r.Notes[core.BucketEUR][0].ID != "n1" {
		t.Fatalf("notes not carried: %+v", r.Notes)
	}

	// The copy must be independent of the source month.
	if err := m.DeleteNote(context.Background(), key, core.BucketEUR, "n1"); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	prev, _ := m.Month("2025-01")
	if len(prev.Notes[core.BucketEUR]) != 1 {
		t.Fatalf("deleting from the new month changed the previous month")
	}
}

func TestAddAndDeleteTransaction(t *testing.T) {
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
	m, _ := newTestManager(t, now, nil)
	ctx := context.Background()
	key := core.MonthKey("2025-04")
	if _, err := m.GetOrCreateMonth(ctx, key); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := m.AddTransaction(ctx, key, tx(core.Expense, "120", core.EUR, "Food"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID != "id-1" || !first.Date.Equal(now) {
		t.Fatalf("id/date not assigned: %+v", first)
	}
	second, _ := m.AddTransaction(ctx, key, tx(core.Expense, "10", core.USD, "Fun"))

	r, _ := m.Month(key)
	if len(r.Transactions) != 2 || r.Transactions[0].ID != second.ID {
		t.Fatalf("new transactions must be prepended: %+v", r.Transactions)
	}

	rates := currency.FallbackTable("UAH")
	before := ComputeTotals(r.Transactions, rates).Expense

	removed, err := m.DeleteTransaction(ctx, key, first.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	r, _ = m.Month(key)
	if len(r.Transactions) != 1 {
		t.Fatalf("delete must remove exactly one entry, have %d", len(r.Transactions))
	}
	after := ComputeTotals(r.Transactions, rates).Expense
	if !before.Sub(after).Equal(currency.ToUSD(removed.Amount, removed.Currency, rates)) {
		t.Fatalf("total dropped by %s, want %s", before.Sub(after), "130.8")
	}

	if _, err := m.DeleteTransaction(ctx, key, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMutationsValidate(t *testing.T) {
	m, _ := newTestManager(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), nil)
	ctx := context.Background()
	key := core.MonthKey("2025-04")

	if _, err := m.AddTransaction(ctx, key, tx(core.Expense, "1", core.USD, "Food")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("adding to a missing month should fail with ErrNotFound, got %v", err)
	}
	_, _ = m.GetOrCreateMonth(ctx, key)
	if _, err := m.AddTransaction(ctx, key, tx(core.Expense, "1", core.USD, "")); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if _, err := m.AddNote(ctx, key, "gbp", core.CurrencyNote{Kind: core.Income}); !errors.Is(err, core.ErrInvalidBucket) {
		t.Fatalf("expected ErrInvalidBucket, got %v", err)
	}
	if _, err := m.GetOrCreateMonth(ctx, "2025-4"); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Fatalf("expected ErrInvalidMonthKey, got %v", err)
	}
}

func TestUpdateBalancesAndNotesPersist(t *testing.T) {
	m, kv := newTestManager(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)
	ctx := context.Background()
	key, _, _ := m.Reconcile(ctx)

	if err := m.UpdateBalances(ctx, key, core.CurrencyBalance{USD: dec("10"), EUR: dec("20"), Crypto: dec("30")}); err != nil {
		t.Fatalf("update balances: %v", err)
	}
	note, err := m.AddNote(ctx, key, core.BucketCrypto, core.CurrencyNote{Kind: core.Income, Amount: dec("3"), Description: "airdrop"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}

	reloaded, err := NewManager(ctx, KVHistoryStore{KV: kv})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	r, ok := reloaded.Month(key)
	if !ok || !r.Balances.EUR.Equal(dec("20")) {
		t.Fatalf("balances not persisted: %+v", r.Balances)
	}
	if len(r.Notes[core.BucketCrypto]) != 1 || r.Notes[core.BucketCrypto][0].ID != note.ID {
		t.Fatalf("note not persisted: %+v", r.Notes)
	}
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	store := &failingStore{KVHistoryStore: KVHistoryStore{KV: storage.NewMemoryStore()}}
	m, err := NewManager(context.Background(), store, WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key, _, _ := m.Reconcile(context.Background())

	store.fail = true
	if _, err := m.AddTransaction(context.Background(), key, tx(core.Income, "1", core.USD, "A")); err == nil {
		t.Fatalf("expected save error")
	}
	r, _ := m.Month(key)
	if len(r.Transactions) != 0 {
		t.Fatalf("in-memory state changed despite failed save")
	}
}

func TestNavigate(t *testing.T) {
	seed := core.MonthHistory{"2025-01": {}, "2025-02": {}, "2025-04": {}}
	m, _ := newTestManager(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), seed)

	cases := []struct {
		from core.MonthKey
		step int
		want core.MonthKey
	}{
		{"2025-02", -1, "2025-01"},
		{"2025-02", 1, "2025-04"},
		{"2025-01", -1, "2025-01"},
		{"2025-04", 1, "2025-04"},
		{"2030-01", -1, "2025-04"},
	}
	for _, tc := range cases {
		if got := m.Navigate(tc.from, tc.step); got != tc.want {
			t.Errorf("Navigate(%s, %d) = %s, want %s", tc.from, tc.step, got, tc.want)
		}
	}
	if !m.IsHistorical("2025-02") || m.IsHistorical("2025-04") {
		t.Errorf("IsHistorical flags wrong")
	}
}

func TestImportMergePolicy(t *testing.T) {
	seed := core.MonthHistory{
		"2025-01": {
			Transactions: []core.Transaction{tx(core.Income, "100", core.USD, "Local")},
			Notes:        core.EmptyNotes(),
		},
	}
	m, _ := newTestManager(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), seed)
	ctx := context.Background()

	incoming := core.MonthHistory{
		"2025-01": {Transactions: []core.Transaction{tx(core.Income, "999", core.USD, "Remote")}},
		"2024-12": {Transactions: []core.Transaction{tx(core.Expense, "5", core.USD, "Remote")}},
	}

	res, err := m.Import(ctx, incoming, ConfirmNone)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Inserted) != 1 || res.Inserted[0] != "2024-12" {
		t.Fatalf("inserted = %v", res.Inserted)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "2025-01" || len(res.Overwritten) != 0 {
		t.Fatalf("declined key should be skipped: %+v", res)
	}
	r, _ := m.Month("2025-01")
	if r.Transactions[0].Category != "Local" {
		t.Fatalf("declined month was overwritten")
	}

	res, err = m.Import(ctx, incoming, ConfirmKeys("2025-01"))
	if err != nil {
		t.Fatalf("import confirmed: %v", err)
	}
	if len(res.Overwritten) != 1 {
		t.Fatalf("confirmed key should be overwritten: %+v", res)
	}
	r, _ = m.Month("2025-01")
	if r.Transactions[0].Category != "Remote" {
		t.Fatalf("confirmed month not replaced")
	}
	if got := m.Conflicts(incoming); len(got) != 2 {
		t.Fatalf("conflicts = %v", got)
	}
}

type alwaysConflicting struct {
	KVHistoryStore
	saves int
}

func (c *alwaysConflicting) SaveHistory(context.Context, core.MonthHistory, int64) (int64, error) {
	c.saves++
	return 0, storage.ErrRevisionConflict
}

// sharedManagers opens two managers over one KV, the way the server and
// ledgerctl share a SQLite file.
func sharedManagers(t *testing.T, seed core.MonthHistory) (*Manager, *Manager) {
	t.Helper()
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	server, kv := newTestManager(t, now, seed)
	cli, err := NewManager(context.Background(), KVHistoryStore{KV: kv}, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("second manager: %v", err)
	}
	return server, cli
}

func TestConcurrentWritersKeepEachOthersMonths(t *testing.T) {
	seed := core.MonthHistory{"2025-01": {Notes: core.EmptyNotes()}}
	ctx := context.Background()

	t.Run("mutation after foreign import", func(t *testing.T) {
		server, cli := sharedManagers(t, seed)
		imported := core.MonthHistory{"2025-02": {Transactions: []core.Transaction{tx(core.Income, "70", core.USD, "Imported")}}}
		if _, err := cli.Import(ctx, imported, ConfirmNone); err != nil {
			t.Fatalf("import: %v", err)
		}

		if _, err := server.AddTransaction(ctx, "2025-01", tx(core.Expense, "5", core.USD, "Coffee")); err != nil {
			t.Fatalf("add after foreign import: %v", err)
		}

		fresh, err := NewManager(ctx, KVHistoryStore{KV: cli.store.(KVHistoryStore).KV})
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		feb, ok := fresh.Month("2025-02")
		if !ok || len(feb.Transactions) != 1 || feb.Transactions[0].Category != "Imported" {
			t.Fatalf("imported month lost: %+v (present %v)", feb, ok)
		}
		jan, _ := fresh.Month("2025-01")
		if len(jan.Transactions) != 1 || jan.Transactions[0].Category != "Coffee" {
			t.Fatalf("server mutation lost: %+v", jan)
		}
		if _, ok := server.Month("2025-02"); !ok {
			t.Errorf("server should see the imported month after reloading")
		}
	})

	t.Run("create does not replace a foreign month", func(t *testing.T) {
		server, cli := sharedManagers(t, seed)
		imported := core.MonthHistory{"2025-03": {Transactions: []core.Transaction{tx(core.Income, "1", core.USD, "Imported")}}}
		if _, err := cli.Import(ctx, imported, ConfirmNone); err != nil {
			t.Fatalf("import: %v", err)
		}

		r, err := server.GetOrCreateMonth(ctx, "2025-03")
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if len(r.Transactions) != 1 || r.Transactions[0].Category != "Imported" {
			t.Fatalf("rollover replaced the imported month: %+v", r)
		}
	})

	t.Run("import re-checks conflicts against stored months", func(t *testing.T) {
		server, cli := sharedManagers(t, seed)
		if _, err := server.GetOrCreateMonth(ctx, "2025-02"); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := server.AddTransaction(ctx, "2025-02", tx(core.Income, "9", core.USD, "Server")); err != nil {
			t.Fatalf("add: %v", err)
		}

		// cli still believes 2025-02 is new.
		res, err := cli.Import(ctx, core.MonthHistory{"2025-02": {Transactions: []core.Transaction{}}}, ConfirmNone)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if len(res.Skipped) != 1 || len(res.Inserted) != 0 {
			t.Fatalf("month created elsewhere must need confirmation: %+v", res)
		}
		feb, _ := cli.Month("2025-02")
		if len(feb.Transactions) != 1 || feb.Transactions[0].Category != "Server" {
			t.Fatalf("declined month changed: %+v", feb)
		}
	})
}

func TestWriteGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := &alwaysConflicting{KVHistoryStore: KVHistoryStore{KV: storage.NewMemoryStore()}}
	m, err := NewManager(context.Background(), store)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.GetOrCreateMonth(context.Background(), "2025-01"); !errors.Is(err, storage.ErrRevisionConflict) {
		t.Fatalf("err = %v, want ErrRevisionConflict", err)
	}
	if store.saves != maxWriteAttempts {
		t.Errorf("saves = %d, want %d", store.saves, maxWriteAttempts)
	}
	if len(m.Months()) != 0 {
		t.Errorf("failed create left months behind: %v", m.Months())
	}
}

func TestVersionTracksChanges(t *testing.T) {
	m, _ := newTestManager(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), core.MonthHistory{"2025-01": {}})
	ctx := context.Background()

	_, before, ok := m.Snapshot("2025-01")
	if !ok {
		t.Fatal("seeded month missing")
	}
	if _, err := m.AddTransaction(ctx, "2025-01", tx(core.Income, "1", core.USD, "A")); err != nil {
		t.Fatalf("add: %v", err)
	}
	r, after, _ := m.Snapshot("2025-01")
	if after == before || len(r.Transactions) != 1 {
		t.Fatalf("version %d -> %d with %d transactions", before, after, len(r.Transactions))
	}
	if _, err := m.Import(ctx, core.MonthHistory{"2025-01": {}}, ConfirmNone); err != nil {
		t.Fatalf("import: %v", err)
	}
	if m.Version() != after {
		t.Errorf("no-op import changed version %d -> %d", after, m.Version())
	}
}

func TestDeserializeOriginalLayout(t *testing.T) {
	blob := []byte(`{
		"2025-01": {
			"transactions": [{"id":"1","type":"expense","amount":120,"currency":"EUR","category":"Food","description":"","date":"2025-01-03T10:00:00.000Z"}],
			"currencyBalances": {"usd": 5000, "eur": 2500, "crypto": 1500},
			"currencyNotes": {"usd": []}
		}
	}`)
	h, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	r := h["2025-01"]
	if len(r.Transactions) != 1 || !r.Transactions[0].Amount.Equal(dec("120")) {
		t.Fatalf("transactions = %+v", r.Transactions)
	}
	if !r.Balances.Crypto.Equal(dec("1500")) {
		t.Fatalf("balances = %+v", r.Balances)
	}
	if r.Notes[core.BucketEUR] == nil || r.Notes[core.BucketCrypto] == nil {
		t.Fatalf("missing buckets not normalized")
	}

	again, err := Serialize(h)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(again, &raw); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	for _, field := range []string{"transactions", "currencyBalances", "currencyNotes"} {
		if _, ok := raw["2025-01"][field]; !ok {
			t.Errorf("serialized record missing %q", field)
		}
	}

	if _, err := Deserialize([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed blob")
	}
}
