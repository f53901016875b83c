package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, err := kv.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unset key, got %v", err)
	}

	if err := kv.Set(ctx, KeyTheme, []byte(`{"mode":"dark"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := kv.Get(ctx, KeyTheme)
	if err != nil || string(got) != `{"mode":"dark"}` {
		t.Fatalf("get = %q, %v", got, err)
	}

	if err := kv.Set(ctx, KeyTheme, []byte(`{"mode":"light"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = kv.Get(ctx, KeyTheme)
	if string(got) != `{"mode":"light"}` {
		t.Fatalf("overwrite not visible: %q", got)
	}

	if err := kv.Delete(ctx, KeyTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kv.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := kv.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("deleting a missing key should be a no-op: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemoryStore()
	buf := []byte("abc")
	_ = m.Set(context.Background(), "k", buf)
	buf[0] = 'x'
	got, _ := m.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Fatalf("store aliased caller buffer: %q", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	exerciseKV(t, store)

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(context.Background(), KeyLanguage, []byte(`"uk"`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), KeyLanguage)
	if err != nil || string(got) != `"uk"` {
		t.Fatalf("value lost across reopen: %q, %v", got, err)
	}
}

func exerciseRevisions(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, rev, err := kv.GetRevision(ctx, KeyMonthHistory); !errors.Is(err, ErrNotFound) || rev != 0 {
		t.Fatalf("unset key = rev %d, %v", rev, err)
	}
	rev, err := kv.SetIfRevision(ctx, KeyMonthHistory, []byte("a"), 0)
	if err != nil || rev != 1 {
		t.Fatalf("first write = rev %d, %v", rev, err)
	}
	if _, err := kv.SetIfRevision(ctx, KeyMonthHistory, []byte("stale"), 0); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("write from revision 0 after rev 1 should conflict, got %v", err)
	}

	// A plain Set moves the revision too.
	if err := kv.Set(ctx, KeyMonthHistory, []byte("b")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := kv.SetIfRevision(ctx, KeyMonthHistory, []byte("stale"), 1); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("write from revision 1 after Set should conflict, got %v", err)
	}

	value, rev, err := kv.GetRevision(ctx, KeyMonthHistory)
	if err != nil || string(value) != "b" || rev != 2 {
		t.Fatalf("GetRevision = %q rev %d, %v", value, rev, err)
	}
	if rev, err = kv.SetIfRevision(ctx, KeyMonthHistory, []byte("c"), rev); err != nil || rev != 3 {
		t.Fatalf("write at current revision = rev %d, %v", rev, err)
	}
	if got, _ := kv.Get(ctx, KeyMonthHistory); string(got) != "c" {
		t.Fatalf("conditional write not visible: %q", got)
	}
}

func TestMemoryStoreRevisions(t *testing.T) {
	exerciseRevisions(t, NewMemoryStore())
}

func TestSQLiteStoreRevisions(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if store.SchemaVersion() != 2 {
		t.Errorf("schema version = %d, want 2", store.SchemaVersion())
	}
	exerciseRevisions(t, store)
}

func TestSQLiteStoreConflictAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	server, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open server handle: %v", err)
	}
	defer server.Close()
	cli, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open cli handle: %v", err)
	}
	defer cli.Close()

	ctx := context.Background()
	rev, err := server.SetIfRevision(ctx, KeyMonthHistory, []byte("server-1"), 0)
	if err != nil {
		t.Fatalf("server write: %v", err)
	}
	_, cliRev, err := cli.GetRevision(ctx, KeyMonthHistory)
	if err != nil || cliRev != rev {
		t.Fatalf("cli sees rev %d, %v; want %d", cliRev, err, rev)
	}
	if _, err := cli.SetIfRevision(ctx, KeyMonthHistory, []byte("cli-import"), cliRev); err != nil {
		t.Fatalf("cli write: %v", err)
	}
	if _, err := server.SetIfRevision(ctx, KeyMonthHistory, []byte("server-2"), rev); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("stale server write should conflict, got %v", err)
	}
	if got, _ := server.Get(ctx, KeyMonthHistory); string(got) != "cli-import" {
		t.Fatalf("cli write was overwritten: %q", got)
	}
}
