package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"

	_ "modernc.org/sqlite"
)

const kvTable = "kv_entries"

// SQLiteStore keeps blobs in a single migrated table. Several processes may
// share the file; SetIfRevision keeps their writes from overwriting each other.
type SQLiteStore struct {
	db            *sql.DB
	schemaVersion uint
}

var _ KV = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the kv_entries migration version applied at open.
func (s *SQLiteStore) SchemaVersion() uint { return s.schemaVersion }

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := s.GetRevision(ctx, key)
	return value, err
}

func (s *SQLiteStore) GetRevision(ctx context.Context, key string) ([]byte, int64, error) {
	query, args, err := sq.Select("value", "revision").From(kvTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}

	var (
		value    []byte
		revision int64
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value, &revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get %q: %w", key, err)
	}
	return value, revision, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := sq.Insert(kvTable).
		Columns("key", "value", "revision", "updated_at").
		Values(key, value, 1, time.Now().UTC()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = " + kvTable + ".revision + 1, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	slog.DebugContext(ctx, "Stored blob in SQLite", "key", key, "bytes", len(value))
	return nil
}

// SetIfRevision is a single conditional statement, so concurrent writers
// from other processes serialize on SQLite's write lock.
func (s *SQLiteStore) SetIfRevision(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	next := expected + 1
	now := time.Now().UTC()

	var builder interface {
		ToSql() (string, []any, error)
	}
	if expected == 0 {
		// A row migrated in before revisions existed sits at 0 as well.
		builder = sq.Insert(kvTable).
			Columns("key", "value", "revision", "updated_at").
			Values(key, value, next, now).
			Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = excluded.revision, updated_at = excluded.updated_at WHERE "+kvTable+".revision = ?", expected)
	} else {
		builder = sq.Update(kvTable).
			Set("value", value).
			Set("revision", next).
			Set("updated_at", now).
			Where(sq.Eq{"key": key, "revision": expected})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build conditional write: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set %q at revision %d: %w", key, expected, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set %q: %w", key, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("set %q at revision %d: %w", key, expected, ErrRevisionConflict)
	}

	slog.DebugContext(ctx, "Stored blob in SQLite", "key", key, "bytes", len(value), "revision", next)
	return next, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(kvTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
