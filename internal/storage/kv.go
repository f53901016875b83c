// Package storage persists application state as independently keyed blobs.
package storage

import (
	"context"
	"errors"
)

// Keys of the persisted blobs.
const (
	KeyLanguage        = "language"
	KeyDisplayCurrency = "displayCurrency"
	KeyMonthHistory    = "monthHistory"
	KeyPassword        = "password"
	KeyTheme           = "theme"
)

var (
	// ErrNotFound is returned by Get when the key has never been set.
	ErrNotFound = errors.New("key not found")
	// ErrRevisionConflict is returned by SetIfRevision when another writer
	// stored the key after the expected revision was read.
	ErrRevisionConflict = errors.New("revision conflict")
)

// KV is the get/set-by-key persistence port. Every write bumps the key's
// revision; a key that was never written is at revision 0.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// GetRevision returns the value with its current revision.
	GetRevision(ctx context.Context, key string) ([]byte, int64, error)
	// SetIfRevision writes only when the key is still at expected and
	// returns the new revision.
	SetIfRevision(ctx context.Context, key string, value []byte, expected int64) (int64, error)
}
