package backend

import (
	"context"

	"moneymanager/internal/sheets"
	"moneymanager/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the key/value store and an optional cleanup function
type StoreResult struct {
	Store   storage.KV
	Cleanup CleanupFunc
}

// Factory creates the persistence and backup collaborators from configuration
type Factory interface {
	// CreateStore opens the key/value store holding the ledger state
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	// CreateTarget builds the spreadsheet backup target
	CreateTarget(ctx context.Context, config Config) (sheets.Target, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Storage
	Type         BackendType
	SQLiteDBPath string

	// Backup
	Target   TargetType
	XLSXPath string
}

// BackendType is where the ledger state lives
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// TargetType is where exports go and imports come from
type TargetType string

const (
	SheetsTarget TargetType = "sheets"
	XLSXTarget   TargetType = "xlsx"
	MemoryTarget TargetType = "memory"
)

func (tt TargetType) String() string {
	return string(tt)
}

func (tt TargetType) IsValid() bool {
	switch tt {
	case SheetsTarget, XLSXTarget, MemoryTarget:
		return true
	default:
		return false
	}
}
