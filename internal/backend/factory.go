package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"moneymanager/internal/log"
	"moneymanager/internal/sheets"
	gsheet "moneymanager/internal/sheets/google"
	"moneymanager/internal/sheets/memory"
	"moneymanager/internal/sheets/xlsx"
	"moneymanager/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return &StoreResult{Store: storage.NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &StoreResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

// CreateTarget implements Factory.CreateTarget
func (f *DefaultFactory) CreateTarget(ctx context.Context, config Config) (sheets.Target, error) {
	switch config.Target {
	case SheetsTarget:
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets backup target")
		return cli, nil
	case XLSXTarget:
		f.logger.Info("Initialized XLSX backup target", "path", config.XLSXPath)
		return xlsx.New(config.XLSXPath, uuid.NewString), nil
	case MemoryTarget:
		f.logger.Info("Initialized memory backup target")
		return memory.New(uuid.NewString), nil
	default:
		return nil, fmt.Errorf("unsupported backup target: %s", config.Target)
	}
}
