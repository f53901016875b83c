package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"moneymanager/internal/config"
	"moneymanager/internal/sheets/memory"
	"moneymanager/internal/sheets/xlsx"
	"moneymanager/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "unknown backend", cfg: &config.Config{DataBackend: "redis", BackupTarget: "memory"}, wantErr: true},
		{name: "unknown target", cfg: &config.Config{DataBackend: "memory", BackupTarget: "ftp"}, wantErr: true},
		{name: "sqlite and xlsx", cfg: &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", BackupTarget: "xlsx", BackupXLSXPath: "b.xlsx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Type != SQLiteBackend || got.Target != XLSXTarget || got.XLSXPath != "b.xlsx" {
				t.Errorf("FromAppConfig() = %+v", got)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{Type: MemoryBackend, Target: MemoryTarget}},
		{name: "sqlite without path", cfg: Config{Type: SQLiteBackend, Target: MemoryTarget}, wantErr: true},
		{name: "xlsx without path", cfg: Config{Type: MemoryBackend, Target: XLSXTarget}, wantErr: true},
		{name: "sheets needs nothing up front", cfg: Config{Type: MemoryBackend, Target: SheetsTarget}},
		{name: "bad type", cfg: Config{Type: "x", Target: MemoryTarget}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	mem, err := f.CreateStore(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := mem.Store.(*storage.MemoryStore); !ok || mem.Cleanup != nil {
		t.Errorf("memory store = %T cleanup=%v", mem.Store, mem.Cleanup != nil)
	}

	res, err := f.CreateStore(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if err := res.Store.Set(ctx, storage.KeyLanguage, []byte(`"en"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := res.Store.Get(ctx, storage.KeyTheme); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get missing key error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup: %v", err)
	}

	if _, err := f.CreateStore(ctx, Config{Type: "postgres"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestCreateTarget(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	target, err := f.CreateTarget(ctx, Config{Target: MemoryTarget})
	if err != nil {
		t.Fatalf("memory target: %v", err)
	}
	if _, ok := target.(*memory.Store); !ok {
		t.Errorf("memory target = %T", target)
	}

	path := filepath.Join(t.TempDir(), "backup.xlsx")
	target, err = f.CreateTarget(ctx, Config{Target: XLSXTarget, XLSXPath: path})
	if err != nil {
		t.Fatalf("xlsx target: %v", err)
	}
	wb, ok := target.(*xlsx.Workbook)
	if !ok || wb.Path() != path {
		t.Errorf("xlsx target = %T", target)
	}

	if _, err := f.CreateTarget(ctx, Config{Target: "ftp"}); err == nil {
		t.Error("expected error for unsupported target")
	}
}
