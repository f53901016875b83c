package backend

import (
	"fmt"

	"moneymanager/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	target := TargetType(appConfig.BackupTarget)
	if !target.IsValid() {
		return Config{}, fmt.Errorf("invalid backup target in config: %s", appConfig.BackupTarget)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		Target:       target,
		XLSXPath:     appConfig.BackupXLSXPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Target.IsValid() {
		return fmt.Errorf("invalid backup target: %s", c.Target)
	}

	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	// Sheets credentials may arrive per request, so only the file target needs setup.
	if c.Target == XLSXTarget && c.XLSXPath == "" {
		return fmt.Errorf("XLSX path is required for xlsx backup target")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetTargetTypes returns all valid backup targets
func GetTargetTypes() []TargetType {
	return []TargetType{SheetsTarget, XLSXTarget, MemoryTarget}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
