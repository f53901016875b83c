package sheets

import (
	"context"
	"errors"

	"moneymanager/internal/core"
)

const (
	TransactionsSheet = "Transactions"
	BalancesSheet     = "Balances"
)

var (
	// ErrMissingCredentials is returned when a target needs an access token
	// and spreadsheet id that were not supplied.
	ErrMissingCredentials = errors.New("missing required parameters: accessToken or spreadsheetId")
	// ErrTargetUnavailable wraps transport failures talking to a target.
	ErrTargetUnavailable = errors.New("backup target unavailable")
)

// Credentials identify a user's spreadsheet. File and memory targets ignore them.
type Credentials struct {
	AccessToken   string `json:"accessToken"`
	SpreadsheetID string `json:"spreadsheetId"`
}

// ExportStats reports what an export wrote.
type ExportStats struct {
	TransactionsCount int `json:"transactionsCount"`
	MonthsCount       int `json:"monthsCount"`
}

// Ports for backup targets.
type (
	Exporter interface {
		Export(ctx context.Context, creds Credentials, h core.MonthHistory) (ExportStats, error)
	}

	Importer interface {
		Import(ctx context.Context, creds Credentials) (core.MonthHistory, error)
	}

	Target interface {
		Exporter
		Importer
	}
)
