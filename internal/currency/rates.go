// Package currency converts ledger amounts between currencies and keeps the
// exchange-rate table fresh.
package currency

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sources of a rate table.
const (
	SourceFallback = "fallback"
	SourceLive     = "live"
)

// DefaultSecondary is the secondary display currency when none is configured.
const DefaultSecondary = "UAH"

// Fallback rates used until the first successful fetch.
var (
	FallbackUSDToSecondary = decimal.RequireFromString("41.5")
	FallbackEURToSecondary = decimal.RequireFromString("45.0")
	FallbackEURToUSD       = decimal.RequireFromString("1.09")
)

// Table holds the rates needed to reach the display currency.
type Table struct {
	Secondary      string          `json:"secondary"`
	USDToSecondary decimal.Decimal `json:"usdToSecondary"`
	EURToSecondary decimal.Decimal `json:"eurToSecondary"`
	EURToUSD       decimal.Decimal `json:"eurToUsd"`
	Source         string          `json:"source"`
	FetchedAt      time.Time       `json:"fetchedAt,omitempty"`
}

// FallbackTable returns the hardcoded rates for the given secondary currency.
func FallbackTable(secondary string) Table {
	if secondary == "" {
		secondary = DefaultSecondary
	}
	return Table{
		Secondary:      secondary,
		USDToSecondary: FallbackUSDToSecondary,
		EURToSecondary: FallbackEURToSecondary,
		EURToUSD:       FallbackEURToUSD,
		Source:         SourceFallback,
	}
}
