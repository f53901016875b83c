package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultRatesURL     = "https://api.exchangerate-api.com/v4/latest/USD"
	defaultFetchTimeout = 10 * time.Second
)

// Source yields a fresh rate table.
type Source interface {
	Fetch(ctx context.Context) (Table, error)
}

// Fetcher reads USD-based rates from an exchangerate-api compatible endpoint.
type Fetcher struct {
	httpClient *http.Client
	url        string
	secondary  string
	now        func() time.Time
}

var _ Source = (*Fetcher)(nil)

// NewFetcher creates a rate fetcher. An empty url uses DefaultRatesURL.
func NewFetcher(url, secondary string) *Fetcher {
	if url == "" {
		url = DefaultRatesURL
	}
	if secondary == "" {
		secondary = DefaultSecondary
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		url:        url,
		secondary:  strings.ToUpper(secondary),
		now:        time.Now,
	}
}

// ratesResponse is the subset of the rate API payload we use.
type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Fetch downloads the latest rates. Missing fields fall back individually.
func (f *Fetcher) Fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Table{}, fmt.Errorf("rates API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Table{}, fmt.Errorf("decode rates response: %w", err)
	}

	return f.tableFrom(payload.Rates), nil
}

func (f *Fetcher) tableFrom(rates map[string]decimal.Decimal) Table {
	t := FallbackTable(f.secondary)
	t.Source = SourceLive
	t.FetchedAt = f.now()

	secondary, hasSecondary := positive(rates, f.secondary)
	eur, hasEUR := positive(rates, "EUR")

	if hasSecondary {
		t.USDToSecondary = secondary
	}
	if hasSecondary && hasEUR {
		t.EURToSecondary = secondary.Div(eur)
	}
	if hasEUR {
		t.EURToUSD = decimal.NewFromInt(1).Div(eur)
	}
	return t
}

func positive(rates map[string]decimal.Decimal, code string) (decimal.Decimal, bool) {
	v, ok := rates[code]
	if !ok || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}
