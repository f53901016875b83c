// Package http provides the JSON API server and its handlers.
//
// This file holds the request body parser and the conversions from request
// fields to ledger values.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
	"moneymanager/internal/currency"
)

// maxBodyBytes bounds request bodies; ledger payloads are small.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser reads a JSON or form-encoded body once and serves
// individual fields from it.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Has reports whether the field was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Strings returns a list field and whether it was present. Form bodies
// repeat the key; JSON bodies use an array.
func (p *RequestBodyParser) Strings(key string) ([]string, bool) {
	if p.jsonData != nil {
		val, ok := p.jsonData[key]
		if !ok || val == nil {
			return nil, ok
		}
		items, isList := val.([]any)
		if !isList {
			return []string{sanitizeInput(stringValue(val))}, true
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, sanitizeInput(stringValue(it)))
		}
		return out, true
	}
	if p.formData != nil {
		vals, ok := p.formData[key]
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			out = append(out, sanitizeInput(v))
		}
		return out, ok
	}
	return nil, false
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseTransaction builds a transaction from the body fields
// type, amount, currency, category, description and date.
func ParseTransaction(p *RequestBodyParser) (core.Transaction, error) {
	kind, err := core.ParseKind(p.Get("type"))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	cur, err := core.ParseCurrency(p.Get("currency"))
	if err != nil {
		return core.Transaction{}, err
	}
	category := p.Get("category")
	if category == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}
	date, err := parseDate(p.Get("date"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, p.Get("date"))
	}
	return core.Transaction{
		Kind:        kind,
		Amount:      amount,
		Currency:    cur,
		Category:    category,
		Description: p.Get("description"),
		Date:        date,
	}, nil
}

// ParseNote builds a currency note from type, amount, description, date and
// the optional exchangeRate.
func ParseNote(p *RequestBodyParser) (core.CurrencyNote, error) {
	kind, err := core.ParseKind(p.Get("type"))
	if err != nil {
		return core.CurrencyNote{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.CurrencyNote{}, err
	}
	date, err := parseDate(p.Get("date"))
	if err != nil {
		return core.CurrencyNote{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, p.Get("date"))
	}
	n := core.CurrencyNote{
		Kind:        kind,
		Amount:      amount,
		Description: p.Get("description"),
		Date:        date,
	}
	if raw := p.Get("exchangeRate"); raw != "" {
		rate, err := core.ParseAmount(raw)
		if err != nil || !rate.IsPositive() {
			return core.CurrencyNote{}, fmt.Errorf("%w: exchangeRate %q", core.ErrInvalidAmount, raw)
		}
		n.ExchangeRate = &rate
	}
	return n, nil
}

// ParseBalances reads usd, eur and crypto. Balances may be negative; a
// missing field is zero since balances are replaced wholesale.
func ParseBalances(p *RequestBodyParser) (core.CurrencyBalance, error) {
	var out core.CurrencyBalance
	for _, f := range []struct {
		key string
		dst *decimal.Decimal
	}{
		{"usd", &out.USD},
		{"eur", &out.EUR},
		{"crypto", &out.Crypto},
	} {
		raw := strings.ReplaceAll(p.Get(f.key), ",", ".")
		if raw == "" {
			*f.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return core.CurrencyBalance{}, fmt.Errorf("%w: %s %q", core.ErrInvalidAmount, f.key, raw)
		}
		*f.dst = d
	}
	return out, nil
}

// monthParam reads the {month} path segment.
func monthParam(r *http.Request) (core.MonthKey, error) {
	return core.ParseMonthKey(r.PathValue("month"))
}

// displayParam reads ?currency=, falling back to def.
func displayParam(r *http.Request, def currency.Display, secondary string) (currency.Display, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("currency"))
	if raw == "" {
		return def, nil
	}
	return currency.ParseDisplay(raw, secondary)
}
