package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
	"moneymanager/internal/currency"
)

func parserFor(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse(%q): %v", body, err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		want        map[string]string
	}{
		{
			name:        "json with numbers",
			body:        `{"amount": 12.50, "category": " Food\u0007 ", "flag": true}`,
			contentType: "application/json",
			wantJSON:    true,
			want:        map[string]string{"amount": "12.50", "category": "Food", "flag": "true", "missing": ""},
		},
		{
			name:        "form encoded",
			body:        "amount=3%2C5&category=Rent",
			contentType: "application/x-www-form-urlencoded",
			want:        map[string]string{"amount": "3,5", "category": "Rent"},
		},
		{
			name: "empty body",
			want: map[string]string{"amount": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parserFor(t, tt.body, tt.contentType)
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON = %v", p.IsJSON())
			}
			for k, want := range tt.want {
				if got := p.Get(k); got != want {
					t.Errorf("Get(%q) = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestRequestBodyParserRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected error")
	}

	big := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", maxBodyBytes+1)))
	if err := NewRequestBodyParser(big).Parse(); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("oversized body: %v", err)
	}
}

func TestRequestBodyParserStrings(t *testing.T) {
	tests := []struct {
		body        string
		contentType string
		want        []string
		present     bool
	}{
		{`{"overwrite":["2025-01","2025-02"]}`, "application/json", []string{"2025-01", "2025-02"}, true},
		{`{"overwrite":[]}`, "application/json", []string{}, true},
		{`{}`, "application/json", nil, false},
		{"overwrite=2025-01&overwrite=2025-03", "application/x-www-form-urlencoded", []string{"2025-01", "2025-03"}, true},
	}
	for _, tt := range tests {
		got, present := parserFor(t, tt.body, tt.contentType).Strings("overwrite")
		if present != tt.present || strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("Strings(%s) = %v, %v", tt.body, got, present)
		}
	}
}

func TestParseTransaction(t *testing.T) {
	p := parserFor(t, `{"type":"Expense","amount":"12,5","currency":"eur","category":"Food","description":"lunch","date":"2025-03-04"}`, "application/json")
	tx, err := ParseTransaction(p)
	if err != nil {
		t.Fatalf("ParseTransaction: %v", err)
	}
	if tx.Kind != core.Expense || tx.Currency != core.EUR || !tx.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("tx = %+v", tx)
	}
	if tx.Date.Format("2006-01-02") != "2025-03-04" {
		t.Errorf("date = %v", tx.Date)
	}

	noDate, err := ParseTransaction(parserFor(t, `{"type":"income","amount":1,"currency":"USD","category":"X"}`, "application/json"))
	if err != nil || !noDate.Date.IsZero() {
		t.Errorf("missing date should stay zero for the ledger to fill: %v %v", noDate.Date, err)
	}

	errs := map[string]error{
		`{"type":"x","amount":1,"currency":"USD","category":"X"}`:                  core.ErrInvalidKind,
		`{"type":"income","amount":-1,"currency":"USD","category":"X"}`:            core.ErrInvalidAmount,
		`{"type":"income","currency":"USD","category":"X"}`:                       core.ErrInvalidAmount,
		`{"type":"income","amount":1,"currency":"BTC","category":"X"}`:             core.ErrInvalidCurrency,
		`{"type":"income","amount":1,"currency":"USD"}`:                            core.ErrEmptyCategory,
		`{"type":"income","amount":1,"currency":"USD","category":"X","date":"x"}`: core.ErrInvalidDate,
	}
	for body, want := range errs {
		if _, err := ParseTransaction(parserFor(t, body, "application/json")); !errors.Is(err, want) {
			t.Errorf("%s: err = %v, want %v", body, err, want)
		}
	}
}

func TestParseNoteAndBalances(t *testing.T) {
	n, err := ParseNote(parserFor(t, `{"type":"income","amount":"100","exchangeRate":"41.2"}`, "application/json"))
	if err != nil || n.ExchangeRate == nil || !n.ExchangeRate.Equal(decimal.RequireFromString("41.2")) {
		t.Fatalf("note = %+v, %v", n, err)
	}
	if _, err := ParseNote(parserFor(t, `{"type":"income","amount":"1","exchangeRate":"0"}`, "application/json")); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero exchange rate: %v", err)
	}

	b, err := ParseBalances(parserFor(t, `{"usd":"-10.5","eur":3}`, "application/json"))
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !b.USD.Equal(decimal.RequireFromString("-10.5")) || !b.EUR.Equal(decimal.NewFromInt(3)) || !b.Crypto.IsZero() {
		t.Errorf("balances = %+v", b)
	}
}

func TestDisplayParam(t *testing.T) {
	tests := []struct {
		query   string
		want    currency.Display
		wantErr bool
	}{
		{"", currency.Display("UAH"), false},
		{"?currency=usd", currency.DisplayUSD, false},
		{"?currency=UAH", currency.Display("UAH"), false},
		{"?currency=EUR", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		got, err := displayParam(req, currency.Display("UAH"), "UAH")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("displayParam(%q) = %q, %v", tt.query, got, err)
		}
	}
}
