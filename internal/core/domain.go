package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	USD    Currency = "USD"
	EUR    Currency = "EUR"
	Crypto Currency = "CRYPTO"
)

// Note buckets use the lowercase currency name, matching the persisted layout.
const (
	BucketUSD    Bucket = "usd"
	BucketEUR    Bucket = "eur"
	BucketCrypto Bucket = "crypto"
)

type (
	// Kind distinguishes income from expense entries.
	Kind string

	// Currency is the denomination of a transaction.
	Currency string

	// Bucket identifies one of the three currency balances.
	Bucket string

	Transaction struct {
		ID          string          `json:"id"`
		Kind        Kind            `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    Currency        `json:"currency"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
	}

	CurrencyBalance struct {
		USD    decimal.Decimal `json:"usd"`
		EUR    decimal.Decimal `json:"eur"`
		Crypto decimal.Decimal `json:"crypto"`
	}

	CurrencyNote struct {
		ID           string           `json:"id"`
		Kind         Kind             `json:"type"`
		Amount       decimal.Decimal  `json:"amount"`
		Description  string           `json:"description"`
		Date         time.Time        `json:"date"`
		ExchangeRate *decimal.Decimal `json:"exchangeRate,omitempty"`
	}

	// Notes maps a currency bucket to its manual adjustment entries.
	Notes map[Bucket][]CurrencyNote

	MonthRecord struct {
		Transactions []Transaction   `json:"transactions"`
		Balances     CurrencyBalance `json:"currencyBalances"`
		Notes        Notes           `json:"currencyNotes"`
	}

	// MonthHistory is the full ledger keyed by month.
	MonthHistory map[MonthKey]MonthRecord
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidBucket   = errors.New("invalid currency bucket")
	ErrInvalidMonthKey = errors.New("invalid month key")
	ErrInvalidDate     = errors.New("invalid date")
)

// Buckets lists the note buckets in display order.
var Buckets = []Bucket{BucketUSD, BucketEUR, BucketCrypto}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Income, Expense:
		return k, nil
	}
	return "", ErrInvalidKind
}

func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case USD, EUR, Crypto:
		return c, nil
	}
	return "", ErrInvalidCurrency
}

func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case BucketUSD, BucketEUR, BucketCrypto:
		return b, nil
	}
	return "", ErrInvalidBucket
}

// Currency returns the currency a bucket is denominated in.
func (b Bucket) Currency() Currency {
	switch b {
	case BucketEUR:
		return EUR
	case BucketCrypto:
		return Crypto
	default:
		return USD
	}
}

// Signed returns the amount with expense entries negated.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if t.Kind != Income && t.Kind != Expense {
		return ErrInvalidKind
	}
	if _, err := ParseCurrency(string(t.Currency)); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (n CurrencyNote) Validate() error {
	if n.Kind != Income && n.Kind != Expense {
		return ErrInvalidKind
	}
	if n.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Get returns the balance held in a bucket.
func (b CurrencyBalance) Get(bucket Bucket) decimal.Decimal {
	switch bucket {
	case BucketEUR:
		return b.EUR
	case BucketCrypto:
		return b.Crypto
	default:
		return b.USD
	}
}

// EmptyNotes returns a notes map with all three buckets present.
func EmptyNotes() Notes {
	return Notes{
		BucketUSD:    []CurrencyNote{},
		BucketEUR:    []CurrencyNote{},
		BucketCrypto: []CurrencyNote{},
	}
}

// Normalize fills missing note buckets and nil slices.
func (r *MonthRecord) Normalize() {
	if r.Transactions == nil {
		r.Transactions = []Transaction{}
	}
	if r.Notes == nil {
		r.Notes = EmptyNotes()
	}
	for _, b := range Buckets {
		if r.Notes[b] == nil {
			r.Notes[b] = []CurrencyNote{}
		}
	}
}

// Clone returns a deep copy of the record.
func (r MonthRecord) Clone() MonthRecord {
	out := MonthRecord{
		Transactions: append([]Transaction{}, r.Transactions...),
		Balances:     r.Balances,
		Notes:        r.Notes.Clone(),
	}
	out.Normalize()
	return out
}

func (n Notes) Clone() Notes {
	out := EmptyNotes()
	for b, list := range n {
		out[b] = append([]CurrencyNote{}, list...)
	}
	return out
}

func (h MonthHistory) Clone() MonthHistory {
	out := make(MonthHistory, len(h))
	for k, r := range h {
		out[k] = r.Clone()
	}
	return out
}
