// Package settings keeps user preferences and the optional password gate
// behind the storage.KV port.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"moneymanager/internal/currency"
	"moneymanager/internal/storage"
)

// Preferences are the explicit user configuration passed through the app.
type Preferences struct {
	Language        string           `json:"language"`
	DisplayCurrency currency.Display `json:"displayCurrency"`
	Theme           json.RawMessage  `json:"theme,omitempty"`
}

// Defaults are used for keys that were never set.
type Defaults struct {
	Language        string
	DisplayCurrency currency.Display
	Secondary       string
}

// Store reads and writes preferences by key.
type Store struct {
	kv       storage.KV
	defaults Defaults
}

func NewStore(kv storage.KV, defaults Defaults) *Store {
	if defaults.Language == "" {
		defaults.Language = "en"
	}
	if defaults.DisplayCurrency == "" {
		defaults.DisplayCurrency = currency.DisplayUSD
	}
	if defaults.Secondary == "" {
		defaults.Secondary = currency.DefaultSecondary
	}
	return &Store{kv: kv, defaults: defaults}
}

// Load returns the stored preferences merged over the defaults.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	p := Preferences{Language: s.defaults.Language, DisplayCurrency: s.defaults.DisplayCurrency}

	if err := s.getJSON(ctx, storage.KeyLanguage, &p.Language); err != nil {
		return Preferences{}, err
	}
	var display string
	if err := s.getJSON(ctx, storage.KeyDisplayCurrency, &display); err != nil {
		return Preferences{}, err
	}
	if display != "" {
		if d, err := currency.ParseDisplay(display, s.defaults.Secondary); err == nil {
			p.DisplayCurrency = d
		}
	}
	theme, err := s.kv.Get(ctx, storage.KeyTheme)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return Preferences{}, fmt.Errorf("load theme: %w", err)
	default:
		p.Theme = json.RawMessage(theme)
	}
	return p, nil
}

// Update is a partial preference change; nil fields are left untouched.
type Update struct {
	Language        *string          `json:"language,omitempty"`
	DisplayCurrency *string          `json:"displayCurrency,omitempty"`
	Theme           *json.RawMessage `json:"theme,omitempty"`
}

// Apply validates and persists an update, returning the resulting preferences.
func (s *Store) Apply(ctx context.Context, u Update) (Preferences, error) {
	if u.DisplayCurrency != nil {
		d, err := currency.ParseDisplay(*u.DisplayCurrency, s.defaults.Secondary)
		if err != nil {
			return Preferences{}, err
		}
		if err := s.setJSON(ctx, storage.KeyDisplayCurrency, string(d)); err != nil {
			return Preferences{}, err
		}
	}
	if u.Language != nil {
		lang := strings.TrimSpace(*u.Language)
		if lang == "" {
			return Preferences{}, fmt.Errorf("%w: language", ErrInvalidPreference)
		}
		if err := s.setJSON(ctx, storage.KeyLanguage, lang); err != nil {
			return Preferences{}, err
		}
	}
	if u.Theme != nil {
		if !json.Valid(*u.Theme) {
			return Preferences{}, fmt.Errorf("%w: theme must be JSON", ErrInvalidPreference)
		}
		if err := s.kv.Set(ctx, storage.KeyTheme, *u.Theme); err != nil {
			return Preferences{}, fmt.Errorf("save theme: %w", err)
		}
	}
	return s.Load(ctx)
}

// ErrInvalidPreference is returned for malformed preference values.
var ErrInvalidPreference = errors.New("invalid preference")

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// Older clients stored bare strings.
		if sp, ok := dst.(*string); ok {
			*sp = string(raw)
			return nil
		}
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
