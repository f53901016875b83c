package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

const monthKeyLayout = "2006-01"

func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(monthKeyLayout) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	if _, err := time.Parse(monthKeyLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// MonthKeyOf returns the key of the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthKeyLayout))
}

// Time returns the first instant of the month in UTC.
func (k MonthKey) Time() time.Time {
	t, err := time.Parse(monthKeyLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (k MonthKey) Prev() MonthKey { return MonthKeyOf(k.Time().AddDate(0, -1, 0)) }
func (k MonthKey) Next() MonthKey { return MonthKeyOf(k.Time().AddDate(0, 1, 0)) }

func (k MonthKey) String() string { return string(k) }

// SortedKeys returns the history keys in chronological order.
// Fixed-width "YYYY-MM" keys sort chronologically as strings.
func (h MonthHistory) SortedKeys() []MonthKey {
	keys := make([]MonthKey, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Latest returns the chronologically latest month key.
func (h MonthHistory) Latest() (MonthKey, bool) {
	keys := h.SortedKeys()
	if len(keys) == 0 {
		return "", false
	}
	return keys[len(keys)-1], true
}
