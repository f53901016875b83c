package http

import (
	"strconv"
	"strings"
	"time"

	"moneymanager/internal/sheets"
)

// parseDate accepts a calendar date or an RFC 3339 timestamp. An empty
// string yields the zero time so the ledger fills in "now".
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(sheets.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func summaryCacheKey(month, display string, ratesAt time.Time, version uint64) string {
	return month + "|" + display + "|" + ratesAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatUint(version, 10)
}
