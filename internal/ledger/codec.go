package ledger

import (
	"encoding/json"
	"fmt"

	"moneymanager/internal/core"
)

// Serialize encodes the month history as a JSON blob.
func Serialize(h core.MonthHistory) ([]byte, error) {
	if h == nil {
		h = core.MonthHistory{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("serialize month history: %w", err)
	}
	return b, nil
}

// Deserialize decodes a blob produced by Serialize. Missing note buckets are
// filled in; the content is otherwise trusted.
func Deserialize(blob []byte) (core.MonthHistory, error) {
	h := core.MonthHistory{}
	if len(blob) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(blob, &h); err != nil {
		return nil, fmt.Errorf("deserialize month history: %w", err)
	}
	for k, r := range h {
		r.Normalize()
		h[k] = r
	}
	return h, nil
}
