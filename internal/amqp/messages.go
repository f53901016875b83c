package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage tells consumers that a month was mutated. It carries no
// ledger data; consumers reload the history from storage.
type LedgerChangedMessage struct {
	Month     string    `json:"month"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(month, operation string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Month:     month,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
