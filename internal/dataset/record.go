// Package dataset turns CSV transaction exports into typed records.
package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Record is one UPI transaction. Records are never mutated after parsing.
type Record struct {
	TransactionID   string    `json:"transactionId,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	Amount          float64   `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
	Location        string    `json:"location,omitempty"`
	DeviceID        string    `json:"deviceId,omitempty"`
	TransactionType string    `json:"transactionType"`

	// FraudLabel is the ground-truth class (0 genuine, 1 fraud) and is only
	// meaningful when HasLabel is set.
	FraudLabel int  `json:"fraudLabel"`
	HasLabel   bool `json:"hasLabel"`
}

// Labeled returns the records that carry a fraud label, preserving order.
func Labeled(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.HasLabel {
			out = append(out, r)
		}
	}
	return out
}

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTimestamp parses the timestamp formats accepted in transaction exports.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
