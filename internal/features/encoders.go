// Package features derives normalization context from a dataset and turns
// transactions into fixed-width numeric vectors.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
)

// MaxVocabulary caps every categorical vocabulary.
const MaxVocabulary = 20

// Unknown replaces a missing location or device identifier.
const Unknown = "Unknown"

// Numeric feature names used as keys in Encoders.Stats.
const (
	StatAmount    = "Amount"
	StatHour      = "hour"
	StatDayOfWeek = "dow"
)

// DefaultTransactionTypes are appended to the dataset's types so manual entry
// works on partial datasets.
var DefaultTransactionTypes = []string{
	"P2P", "Merchant", "BillPay", "Recharge", "Transfer",
	"Online", "ATM", "Withdrawal", "Deposit", "Refund",
}

// DefaultLocations are appended to the dataset's locations.
var DefaultLocations = []string{
	"Delhi", "Mumbai", "Bangalore", "Chennai", "Kolkata",
	"Hyderabad", "Pune", "Ahmedabad", "Jaipur", Unknown,
}

// Stat is the mean and standard deviation of one numeric feature.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Encoders is the normalization context built from one dataset.
// It is immutable once built.
type Encoders struct {
	TransTypes []string        `json:"transTypes"`
	Locations  []string        `json:"locations"`
	Devices    []string        `json:"devices"`
	Stats      map[string]Stat `json:"stats"`
}

// BuildEncoders scans every record, labeled or not.
//
// Vocabularies keep the first MaxVocabulary distinct values in dataset order,
// followed by the defaults. Standard deviations of 0 are floored to 1.
func BuildEncoders(records []dataset.Record) *Encoders {
	types := make([]string, 0, len(records)+len(DefaultTransactionTypes))
	locations := make([]string, 0, len(records)+len(DefaultLocations))
	devices := make([]string, 0, len(records))

	amounts := make([]float64, len(records))
	hours := make([]float64, len(records))
	days := make([]float64, len(records))

	for i, r := range records {
		types = append(types, r.TransactionType)
		locations = append(locations, orUnknown(r.Location))
		devices = append(devices, orUnknown(r.DeviceID))

		amounts[i] = r.Amount
		hours[i] = float64(r.Timestamp.Hour())
		days[i] = float64(r.Timestamp.Weekday())
	}
	types = append(types, DefaultTransactionTypes...)
	locations = append(locations, DefaultLocations...)

	return &Encoders{
		TransTypes: vocabulary(types),
		Locations:  vocabulary(locations),
		Devices:    vocabulary(devices),
		Stats: map[string]Stat{
			StatAmount:    meanStd(amounts),
			StatHour:      meanStd(hours),
			StatDayOfWeek: meanStd(days),
		},
	}
}

// Width is the length of every vector built from e.
func (e *Encoders) Width() int {
	return numericWidth + len(e.TransTypes) + len(e.Locations) + len(e.Devices)
}

// Stat returns the statistics for a numeric feature, or {0, 1} if absent.
func (e *Encoders) Stat(name string) Stat {
	if s, ok := e.Stats[name]; ok {
		return s
	}
	return Stat{Mean: 0, Std: 1}
}

// Fingerprint identifies the vocabularies and their order. Two encoders with
// the same fingerprint produce one-hot blocks at the same positions.
func (e *Encoders) Fingerprint() string {
	h := sha256.New()
	for _, block := range [][]string{e.TransTypes, e.Locations, e.Devices} {
		h.Write([]byte(strings.Join(block, "\x1f")))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func meanStd(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{Mean: 0, Std: 1}
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	if std == 0 {
		std = 1
	}
	return Stat{Mean: mean, Std: std}
}

func vocabulary(values []string) []string {
	seen := make(map[string]struct{}, MaxVocabulary)
	out := make([]string, 0, MaxVocabulary)
	for _, v := range values {
		if len(out) == MaxVocabulary {
			break
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
