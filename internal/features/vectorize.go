package features

import (
	"strings"
	"time"

	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
)

const (
	highAmountThreshold = 10000
	lowAmountThreshold  = 100

	// amount, hour, day of week, four risk flags and the high-risk type flag
	numericWidth = 8
)

var highRiskTypes = map[string]bool{
	"transfer":   true,
	"online":     true,
	"withdrawal": true,
}

// Vectorize encodes r as
//
//	[amount, hour, dow, highAmount, lowAmount, night, weekend, highRiskType,
//	 type one-hot..., location one-hot..., device one-hot...]
//
// Numeric features are standardized with e.Stats; flags use the raw values.
// Type and location match case-insensitively, device ids exactly. Values
// outside a vocabulary leave their block all zero.
func (e *Encoders) Vectorize(r dataset.Record) []float64 {
	v := make([]float64, e.Width())

	hour := r.Timestamp.Hour()
	day := r.Timestamp.Weekday()

	v[0] = normalize(r.Amount, e.Stat(StatAmount))
	v[1] = normalize(float64(hour), e.Stat(StatHour))
	v[2] = normalize(float64(day), e.Stat(StatDayOfWeek))
	v[3] = flag(r.Amount > highAmountThreshold)
	v[4] = flag(r.Amount < lowAmountThreshold)
	v[5] = flag(hour < 6 || hour > 22)
	v[6] = flag(day == time.Saturday || day == time.Sunday)
	v[7] = flag(highRiskTypes[strings.ToLower(r.TransactionType)])

	off := numericWidth
	oneHot(v[off:], e.TransTypes, r.TransactionType, strings.EqualFold)
	off += len(e.TransTypes)
	oneHot(v[off:], e.Locations, orUnknown(r.Location), strings.EqualFold)
	off += len(e.Locations)
	oneHot(v[off:], e.Devices, orUnknown(r.DeviceID), func(a, b string) bool { return a == b })

	return v
}

// VectorizeAll encodes records in order.
func (e *Encoders) VectorizeAll(records []dataset.Record) [][]float64 {
	out := make([][]float64, len(records))
	for i, r := range records {
		out[i] = e.Vectorize(r)
	}
	return out
}

func normalize(x float64, s Stat) float64 {
	return (x - s.Mean) / s.Std
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// oneHot marks every vocabulary entry equal to value. Vocabularies are
// deduplicated exactly, so "P2P" and "p2p" may both light up.
func oneHot(dst []float64, vocab []string, value string, equal func(a, b string) bool) {
	for i, w := range vocab {
		if equal(w, value) {
			dst[i] = 1
		}
	}
}
