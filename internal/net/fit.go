package net

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrNonFiniteLoss is returned by Fit when a batch loss becomes NaN or Inf.
var ErrNonFiniteLoss = errors.New("net: non-finite training loss")

// FitConfig controls a call to Fit.
type FitConfig struct {
	Epochs    int
	BatchSize int

	// Rand shuffles the sample order at the start of every epoch.
	// A nil Rand disables shuffling.
	Rand *rand.Rand
}

// History records the mean loss of each completed epoch.
type History struct {
	Losses  []float64
	Stopped bool // a callback asked to stop before Epochs was reached
}

// Fit trains the network on (x, y) in mini-batches.
//
// ctx is checked between batches; a cancelled context aborts training and
// returns ctx.Err(). The network is left in inference mode when Fit returns.
func (n *Network) Fit(ctx context.Context, x, y [][]float64, cfg FitConfig, callbacks ...Callback) (History, error) {
	var hist History

	if len(x) != len(y) {
		return hist, fmt.Errorf("net: %d samples but %d targets", len(x), len(y))
	}
	if len(x) == 0 {
		return hist, errors.New("net: no training samples")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	batchX := make([][]float64, 0, cfg.BatchSize)
	batchY := make([][]float64, 0, cfg.BatchSize)

	n.SetTraining(true)
	defer n.SetTraining(false)

	for _, cb := range callbacks {
		cb.OnTrainBegin(n)
	}
	defer func() {
		for _, cb := range callbacks {
			cb.OnTrainEnd(n)
		}
	}()

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		for _, cb := range callbacks {
			cb.OnEpochBegin(epoch, n)
		}

		if cfg.Rand != nil {
			cfg.Rand.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		totalLoss := 0.0
		batchCount := 0
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			end := min(start+cfg.BatchSize, len(order))

			batchX, batchY = batchX[:0], batchY[:0]
			for _, idx := range order[start:end] {
				batchX = append(batchX, x[idx])
				batchY = append(batchY, y[idx])
			}

			for _, cb := range callbacks {
				cb.OnBatchBegin(batchCount, n)
			}
			l := n.TrainBatch(batchX, batchY)
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return hist, fmt.Errorf("%w at epoch %d batch %d", ErrNonFiniteLoss, epoch, batchCount)
			}
			for _, cb := range callbacks {
				cb.OnBatchEnd(batchCount, l, n)
			}

			totalLoss += l
			batchCount++
		}

		avgLoss := totalLoss / float64(batchCount)
		hist.Losses = append(hist.Losses, avgLoss)
		for _, cb := range callbacks {
			cb.OnEpochEnd(epoch, avgLoss, n)
		}

		if shouldStop(callbacks) {
			hist.Stopped = true
			break
		}
	}

	return hist, nil
}

func shouldStop(callbacks []Callback) bool {
	for _, cb := range callbacks {
		if s, ok := cb.(Stopper); ok && s.ShouldStop() {
			return true
		}
	}
	return false
}
