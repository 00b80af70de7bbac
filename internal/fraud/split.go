package fraud

import (
	"fmt"
	"math"
	"math/rand"
)

// MinLabeledRecords is the smallest labeled set a model is trained on.
const MinLabeledRecords = 10

// DefaultTestRatio is the share of labeled records held out for evaluation.
const DefaultTestRatio = 0.2

// SplitTrainTest shuffles a copy of items with rng and returns the first
// max(1, floor(n*ratio)) elements as test and the rest as train.
// items itself is not reordered.
func SplitTrainTest[T any](items []T, ratio float64, rng *rand.Rand) (train, test []T, err error) {
	if len(items) < MinLabeledRecords {
		return nil, nil, fmt.Errorf("%w: have %d labeled rows, need at least %d", ErrInsufficientData, len(items), MinLabeledRecords)
	}
	if ratio <= 0 || ratio >= 1 || math.IsNaN(ratio) {
		return nil, nil, fmt.Errorf("fraud: test ratio must be in (0, 1), got %v", ratio)
	}

	shuffled := make([]T, len(items))
	copy(shuffled, items)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	testSize := max(1, int(math.Floor(float64(len(items))*ratio)))
	return shuffled[testSize:], shuffled[:testSize], nil
}
