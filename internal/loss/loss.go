// Package loss provides the loss functions used to fit the fraud classifiers.
package loss

import "math"

// BackwardInPlacer is an optional interface for loss functions that support
// in-place gradient computation to avoid allocations.
type BackwardInPlacer interface {
	BackwardInPlace(yPred, yTrue, grad []float64)
}

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64

	// Backward computes the gradient of the loss w.r.t. prediction.
	// This creates a new slice and should be avoided in hot loops.
	Backward(yPred, yTrue []float64) []float64
}

// clipEps keeps predictions away from 0 and 1 before taking logs.
const clipEps = 1e-7

func clip(p float64) float64 {
	if p < clipEps {
		return clipEps
	}
	if p > 1-clipEps {
		return 1 - clipEps
	}
	return p
}

// BCELoss (Binary Cross Entropy) loss.
// Requires predictions to be in range (0, 1).
type BCELoss struct{}

// Forward computes binary cross entropy: -(1/n) * sum(y*log(p) + (1-y)*log(1-p))
func (b BCELoss) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("BCELoss: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := clip(yPred[i])
		sum += yTrue[i]*math.Log(p) + (1.0-yTrue[i])*math.Log(1.0-p)
	}
	return -sum / float64(n)
}

// Backward computes gradient for BCE loss.
// Gradient: d/d_pred = (pred - y) / (pred * (1-pred)) / n
func (b BCELoss) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	b.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (b BCELoss) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("BCELoss: slices must have same length")
	}

	for i := 0; i < n; i++ {
		p := clip(yPred[i])
		grad[i] = (p - yTrue[i]) / (p * (1.0 - p) * float64(n))
	}
}
