// Package opt provides optimization algorithms.
package opt

import "math"

// Optimizer updates network parameters based on gradients.
//
// Stateful optimizers (Adam) assume they are always handed the same flattened
// parameter vector, in the same order, on every call.
type Optimizer interface {
	// Step computes updated parameters and returns them in a new slice.
	Step(params, gradients []float64) []float64

	// StepInPlace updates params in-place.
	StepInPlace(params, gradients []float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LearningRate float64
}

// Step computes updated parameters: params - lr * gradients
func (s SGD) Step(params, gradients []float64) []float64 {
	result := make([]float64, len(params))
	copy(result, params)
	s.StepInPlace(result, gradients)
	return result
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s SGD) StepInPlace(params, gradients []float64) {
	for i := range params {
		params[i] -= s.LearningRate * gradients[i]
	}
}

// Adam optimizer with bias-corrected first and second moment estimates.
type Adam struct {
	LearningRate float64
	Beta1        float64 // Exponential decay rate for first moment
	Beta2        float64 // Exponential decay rate for second moment
	Epsilon      float64 // Small constant for numerical stability

	m []float64
	v []float64
	t int
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

// Step computes updated parameters using Adam.
func (a *Adam) Step(params, gradients []float64) []float64 {
	result := make([]float64, len(params))
	copy(result, params)
	a.StepInPlace(result, gradients)
	return result
}

// StepInPlace updates params in-place using Adam.
func (a *Adam) StepInPlace(params, gradients []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.t = 0
	}
	a.t++

	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i := range params {
		g := gradients[i]
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g

		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.t
}

// Reset clears the moment estimates.
func (a *Adam) Reset() {
	a.m, a.v, a.t = nil, nil, 0
}
