// Package activations provides the activation functions used by the fraud classifiers.
package activations

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) given the pre-activation x
	Derivative(x float64) float64

	// Name identifies the activation in model summaries.
	Name() string
}

// ReLU activation function. Used by the hidden layers of the feed-forward net.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (r ReLU) Name() string { return "ReLU" }

// Sigmoid activation function. Every classifier ends in a single sigmoid unit
// so that its output reads as a fraud probability.
type Sigmoid struct{}

// sigmoid is split by sign so that large |x| never overflows math.Exp.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

func (s Sigmoid) Name() string { return "Sigmoid" }

// ByName returns the activation registered under name, or nil.
func ByName(name string) Activation {
	switch name {
	case "ReLU":
		return ReLU{}
	case "Sigmoid":
		return Sigmoid{}
	}
	return nil
}
