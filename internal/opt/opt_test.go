// Package opt provides unit tests for optimizers.
package opt

import (
	"math"
	"testing"
)

// TestSGDStep tests SGD step computation.
func TestSGDStep(t *testing.T) {
	sgd := SGD{LearningRate: 0.1}

	params := []float64{1.0, 2.0, 3.0}
	gradients := []float64{0.1, 0.2, 0.3}

	updated := sgd.Step(params, gradients)

	expected := []float64{
		1.0 - 0.1*0.1, // 0.99
		2.0 - 0.1*0.2, // 1.98
		3.0 - 0.1*0.3, // 2.97
	}

	for i := range updated {
		if math.Abs(updated[i]-expected[i]) > 1e-10 {
			t.Errorf("updated[%d] = %v, want %v", i, updated[i], expected[i])
		}
	}

	// Step must not touch the input
	if params[0] != 1.0 {
		t.Errorf("Step modified input params: %v", params)
	}
}

// TestSGDStepInPlace tests in-place SGD update.
func TestSGDStepInPlace(t *testing.T) {
	sgd := SGD{LearningRate: 0.5}

	params := []float64{1.0, -1.0}
	sgd.StepInPlace(params, []float64{1.0, -2.0})

	if params[0] != 0.5 || params[1] != 0.0 {
		t.Errorf("params = %v, want [0.5 0]", params)
	}
}

// TestAdamFirstStep tests that the first bias-corrected step moves each
// parameter by roughly the learning rate against the gradient sign.
func TestAdamFirstStep(t *testing.T) {
	adam := NewAdam(0.01)

	params := []float64{1.0, 1.0, 1.0}
	adam.StepInPlace(params, []float64{0.5, -3.0, 0.0})

	if math.Abs(params[0]-0.99) > 1e-6 {
		t.Errorf("params[0] = %v, want ~0.99", params[0])
	}
	if math.Abs(params[1]-1.01) > 1e-6 {
		t.Errorf("params[1] = %v, want ~1.01", params[1])
	}
	if params[2] != 1.0 {
		t.Errorf("params[2] = %v, want 1 (zero gradient)", params[2])
	}
	if adam.Steps() != 1 {
		t.Errorf("Steps = %d, want 1", adam.Steps())
	}
}

// TestAdamMinimizesQuadratic tests convergence on f(x) = (x-3)^2.
func TestAdamMinimizesQuadratic(t *testing.T) {
	adam := NewAdam(0.1)
	x := []float64{0}

	for i := 0; i < 500; i++ {
		adam.StepInPlace(x, []float64{2 * (x[0] - 3)})
	}

	if math.Abs(x[0]-3) > 0.05 {
		t.Errorf("x = %v, want ~3", x[0])
	}
}

// TestAdamReset tests that Reset discards optimizer state.
func TestAdamReset(t *testing.T) {
	adam := NewAdam(0.01)
	adam.StepInPlace([]float64{1}, []float64{1})
	adam.Reset()

	if adam.Steps() != 0 {
		t.Errorf("Steps after Reset = %d, want 0", adam.Steps())
	}
}
