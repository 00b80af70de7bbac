package layer

import "math/rand"

// Dropout implements inverted dropout regularization.
// During training, inputs are zeroed with probability p and survivors are scaled
// by 1/(1-p). During inference, inputs pass through unchanged.
type Dropout struct {
	p        float64
	training bool
	size     int

	outputBuf []float64
	maskBuf   []float64
	gradInBuf []float64

	rng *rand.Rand
}

// NewDropout creates a new dropout layer in training mode.
// A nil rng falls back to a fixed seed of 42.
func NewDropout(p float64, size int, rng *rand.Rand) *Dropout {
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	return &Dropout{
		p:         p,
		training:  true,
		size:      size,
		outputBuf: make([]float64, size),
		maskBuf:   make([]float64, size),
		gradInBuf: make([]float64, size),
		rng:       rng,
	}
}

// SetTraining sets whether the layer should be in training or inference mode.
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

// Forward performs a forward pass through the dropout layer.
func (d *Dropout) Forward(x []float64) []float64 {
	if !d.training || d.p <= 0 {
		copy(d.outputBuf, x)
		for i := range d.maskBuf {
			d.maskBuf[i] = 1
		}
		return d.outputBuf
	}

	scale := 1.0 / (1.0 - d.p)
	for i := 0; i < d.size; i++ {
		if d.rng.Float64() < d.p {
			d.maskBuf[i] = 0
			d.outputBuf[i] = 0
		} else {
			d.maskBuf[i] = scale
			d.outputBuf[i] = x[i] * scale
		}
	}
	return d.outputBuf
}

// Backward routes the gradient through the mask of the last Forward call.
func (d *Dropout) Backward(grad []float64) []float64 {
	for i := 0; i < d.size; i++ {
		d.gradInBuf[i] = grad[i] * d.maskBuf[i]
	}
	return d.gradInBuf
}

// Params returns layer parameters (empty for Dropout).
func (d *Dropout) Params() []float64 { return nil }

// SetParams is a no-op for Dropout.
func (d *Dropout) SetParams(params []float64) {}

// Gradients returns layer gradients (empty for Dropout).
func (d *Dropout) Gradients() []float64 { return nil }

// ClearGradients is a no-op for Dropout.
func (d *Dropout) ClearGradients() {}

// InSize returns the input size of the layer.
func (d *Dropout) InSize() int { return d.size }

// OutSize returns the output size of the layer.
func (d *Dropout) OutSize() int { return d.size }

// Rate returns the dropout probability.
func (d *Dropout) Rate() float64 { return d.p }
