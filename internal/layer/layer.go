// Package layer provides neural network layer implementations.
package layer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/upifraud/internal/activations"
)

// Layer is a neural network layer.
//
// Backward accumulates parameter gradients into the layer's buffers so that a
// mini-batch can be processed sample by sample; ClearGradients resets them.
type Layer interface {
	Forward(x []float64) []float64
	Backward(grad []float64) []float64
	Params() []float64
	SetParams([]float64)
	Gradients() []float64
	ClearGradients()
	InSize() int
	OutSize() int
}

// Trainable is implemented by layers that behave differently during training.
type Trainable interface {
	SetTraining(training bool)
}

// Dense is a fully connected layer.
// Weights are stored row-major: weight for output i, input j is at weights[i*in + j].
type Dense struct {
	weights []float64
	biases  []float64
	act     activations.Activation
	outSize int
	inSize  int

	// Reusable buffers
	inputBuf  []float64
	outputBuf []float64
	preActBuf []float64
	gradWBuf  []float64
	gradBBuf  []float64
	gradInBuf []float64
	dzBuf     []float64
}

// NewDenseWithRand creates a dense layer with Glorot-uniform weights drawn from rng
// and zero biases.
func NewDenseWithRand(in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	weights := make([]float64, out*in)
	biases := make([]float64, out)

	limit := math.Sqrt(6.0 / (float64(in) + float64(out)))
	for i := range weights {
		weights[i] = rng.Float64()*2*limit - limit
	}

	return &Dense{
		weights:   weights,
		biases:    biases,
		act:       act,
		outSize:   out,
		inSize:    in,
		inputBuf:  make([]float64, in),
		outputBuf: make([]float64, out),
		preActBuf: make([]float64, out),
		gradWBuf:  make([]float64, out*in),
		gradBBuf:  make([]float64, out),
		gradInBuf: make([]float64, in),
		dzBuf:     make([]float64, out),
	}
}

// Forward computes act(Wx + b). The returned slice is owned by the layer and
// is overwritten by the next call.
func (d *Dense) Forward(x []float64) []float64 {
	if len(x) != d.inSize {
		panic("Dense.Forward: input size mismatch")
	}
	copy(d.inputBuf, x)

	for o := 0; o < d.outSize; o++ {
		wBase := o * d.inSize
		sum := d.biases[o] + floats.Dot(d.weights[wBase:wBase+d.inSize], d.inputBuf)
		d.preActBuf[o] = sum
		d.outputBuf[o] = d.act.Activate(sum)
	}

	return d.outputBuf
}

// Backward propagates grad through the layer using the input of the last Forward call.
func (d *Dense) Backward(grad []float64) []float64 {
	dz := d.dzBuf

	// dz = dL/d(output) * activation'(z)
	for o := 0; o < d.outSize; o++ {
		dz[o] = grad[o] * d.act.Derivative(d.preActBuf[o])
		d.gradBBuf[o] += dz[o]
	}

	// dL/dW[o, :] += dz[o] * input
	for o := 0; o < d.outSize; o++ {
		wBase := o * d.inSize
		floats.AddScaled(d.gradWBuf[wBase:wBase+d.inSize], dz[o], d.inputBuf)
	}

	// dL/dx[i] = sum_o(dz[o] * W[o, i])
	for i := range d.gradInBuf {
		d.gradInBuf[i] = 0
	}
	for o := 0; o < d.outSize; o++ {
		wBase := o * d.inSize
		floats.AddScaled(d.gradInBuf, dz[o], d.weights[wBase:wBase+d.inSize])
	}

	return d.gradInBuf
}

// Params returns all dense layer parameters flattened (weights then biases).
func (d *Dense) Params() []float64 {
	params := make([]float64, 0, len(d.weights)+len(d.biases))
	params = append(params, d.weights...)
	params = append(params, d.biases...)
	return params
}

// SetParams updates weights and biases from a flattened slice (in-place).
func (d *Dense) SetParams(params []float64) {
	copy(d.weights, params[:len(d.weights)])
	copy(d.biases, params[len(d.weights):])
}

// Gradients returns the accumulated gradients flattened in Params order.
func (d *Dense) Gradients() []float64 {
	gradients := make([]float64, 0, len(d.gradWBuf)+len(d.gradBBuf))
	gradients = append(gradients, d.gradWBuf...)
	gradients = append(gradients, d.gradBBuf...)
	return gradients
}

// ClearGradients zeroes the accumulated gradients.
func (d *Dense) ClearGradients() {
	for i := range d.gradWBuf {
		d.gradWBuf[i] = 0
	}
	for i := range d.gradBBuf {
		d.gradBBuf[i] = 0
	}
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}
