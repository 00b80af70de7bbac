// Package net provides core neural network types.
package net

import (
	"fmt"
	"io"
	"strings"

	"github.com/FlavioCFOliveira/upifraud/internal/layer"
	"github.com/FlavioCFOliveira/upifraud/internal/loss"
	"github.com/FlavioCFOliveira/upifraud/internal/opt"
)

// Network is a collection of layers that can be forwarded and backwarded.
//
// A Network is not safe for concurrent use: layers reuse internal buffers on
// every Forward call.
type Network struct {
	layers []layer.Layer
	loss   loss.Loss
	opt    opt.Optimizer

	// Pre-allocated gradient buffer for training
	lossGradBuf []float64
}

// New creates a new neural network with the given layers.
func New(layers []layer.Layer, loss loss.Loss, optimizer opt.Optimizer) *Network {
	return &Network{
		layers: layers,
		loss:   loss,
		opt:    optimizer,
	}
}

// Forward performs a forward pass through all layers.
// The returned slice belongs to the last layer and is overwritten by the next call.
func (n *Network) Forward(x []float64) []float64 {
	curr := x
	for i := range n.layers {
		curr = n.layers[i].Forward(curr)
	}
	return curr
}

// Backward performs a backward pass through all layers.
func (n *Network) Backward(grad []float64) []float64 {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		curr = n.layers[i].Backward(curr)
	}
	return curr
}

// SetTraining switches every layer that cares (Dropout) between training and
// inference behaviour.
func (n *Network) SetTraining(training bool) {
	for _, l := range n.layers {
		if t, ok := l.(layer.Trainable); ok {
			t.SetTraining(training)
		}
	}
}

// Predict runs an inference-mode forward pass and returns a copy of the output.
func (n *Network) Predict(x []float64) []float64 {
	n.SetTraining(false)
	out := n.Forward(x)
	res := make([]float64, len(out))
	copy(res, out)
	return res
}

// ClearGradients zeroes the accumulated gradients of every layer.
func (n *Network) ClearGradients() {
	for _, l := range n.layers {
		l.ClearGradients()
	}
}

// Step performs one optimization step over the flattened parameter vector and
// writes the updated values back to the layers.
func (n *Network) Step() {
	params := n.Params()
	gradients := n.Gradients()
	n.opt.StepInPlace(params, gradients)

	offset := 0
	for _, l := range n.layers {
		size := len(l.Params())
		if size == 0 {
			continue
		}
		l.SetParams(params[offset : offset+size])
		offset += size
	}
}

// TrainBatch performs training on a batch of samples.
// Gradients are accumulated over the batch, averaged, and applied in a single
// optimizer step. Returns the mean loss of the batch.
func (n *Network) TrainBatch(batchX [][]float64, batchY [][]float64) float64 {
	if len(batchX) == 0 {
		return 0
	}
	batchSize := float64(len(batchX))
	var totalLoss float64

	n.ClearGradients()
	for i := range batchX {
		yPred := n.Forward(batchX[i])
		totalLoss += n.loss.Forward(yPred, batchY[i])

		yPredLen := len(yPred)
		if cap(n.lossGradBuf) < yPredLen {
			n.lossGradBuf = make([]float64, yPredLen)
		}
		grad := n.lossGradBuf[:yPredLen]

		if backwardInPlace, ok := n.loss.(loss.BackwardInPlacer); ok {
			backwardInPlace.BackwardInPlace(yPred, batchY[i], grad)
		} else {
			grad = n.loss.Backward(yPred, batchY[i])
		}

		// Scale so the accumulated gradient is the batch mean
		for j := range grad {
			grad[j] /= batchSize
		}
		_ = n.Backward(grad)
	}

	n.Step()
	return totalLoss / batchSize
}

// Params returns all network parameters flattened (copy).
func (n *Network) Params() []float64 {
	var params []float64
	for _, l := range n.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// Gradients returns all network gradients flattened (copy).
func (n *Network) Gradients() []float64 {
	var gradients []float64
	for _, l := range n.layers {
		gradients = append(gradients, l.Gradients()...)
	}
	return gradients
}

// InSize returns the width of the input the network expects.
func (n *Network) InSize() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[0].InSize()
}

// Summary writes a table of the network architecture to w.
func (n *Network) Summary(w io.Writer) {
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, "=================================================================")

	totalParams := 0
	for i, l := range n.layers {
		lType := fmt.Sprintf("%T", l)
		if idx := strings.LastIndex(lType, "."); idx >= 0 {
			lType = lType[idx+1:]
		}

		params := len(l.Params())
		totalParams += params

		fmt.Fprintf(w, "%-25s %-20s %-10d\n", fmt.Sprintf("%s_%d", lType, i), fmt.Sprintf("(%d)", l.OutSize()), params)
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", totalParams)
}
