package net

import (
	"log/slog"
	"math"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(n *Network)
	OnTrainEnd(n *Network)
	OnEpochBegin(epoch int, n *Network)
	OnEpochEnd(epoch int, loss float64, n *Network)
	OnBatchBegin(batch int, n *Network)
	OnBatchEnd(batch int, loss float64, n *Network)
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(n *Network)                        {}
func (c BaseCallback) OnTrainEnd(n *Network)                          {}
func (c BaseCallback) OnEpochBegin(epoch int, n *Network)             {}
func (c BaseCallback) OnEpochEnd(epoch int, loss float64, n *Network) {}
func (c BaseCallback) OnBatchBegin(batch int, n *Network)             {}
func (c BaseCallback) OnBatchEnd(batch int, loss float64, n *Network) {}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, n *Network) {
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		slog.Debug("early stopping", "epoch", epoch, "loss", loss, "patience", c.Patience)
		c.Stopped = true
	}
}

func (c *EarlyStopping) ShouldStop() bool {
	return c.Stopped
}

// Logger logs training progress every Interval epochs.
type Logger struct {
	BaseCallback
	Interval int
	Log      *slog.Logger
}

func (c Logger) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.Interval <= 0 || epoch%c.Interval != 0 {
		return
	}
	l := c.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("training progress", "epoch", epoch, "loss", loss)
}

// Progress reports every completed epoch to a function, for busy indicators.
type Progress struct {
	BaseCallback
	Epochs int
	Report func(epoch, total int, loss float64)
}

func (c Progress) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.Report != nil {
		c.Report(epoch+1, c.Epochs, loss)
	}
}
