package fraud

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/FlavioCFOliveira/upifraud/internal/activations"
	"github.com/FlavioCFOliveira/upifraud/internal/layer"
	"github.com/FlavioCFOliveira/upifraud/internal/loss"
	"github.com/FlavioCFOliveira/upifraud/internal/net"
	"github.com/FlavioCFOliveira/upifraud/internal/opt"
)

// Architecture selects the classifier that Train fits.
type Architecture string

const (
	// Logistic is a single sigmoid unit over the feature vector.
	Logistic Architecture = "logistic"

	// RandomForest keeps the name the dashboard has always shown, but the
	// model is a small feed-forward network, not a tree ensemble.
	RandomForest Architecture = "random_forest"

	// DeepNet is the accurate name for the RandomForest network.
	DeepNet Architecture = "deep_net"
)

// Architectures lists the accepted names.
var Architectures = []Architecture{Logistic, RandomForest, DeepNet}

// ParseArchitecture accepts any casing of a known architecture name. The
// result is always one of the package constants and never shares memory
// with s.
func ParseArchitecture(s string) (Architecture, error) {
	a := Architecture(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Architectures {
		if a == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownArchitecture, s)
}

// plan is the fixed training schedule of an architecture.
type plan struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
}

func (a Architecture) plan() plan {
	if a == Logistic {
		return plan{Epochs: 20, BatchSize: 32, LearningRate: 0.01}
	}
	return plan{Epochs: 50, BatchSize: 32, LearningRate: 0.001}
}

// DefaultEpochs is the number of passes Train makes unless overridden.
func (a Architecture) DefaultEpochs() int {
	return a.plan().Epochs
}

// build creates an untrained network for inputs of the given width.
func (a Architecture) build(width int, lr float64, rng *rand.Rand) (*net.Network, error) {
	var layers []layer.Layer

	switch a {
	case Logistic:
		layers = []layer.Layer{
			layer.NewDenseWithRand(width, 1, activations.Sigmoid{}, rng),
		}
	case RandomForest, DeepNet:
		layers = []layer.Layer{
			layer.NewDenseWithRand(width, 64, activations.ReLU{}, rng),
			layer.NewDropout(0.3, 64, rng),
			layer.NewDenseWithRand(64, 32, activations.ReLU{}, rng),
			layer.NewDropout(0.2, 32, rng),
			layer.NewDenseWithRand(32, 16, activations.ReLU{}, rng),
			layer.NewDenseWithRand(16, 1, activations.Sigmoid{}, rng),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchitecture, string(a))
	}

	return net.New(layers, loss.BCELoss{}, opt.NewAdam(lr)), nil
}
