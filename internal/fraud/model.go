package fraud

import (
	"io"
	"sync"
	"time"

	"github.com/FlavioCFOliveira/upifraud/internal/features"
	"github.com/FlavioCFOliveira/upifraud/internal/net"
)

// TrainedModel is a fitted classifier with the encoders it was trained on
// and its held-out evaluation. It is never modified after Train returns,
// so the same model can serve predictions while another one is trained.
type TrainedModel struct {
	ModelType    string       `json:"modelType"`
	Architecture Architecture `json:"architecture"`

	Metrics   Metrics         `json:"metrics"`
	Confusion ConfusionMatrix `json:"confusion"`

	Encoders   *features.Encoders `json:"-"`
	InputWidth int                `json:"inputWidth"`

	TrainSize int       `json:"trainSize"`
	TestSize  int       `json:"testSize"`
	Epochs    int       `json:"epochs"`
	FinalLoss float64   `json:"finalLoss"`
	TrainedAt time.Time `json:"trainedAt"`

	mu      sync.Mutex
	network *net.Network
}

// Probability runs one forward pass on an encoded transaction.
func (m *TrainedModel) Probability(vector []float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.network.Predict(vector)[0]
}

// Summary writes the layer table of the underlying network.
func (m *TrainedModel) Summary(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.network.Summary(w)
}
