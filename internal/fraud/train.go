package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/features"
	"github.com/FlavioCFOliveira/upifraud/internal/net"
)

// TrainOptions tune a call to Train. The zero value trains with seed 0 and
// the architecture's own schedule.
type TrainOptions struct {
	// Seed drives weight initialisation, dropout and batch shuffling.
	Seed int64

	// Epochs overrides the architecture's epoch count when positive.
	Epochs int

	// LogInterval logs the epoch loss every LogInterval epochs. Zero disables it.
	LogInterval int
	Logger      *slog.Logger

	Callbacks []net.Callback
}

// Train fits arch on the training records and evaluates it on the test
// records. Both sets are encoded with enc, which is stored in the model.
//
// A failed or cancelled run returns a nil model and leaves nothing behind.
func Train(ctx context.Context, train, test []dataset.Record, enc *features.Encoders, arch Architecture, opts TrainOptions) (*TrainedModel, error) {
	if n := len(dataset.Labeled(train)) + len(dataset.Labeled(test)); n < MinLabeledRecords {
		return nil, fmt.Errorf("%w: have %d labeled rows, need at least %d", ErrInsufficientData, n, MinLabeledRecords)
	}
	if enc == nil {
		return nil, errors.New("fraud: nil encoders")
	}
	train, test = dataset.Labeled(train), dataset.Labeled(test)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := arch.plan()
	if opts.Epochs > 0 {
		p.Epochs = opts.Epochs
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	network, err := arch.build(enc.Width(), p.LearningRate, rng)
	if err != nil {
		return nil, err
	}

	x := enc.VectorizeAll(train)
	y := make([][]float64, len(train))
	for i, r := range train {
		y[i] = []float64{float64(r.FraudLabel)}
	}

	callbacks := opts.Callbacks
	if opts.LogInterval > 0 {
		callbacks = append([]net.Callback{net.Logger{Interval: opts.LogInterval, Log: logger}}, callbacks...)
	}

	logger.Info("training model",
		"architecture", string(arch),
		"train", len(train),
		"test", len(test),
		"features", enc.Width(),
		"epochs", p.Epochs,
	)
	start := time.Now()

	hist, err := network.Fit(ctx, x, y, net.FitConfig{
		Epochs:    p.Epochs,
		BatchSize: p.BatchSize,
		Rand:      rng,
	}, callbacks...)
	if err != nil {
		if errors.Is(err, net.ErrNonFiniteLoss) {
			return nil, fmt.Errorf("%w: %v", ErrTrainingDiverged, err)
		}
		return nil, fmt.Errorf("fraud: training %s: %w", arch, err)
	}

	model := &TrainedModel{
		ModelType:    string(arch),
		Architecture: arch,
		Encoders:     enc,
		InputWidth:   enc.Width(),
		TrainSize:    len(train),
		TestSize:     len(test),
		Epochs:       len(hist.Losses),
		TrainedAt:    time.Now(),
		network:      network,
	}
	if len(hist.Losses) > 0 {
		model.FinalLoss = hist.Losses[len(hist.Losses)-1]
	}

	model.Confusion, model.Metrics = Evaluate(model, test)

	logger.Info("model trained",
		"architecture", string(arch),
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"loss", model.FinalLoss,
		"accuracy", model.Metrics.Accuracy,
		"precision", model.Metrics.Precision,
		"recall", model.Metrics.Recall,
		"f1", model.Metrics.F1,
	)
	return model, nil
}

// Evaluate scores model on the labeled records of test.
func Evaluate(model *TrainedModel, test []dataset.Record) (ConfusionMatrix, Metrics) {
	var c ConfusionMatrix
	for _, r := range test {
		if !r.HasLabel {
			continue
		}
		c.Add(model.Probability(model.Encoders.Vectorize(r)), r.FraudLabel)
	}
	return c, c.Metrics()
}
