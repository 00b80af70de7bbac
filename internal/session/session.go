// Package session holds the state of one fraud detection workspace: the
// loaded dataset, its encoders and the live model.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FlavioCFOliveira/upifraud/internal/alert"
	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/features"
	"github.com/FlavioCFOliveira/upifraud/internal/fraud"
	"github.com/FlavioCFOliveira/upifraud/internal/net"
)

var (
	ErrTrainingInProgress = errors.New("session: a model is already being trained")
	ErrNoDataset          = errors.New("session: no dataset loaded")
)

// PreviewRows is the number of records returned by Preview.
const PreviewRows = 10

// AlertSink receives alerts for transactions predicted as fraud.
type AlertSink interface {
	Notify(e alert.Event) bool
}

// Options configure a Session.
type Options struct {
	TestRatio float64

	// Seed fixes the split and weight initialisation. Zero draws a new seed
	// for every training run.
	Seed int64

	// Epochs overrides the architecture's schedule when positive.
	Epochs      int
	LogInterval int

	// Callbacks are attached to every training run, after the progress tracker.
	Callbacks []net.Callback

	SampleURL  string
	HTTPClient *http.Client

	Alerts AlertSink
	Logger *slog.Logger
}

// Progress describes the training run in flight.
type Progress struct {
	Architecture string  `json:"architecture"`
	Epoch        int     `json:"epoch"`
	Epochs       int     `json:"epochs"`
	Loss         float64 `json:"loss"`
}

// Session is safe for concurrent use. Loading data, training and predicting
// may overlap: a training run works on a snapshot of the dataset and the
// live model is only replaced once training and evaluation succeed.
type Session struct {
	opts Options
	log  *slog.Logger

	mu       sync.RWMutex
	records  []dataset.Record
	summary  dataset.ParseResult
	encoders *features.Encoders

	model atomic.Pointer[fraud.TrainedModel]

	trainMu  sync.Mutex
	training bool
	cancel   context.CancelFunc
	progress atomic.Pointer[Progress]
}

// New creates an empty session.
func New(opts Options) *Session {
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = fraud.DefaultTestRatio
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{opts: opts, log: opts.Logger}
}

// LoadCSV parses r and, if at least one row survives, replaces the dataset
// and rebuilds the encoders. The trained model is kept.
func (s *Session) LoadCSV(r io.Reader) (dataset.ParseResult, error) {
	res, err := dataset.Parse(r)
	if err != nil {
		return res, err
	}
	if res.RowCount == 0 {
		return res, fmt.Errorf("%w: csv contained no valid rows (%d skipped)", ErrNoDataset, res.SkippedCount)
	}

	enc := features.BuildEncoders(res.Records)

	s.mu.Lock()
	s.records = res.Records
	s.summary = res
	s.encoders = enc
	s.mu.Unlock()

	s.log.Info("dataset loaded",
		"rows", res.RowCount,
		"labeled", res.LabeledCount,
		"skipped", res.SkippedCount,
		"warnings", res.WarningCount,
		"features", enc.Width(),
	)
	return res, nil
}

// LoadSample loads the demo dataset, from SampleURL when set and from the
// bundled copy otherwise.
func (s *Session) LoadSample(ctx context.Context) (dataset.ParseResult, error) {
	data := dataset.Sample()
	if s.opts.SampleURL != "" {
		fetched, err := dataset.FetchSample(ctx, s.opts.HTTPClient, s.opts.SampleURL)
		if err != nil {
			return dataset.ParseResult{}, err
		}
		data = fetched
	}
	return s.LoadCSV(bytes.NewReader(data))
}

// Dataset returns the loaded records. The slice must not be modified.
func (s *Session) Dataset() []dataset.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Preview returns up to PreviewRows records from the start of the dataset.
func (s *Session) Preview() []dataset.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(PreviewRows, len(s.records))
	out := make([]dataset.Record, n)
	copy(out, s.records[:n])
	return out
}

// Encoders returns the encoders of the loaded dataset, or nil.
func (s *Session) Encoders() *features.Encoders {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoders
}

// ParseSummary returns the result of the last successful load.
func (s *Session) ParseSummary() dataset.ParseResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Model returns the live model, or nil before the first successful training.
func (s *Session) Model() *fraud.TrainedModel {
	return s.model.Load()
}

// Train fits a new model on the labeled part of the dataset. Only one run
// may be in flight; CancelTraining or ctx aborts it. On any failure the
// previous model stays live.
func (s *Session) Train(ctx context.Context, arch fraud.Architecture) (*fraud.TrainedModel, error) {
	s.trainMu.Lock()
	if s.training {
		s.trainMu.Unlock()
		return nil, ErrTrainingInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	s.training = true
	s.cancel = cancel
	s.trainMu.Unlock()

	defer func() {
		s.trainMu.Lock()
		s.training = false
		s.cancel = nil
		s.progress.Store(nil)
		s.trainMu.Unlock()
		cancel()
	}()

	s.mu.RLock()
	records, enc := s.records, s.encoders
	s.mu.RUnlock()
	if enc == nil {
		return nil, ErrNoDataset
	}

	seed := s.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	train, test, err := fraud.SplitTrainTest(dataset.Labeled(records), s.opts.TestRatio, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}

	epochs := s.opts.Epochs
	if epochs <= 0 {
		epochs = arch.DefaultEpochs()
	}
	s.progress.Store(&Progress{Architecture: string(arch), Epochs: epochs})
	report := net.Progress{Epochs: epochs, Report: func(epoch, total int, loss float64) {
		s.progress.Store(&Progress{Architecture: string(arch), Epoch: epoch, Epochs: total, Loss: loss})
	}}

	m, err := fraud.Train(ctx, train, test, enc, arch, fraud.TrainOptions{
		Seed:        seed,
		Epochs:      epochs,
		LogInterval: s.opts.LogInterval,
		Logger:      s.log,
		Callbacks:   append([]net.Callback{report}, s.opts.Callbacks...),
	})
	if err != nil {
		s.log.Warn("training failed, keeping previous model", "architecture", string(arch), "error", err)
		return nil, err
	}

	s.model.Store(m)
	return m, nil
}

// CancelTraining aborts the run in flight and reports whether there was one.
func (s *Session) CancelTraining() bool {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// IsTraining reports whether a training run is in flight.
func (s *Session) IsTraining() bool {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	return s.training
}

// TrainingProgress returns the progress of the run in flight, if any.
func (s *Session) TrainingProgress() (Progress, bool) {
	p := s.progress.Load()
	if p == nil {
		return Progress{}, false
	}
	return *p, true
}

// Predict scores r with the live model. A fraud verdict is handed to the
// alert sink after the prediction is made; the sink's outcome never changes
// the result.
func (s *Session) Predict(ctx context.Context, r dataset.Record) (fraud.Prediction, error) {
	m := s.Model()
	pred, err := fraud.Predict(r, m, nil)
	if err != nil {
		return pred, err
	}

	if pred.IsFraud() && s.opts.Alerts != nil {
		e := alert.NewEvent(r.TransactionID, r.UserID, r.Amount, r.Timestamp, r.Location, r.TransactionType, pred.Probability)
		queued := s.opts.Alerts.Notify(e)
		s.log.DebugContext(ctx, "fraud predicted", "alertId", e.ID, "riskLevel", string(e.RiskLevel), "queued", queued)
	}
	return pred, nil
}
