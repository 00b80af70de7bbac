// Package stream replays a loaded dataset through the live model at a fixed
// interval, simulating a real-time transaction feed.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/fraud"
)

var (
	ErrAlreadyRunning = errors.New("stream: already running")
	ErrNoData         = errors.New("stream: no dataset loaded")
)

// Source provides the records to replay and scores them.
type Source interface {
	Dataset() []dataset.Record
	Model() *fraud.TrainedModel
	Predict(ctx context.Context, r dataset.Record) (fraud.Prediction, error)
}

// Row is one scored transaction of the feed.
type Row struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Time        time.Time `json:"time"`
	Type        string    `json:"type"`
	Label       string    `json:"pred"`
	Probability float64   `json:"prob"`
	ScoredAt    time.Time `json:"scoredAt"`
}

// Runner keeps the newest Capacity rows, newest first.
type Runner struct {
	src      Source
	interval time.Duration
	capacity int
	log      *slog.Logger

	mu     sync.Mutex
	rows   []Row
	next   int
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped runner.
func New(src Source, interval time.Duration, capacity int, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if capacity <= 0 {
		capacity = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{src: src, interval: interval, capacity: capacity, log: logger}
}

// Start begins scoring one record per interval until Stop is called or ctx
// is done. A model and a non-empty dataset are required.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		select {
		case <-r.done:
			r.cancel()
			r.cancel, r.done = nil, nil
		default:
			return ErrAlreadyRunning
		}
	}
	if r.src.Model() == nil {
		return fraud.ErrUntrainedModel
	}
	if len(r.src.Dataset()) == 0 {
		return ErrNoData
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)

	r.log.Info("stream started", "interval", r.interval.String(), "capacity", r.capacity)
	return nil
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Step(ctx); err != nil {
				r.log.Warn("stream tick failed", "error", err)
			}
		}
	}
}

// Stop halts the feed and waits for the loop to exit. It reports whether the
// feed was running. Scored rows are kept.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	r.log.Info("stream stopped")
	return true
}

// Running reports whether the feed is active. A feed whose parent context
// ended is no longer running even if Stop was never called.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Step scores the next record, cycling through the dataset.
func (r *Runner) Step(ctx context.Context) (Row, error) {
	records := r.src.Dataset()
	if len(records) == 0 {
		return Row{}, ErrNoData
	}

	r.mu.Lock()
	idx := r.next
	r.next++
	r.mu.Unlock()

	rec := records[idx%len(records)]
	pred, err := r.src.Predict(ctx, rec)
	if err != nil {
		return Row{}, err
	}

	id := rec.TransactionID
	if id == "" {
		id = strconv.Itoa(idx + 1)
	}
	row := Row{
		ID:          id,
		Amount:      rec.Amount,
		Time:        rec.Timestamp,
		Type:        rec.TransactionType,
		Label:       pred.Label,
		Probability: pred.Probability,
		ScoredAt:    time.Now(),
	}

	r.mu.Lock()
	r.rows = append([]Row{row}, r.rows...)
	if len(r.rows) > r.capacity {
		r.rows = r.rows[:r.capacity]
	}
	r.mu.Unlock()
	return row, nil
}

// Rows returns a copy of the scored rows, newest first.
func (r *Runner) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Row, len(r.rows))
	copy(out, r.rows)
	return out
}

// Reset clears the scored rows and restarts from the first record.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = nil
	r.next = 0
}
