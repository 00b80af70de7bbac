package alert

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Settings control which alerts a Notifier delivers and how often.
type Settings struct {
	Priority      Priority
	RatePerMinute int
	DedupeTTL     time.Duration
	Timeout       time.Duration
	QueueSize     int
}

// DefaultSettings deliver high-risk alerts only.
func DefaultSettings() Settings {
	return Settings{
		Priority:      PriorityHigh,
		RatePerMinute: 30,
		DedupeTTL:     10 * time.Minute,
		Timeout:       10 * time.Second,
		QueueSize:     64,
	}
}

// Notifier delivers alerts on a background goroutine. Notify never blocks.
// Alerts below the priority, duplicates within DedupeTTL, alerts over the
// rate limit and alerts that find the queue full are dropped and counted.
type Notifier struct {
	dispatcher Dispatcher
	settings   Settings
	log        *slog.Logger

	limiter *rate.Limiter
	seen    *cache.Cache

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewNotifier starts a notifier. Call Close to stop it.
func NewNotifier(d Dispatcher, s Settings, logger *slog.Logger) *Notifier {
	def := DefaultSettings()
	if s.Priority == "" {
		s.Priority = def.Priority
	}
	if s.RatePerMinute <= 0 {
		s.RatePerMinute = def.RatePerMinute
	}
	if s.DedupeTTL <= 0 {
		s.DedupeTTL = def.DedupeTTL
	}
	if s.Timeout <= 0 {
		s.Timeout = def.Timeout
	}
	if s.QueueSize <= 0 {
		s.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &Notifier{
		dispatcher: d,
		settings:   s,
		log:        logger,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.RatePerMinute)), s.RatePerMinute),
		seen:       cache.New(s.DedupeTTL, 2*s.DedupeTTL),
		queue:      make(chan Event, s.QueueSize),
		done:       make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues e for delivery and reports whether it was accepted. An alert
// dropped after the duplicate check releases its key, so a retry for the same
// transaction is not mistaken for a duplicate.
func (n *Notifier) Notify(e Event) bool {
	if !n.settings.Priority.Allows(e.RiskLevel) {
		n.log.Debug("alert below priority", "alertId", e.ID, "riskLevel", string(e.RiskLevel), "priority", string(n.settings.Priority))
		n.dropped.Add(1)
		return false
	}
	key := e.dedupeKey()
	if err := n.seen.Add(key, e.ID, cache.DefaultExpiration); err != nil {
		n.log.Debug("duplicate alert suppressed", "alertId", e.ID, "transactionId", e.TransactionID)
		n.dropped.Add(1)
		return false
	}
	if !n.limiter.Allow() {
		n.log.Warn("alert rate limit reached, dropping alert", "alertId", e.ID)
		n.drop(key)
		return false
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.drop(key)
		return false
	}
	select {
	case n.queue <- e:
		return true
	default:
		n.log.Warn("alert queue full, dropping alert", "alertId", e.ID)
		n.drop(key)
		return false
	}
}

func (n *Notifier) drop(key string) {
	n.seen.Delete(key)
	n.dropped.Add(1)
}

func (n *Notifier) run() {
	defer close(n.done)
	for e := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.settings.Timeout)
		err := n.dispatcher.Dispatch(ctx, e)
		cancel()
		if err != nil {
			n.failed.Add(1)
			n.log.Error("alert dispatch failed", "alertId", e.ID, "error", err)
			continue
		}
		n.sent.Add(1)
	}
}

// Close stops accepting alerts and waits for queued ones to be dispatched.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

// Stats are delivery counters since the notifier started.
type Stats struct {
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

func (n *Notifier) Stats() Stats {
	return Stats{Sent: n.sent.Load(), Dropped: n.dropped.Load(), Failed: n.failed.Load()}
}
