package alert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

func TestDetermineRiskLevel(t *testing.T) {
	tests := []struct {
		name   string
		p      float64
		amount float64
		hour   int
		want   RiskLevel
	}{
		{"very likely", 0.71, 100, 12, RiskHigh},
		{"likely and large", 0.45, 60000, 12, RiskHigh},
		{"likely at night", 0.45, 100, 3, RiskHigh},
		{"likely daytime", 0.45, 100, 12, RiskMedium},
		{"possible and large", 0.25, 60000, 12, RiskMedium},
		{"possible small", 0.25, 100, 2, RiskLow},
		{"boundary 0.7 is not high", 0.7, 100, 12, RiskMedium},
		{"unlikely", 0.1, 90000, 1, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineRiskLevel(tt.p, tt.amount, tt.hour); got != tt.want {
				t.Errorf("DetermineRiskLevel(%v, %v, %d) = %s, want %s", tt.p, tt.amount, tt.hour, got, tt.want)
			}
		})
	}
}

func TestPriorityAllows(t *testing.T) {
	tests := []struct {
		p    Priority
		want map[RiskLevel]bool
	}{
		{PriorityHigh, map[RiskLevel]bool{RiskHigh: true, RiskMedium: false, RiskLow: false}},
		{PriorityMediumHigh, map[RiskLevel]bool{RiskHigh: true, RiskMedium: true, RiskLow: false}},
		{PriorityAll, map[RiskLevel]bool{RiskHigh: true, RiskMedium: true, RiskLow: true}},
	}
	for _, tt := range tests {
		for level, want := range tt.want {
			if got := tt.p.Allows(level); got != want {
				t.Errorf("%s.Allows(%s) = %v, want %v", tt.p, level, got, want)
			}
		}
	}

	if p, err := ParsePriority(" Medium-High "); err != nil || p != PriorityMediumHigh {
		t.Errorf("ParsePriority = %q, %v", p, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestNewEvent(t *testing.T) {
	ts := time.Date(2024, 3, 9, 2, 0, 0, 0, time.UTC)
	e := NewEvent("T1", "U1", 75000, ts, "Delhi", "Transfer", 0.5)

	if e.ID == "" || e.ID == NewEvent("T1", "U1", 75000, ts, "Delhi", "Transfer", 0.5).ID {
		t.Error("each event should get a fresh id")
	}
	if e.RiskLevel != RiskHigh {
		t.Errorf("RiskLevel = %s, want high", e.RiskLevel)
	}
}

func TestSubjectAndBody(t *testing.T) {
	e := NewEvent("T77", "", 1234567.5, time.Date(2024, 3, 9, 2, 5, 0, 0, time.UTC), "", "Online", 0.92)

	if got, want := Subject(e), "HIGH Risk Transaction Alert - ₹12,34,567.50"; got != want {
		t.Errorf("Subject = %q, want %q", got, want)
	}
	body := Body(e)
	for _, want := range []string{"₹12,34,567.50", "Online", "92.0%", "T77", "Location:           -"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		0:        "0.00",
		999:      "999.00",
		1000:     "1,000.00",
		100000:   "1,00,000.00",
		25000.25: "25,000.25",
		-4500:    "-4,500.00",
	}
	for in, want := range tests {
		if got := formatAmount(in); got != want {
			t.Errorf("formatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
	err    error
	delay  time.Duration
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, e Event) error {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func highEvent(id string) Event {
	return NewEvent(id, "U", 90000, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "Pune", "Transfer", 0.95)
}

func TestNotifier_DeliversAndDrains(t *testing.T) {
	d := &recordingDispatcher{}
	n := NewNotifier(d, Settings{Priority: PriorityAll}, nil)

	for i := 0; i < 5; i++ {
		if !n.Notify(highEvent(fmt.Sprintf("T%d", i))) {
			t.Fatalf("alert %d was not accepted", i)
		}
	}
	n.Close()

	if d.count() != 5 {
		t.Errorf("dispatched %d alerts, want 5", d.count())
	}
	if s := n.Stats(); s.Sent != 5 || s.Dropped != 0 {
		t.Errorf("stats = %+v", s)
	}
	if n.Notify(highEvent("late")) {
		t.Error("Notify after Close should be rejected")
	}
	n.Close()
}

func TestNotifier_FiltersByPriority(t *testing.T) {
	d := &recordingDispatcher{}
	n := NewNotifier(d, Settings{Priority: PriorityHigh}, nil)

	low := NewEvent("T1", "", 100, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "", "P2P", 0.55)
	if low.RiskLevel != RiskMedium {
		t.Fatalf("fixture risk = %s", low.RiskLevel)
	}
	if n.Notify(low) {
		t.Error("medium alert should be filtered by high priority")
	}
	n.Close()
	if d.count() != 0 {
		t.Errorf("dispatched %d alerts, want 0", d.count())
	}
	if s := n.Stats(); s.Dropped != 1 {
		t.Errorf("dropped = %d, want filtered alert counted", s.Dropped)
	}
}

func TestNotifier_Deduplicates(t *testing.T) {
	d := &recordingDispatcher{}
	n := NewNotifier(d, DefaultSettings(), nil)

	if !n.Notify(highEvent("T1")) {
		t.Fatal("first alert should be accepted")
	}
	if n.Notify(highEvent("T1")) {
		t.Error("second alert for the same transaction should be suppressed")
	}
	n.Close()
	if d.count() != 1 {
		t.Errorf("dispatched %d alerts, want 1", d.count())
	}
}

func TestNotifier_RateLimit(t *testing.T) {
	d := &recordingDispatcher{}
	n := NewNotifier(d, Settings{Priority: PriorityAll, RatePerMinute: 3}, nil)

	accepted := 0
	for i := 0; i < 10; i++ {
		if n.Notify(highEvent(fmt.Sprintf("T%d", i))) {
			accepted++
		}
	}
	n.Close()
	if accepted != 3 {
		t.Errorf("accepted %d alerts, want burst of 3", accepted)
	}
	if s := n.Stats(); s.Dropped != 7 {
		t.Errorf("dropped = %d, want 7", s.Dropped)
	}
}

// gateDispatcher blocks every dispatch until release is closed.
type gateDispatcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu  sync.Mutex
	ids []string
}

func (d *gateDispatcher) Dispatch(ctx context.Context, e Event) error {
	d.once.Do(func() { close(d.started) })
	<-d.release
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, e.TransactionID)
	return nil
}

func (d *gateDispatcher) delivered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

func TestNotifier_RetryAfterQueueFull(t *testing.T) {
	d := &gateDispatcher{started: make(chan struct{}), release: make(chan struct{})}
	n := NewNotifier(d, Settings{Priority: PriorityAll, QueueSize: 1}, nil)

	if !n.Notify(highEvent("A")) {
		t.Fatal("A should be accepted")
	}
	<-d.started
	if !n.Notify(highEvent("B")) {
		t.Fatal("B should fill the queue")
	}
	if n.Notify(highEvent("C")) {
		t.Fatal("C should be dropped while the queue is full")
	}

	close(d.release)
	deadline := time.Now().Add(5 * time.Second)
	for len(d.delivered()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("queued alerts were not delivered")
		}
		time.Sleep(time.Millisecond)
	}

	if !n.Notify(highEvent("C")) {
		t.Error("retry of a dropped alert should not be treated as a duplicate")
	}
	n.Close()

	if got := strings.Join(d.delivered(), ","); got != "A,B,C" {
		t.Errorf("delivered = %s, want A,B,C", got)
	}
	if s := n.Stats(); s.Sent != 3 || s.Dropped != 1 {
		t.Errorf("stats = %+v, want 3 sent and 1 dropped", s)
	}
}

func TestNotifier_FailuresAndTimeout(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("smtp down")}
	n := NewNotifier(d, DefaultSettings(), nil)
	n.Notify(highEvent("T1"))
	n.Close()
	if s := n.Stats(); s.Failed != 1 || s.Sent != 0 {
		t.Errorf("stats = %+v, want one failure", s)
	}

	slow := &recordingDispatcher{delay: time.Second}
	n = NewNotifier(slow, Settings{Timeout: 20 * time.Millisecond}, nil)
	n.Notify(highEvent("T2"))
	start := time.Now()
	n.Close()
	if time.Since(start) > 500*time.Millisecond {
		t.Error("dispatch should be bounded by the timeout")
	}
	if s := n.Stats(); s.Failed != 1 {
		t.Errorf("stats = %+v, want timed-out dispatch counted as failure", s)
	}
}

func TestMailgunDispatcher(t *testing.T) {
	var (
		mu       sync.Mutex
		subjects []string
		to       []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		if r.FormValue("subject") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		subjects = append(subjects, r.FormValue("subject"))
		to = append(to, r.FormValue("to"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"<20240101.1@mg.example.com>","message":"Queued. Thank you."}`)
	}))
	defer srv.Close()

	mg := mailgun.NewMailgun("mg.example.com", "key-test")
	mg.SetAPIBase(srv.URL + "/v3")

	d := NewMailgunDispatcher(mg, "alerts@mg.example.com", "ops@example.com", nil)
	e := highEvent("T9")
	if err := d.Dispatch(context.Background(), e); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(subjects) != 1 || subjects[0] != Subject(e) {
		t.Errorf("subjects = %v, want [%q]", subjects, Subject(e))
	}
	if len(to) != 1 || to[0] != "ops@example.com" {
		t.Errorf("to = %v", to)
	}
}

func TestLogDispatcher(t *testing.T) {
	if err := (LogDispatcher{}).Dispatch(context.Background(), highEvent("T1")); err != nil {
		t.Errorf("LogDispatcher returned %v", err)
	}
}
