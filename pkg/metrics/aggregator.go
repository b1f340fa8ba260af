// Package metrics keeps a bounded in-memory history of provider outcomes and
// summarizes it per provider over a trailing window.
package metrics

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/datagata/gata/pkg/models"
)

const (
	// DefaultCapacity bounds the history; the oldest outcome is evicted first.
	DefaultCapacity = 10000
	// DefaultWindow is the trailing window a summary covers.
	DefaultWindow = time.Hour
	// RawLimit is how many of the most recent in-window outcomes a summary carries.
	RawLimit = 100
)

// Observer is notified of every recorded outcome.
type Observer interface {
	Observe(models.ProviderOutcome)
}

// Aggregator is a fixed-capacity ring buffer of outcomes. It is safe for
// concurrent use. History does not survive a restart.
type Aggregator struct {
	mu    sync.Mutex
	buf   []models.ProviderOutcome
	start int
	size  int

	observers []Observer
	now       func() time.Time
}

// NewAggregator returns an Aggregator holding up to capacity outcomes.
// A non-positive capacity uses DefaultCapacity.
func NewAggregator(capacity int, observers ...Observer) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		buf:       make([]models.ProviderOutcome, capacity),
		observers: observers,
		now:       time.Now,
	}
}

// Record appends o, evicting the single oldest outcome when full.
func (a *Aggregator) Record(o models.ProviderOutcome) {
	if o.Timestamp.IsZero() {
		o.Timestamp = a.now()
	}

	a.mu.Lock()
	capacity := len(a.buf)
	if a.size < capacity {
		a.buf[(a.start+a.size)%capacity] = o
		a.size++
	} else {
		a.buf[a.start] = o
		a.start = (a.start + 1) % capacity
	}
	a.mu.Unlock()

	for _, obs := range a.observers {
		obs.Observe(o)
	}
}

// Len returns how many outcomes are held.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// snapshot copies the buffer oldest-first.
func (a *Aggregator) snapshot() []models.ProviderOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.ProviderOutcome, a.size)
	for i := 0; i < a.size; i++ {
		out[i] = a.buf[(a.start+i)%len(a.buf)]
	}
	return out
}

type acc struct {
	count      int
	latency    float64
	cost       float64
	successful int
	latencies  []float64
}

// Summarize reports per-provider statistics over outcomes newer than
// now - window. A non-positive window uses DefaultWindow. Providers appear in
// the order their first in-window outcome was recorded.
func (a *Aggregator) Summarize(window time.Duration) models.MetricsSummary {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := a.now().Add(-window)

	var recent []models.ProviderOutcome
	for _, o := range a.snapshot() {
		if o.Timestamp.After(cutoff) {
			recent = append(recent, o)
		}
	}

	var order []string
	byProvider := make(map[string]*acc)
	for _, o := range recent {
		s, ok := byProvider[o.Provider]
		if !ok {
			s = &acc{}
			byProvider[o.Provider] = s
			order = append(order, o.Provider)
		}
		s.count++
		s.latency += o.LatencyMs
		s.cost += o.CostUSD
		if o.Success {
			s.successful++
		}
		s.latencies = append(s.latencies, o.LatencyMs)
	}

	summary := make([]models.ProviderStats, 0, len(order))
	for _, p := range order {
		s := byProvider[p]
		n := float64(s.count)
		summary = append(summary, models.ProviderStats{
			Provider:     p,
			Queries:      s.count,
			AvgLatencyMs: roundHalfUp(s.latency / n),
			TotalCostUSD: roundTo(s.cost, 4),
			SuccessRate:  roundTo(float64(s.successful)/n*100, 2),
			P95LatencyMs: P95(s.latencies),
		})
	}

	raw := recent
	if len(raw) > RawLimit {
		raw = raw[len(raw)-RawLimit:]
	}
	if raw == nil {
		raw = []models.ProviderOutcome{}
	}

	return models.MetricsSummary{
		TimeRange:    FormatWindow(window),
		TotalQueries: len(recent),
		Summary:      summary,
		Raw:          raw,
	}
}

// P95 is the nearest-rank 95th percentile, rounded to a whole number.
// It returns 0 for no values and does not modify values.
func P95(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	return roundHalfUp(sorted[idx])
}

// FormatWindow renders d the short way: 1h, 30m, 1h30m, 45s.
func FormatWindow(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
