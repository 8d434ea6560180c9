// Package metrics exposes sambot's counters, gauges and histograms in the
// Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default is the process-wide registry the predefined metrics live in.
var Default = NewRegistry()

// Registry holds named series. Series are created on first use and live
// for the life of the registry.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	started    time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		started:    time.Now(),
	}
}

// Counter is a monotonically increasing value.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	series
	mu     sync.Mutex
	bounds []float64
	counts []int64
	count  int64
	sum    float64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

type series struct {
	name   string
	help   string
	labels string
}

func (s series) key() string { return s.name + "{" + s.labels + "}" }

// Labels renders label pairs as `k="v",...` in the given order.
func Labels(kv ...string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%q", kv[i], kv[i+1])
	}
	return sb.String()
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name, help, labels string) *Counter {
	s := series{name: name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[s.key()]; ok {
		return c
	}
	c := &Counter{series: s}
	r.counters[s.key()] = c
	return c
}

// Gauge returns the named gauge, creating it on first use.
func (r *Registry) Gauge(name, help, labels string) *Gauge {
	s := series{name: name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[s.key()]; ok {
		return g
	}
	g := &Gauge{series: s}
	r.gauges[s.key()] = g
	return g
}

// Histogram returns the named histogram, creating it with the given upper
// bounds. A +Inf bucket is always present.
func (r *Registry) Histogram(name, help, labels string, bounds []float64) *Histogram {
	s := series{name: name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[s.key()]; ok {
		return h
	}
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	if len(b) == 0 || !math.IsInf(b[len(b)-1], 1) {
		b = append(b, math.Inf(1))
	}
	h := &Histogram{series: s, bounds: b, counts: make([]int64, len(b))}
	r.histograms[s.key()] = h
	return h
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	}
}

// WriteTo renders every series, sorted by name then labels.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP sambot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE sambot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "sambot_uptime_seconds %d\n", int64(time.Since(r.started).Seconds()))

	r.mu.RLock()
	counters := sortedSeries(r.counters)
	gauges := sortedSeries(r.gauges)
	histograms := sortedSeries(r.histograms)
	r.mu.RUnlock()

	var last string
	for _, c := range counters {
		writeHeader(&sb, &last, c.series, "counter")
		fmt.Fprintf(&sb, "%s %d\n", sample(c.name, c.labels), c.Value())
	}
	for _, g := range gauges {
		writeHeader(&sb, &last, g.series, "gauge")
		fmt.Fprintf(&sb, "%s %d\n", sample(g.name, g.labels), g.Value())
	}
	for _, h := range histograms {
		writeHeader(&sb, &last, h.series, "histogram")
		h.mu.Lock()
		for i, le := range h.bounds {
			bound := "+Inf"
			if !math.IsInf(le, 1) {
				bound = fmt.Sprintf("%g", le)
			}
			labels := Labels("le", bound)
			if h.labels != "" {
				labels = h.labels + "," + labels
			}
			fmt.Fprintf(&sb, "%s %d\n", sample(h.name+"_bucket", labels), h.counts[i])
		}
		fmt.Fprintf(&sb, "%s %f\n", sample(h.name+"_sum", h.labels), h.sum)
		fmt.Fprintf(&sb, "%s %d\n", sample(h.name+"_count", h.labels), h.count)
		h.mu.Unlock()
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

type named interface {
	*Counter | *Gauge | *Histogram
}

func sortedSeries[T named](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func writeHeader(sb *strings.Builder, last *string, s series, kind string) {
	if *last == s.name {
		return
	}
	*last = s.name
	fmt.Fprintf(sb, "# HELP %s %s\n", s.name, s.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", s.name, kind)
}

func sample(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

var (
	TasksFailed      = Default.Counter("sambot_tasks_failed_total", "Background snippet tasks that ended in failure", "")
	TasksCompleted   = Default.Counter("sambot_tasks_completed_total", "Background snippet tasks that finished", "")
	TasksActive      = Default.Gauge("sambot_tasks_active", "Background snippet tasks currently running", "")
	RelaySubmissions = Default.Counter("sambot_relay_submissions_total", "Snippets accepted by the relay", "")
	RelayFailures    = Default.Counter("sambot_relay_failures_total", "Snippet submissions rejected or failed", "")

	RelayLatency = Default.Histogram("sambot_relay_latency_seconds", "Relay submission latency in seconds", "",
		[]float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
)

// EventsTotal returns the counter for inbound message events of a category.
func EventsTotal(category string) *Counter {
	return Default.Counter("sambot_events_total", "Inbound message events by category", Labels("category", category))
}
