package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_SeriesAreShared(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("x_total", "x", "")
	b := r.Counter("x_total", "x", "")
	a.Inc()
	b.Add(2)
	if a != b || a.Value() != 3 {
		t.Fatalf("expected shared counter with value 3, got %d", a.Value())
	}
}

func TestRegistry_Render(t *testing.T) {
	r := NewRegistry()
	r.Counter("events_total", "Events", Labels("category", "greeting")).Inc()
	r.Counter("events_total", "Events", Labels("category", "unhandled")).Add(2)
	g := r.Gauge("active", "Active", "")
	g.Inc()
	g.Inc()
	g.Dec()
	h := r.Histogram("latency_seconds", "Latency", "", []float64{1, 0.5})
	h.Observe(0.2)
	h.Observe(0.7)
	h.Observe(3)

	rec := httptest.NewRecorder()
	r.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()

	for _, want := range []string{
		"# TYPE events_total counter\n",
		`events_total{category="greeting"} 1` + "\n",
		`events_total{category="unhandled"} 2` + "\n",
		"# TYPE active gauge\nactive 1\n",
		`latency_seconds_bucket{le="0.5"} 1` + "\n",
		`latency_seconds_bucket{le="1"} 2` + "\n",
		`latency_seconds_bucket{le="+Inf"} 3` + "\n",
		"latency_seconds_count 3\n",
		"sambot_uptime_seconds ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "# HELP events_total") != 1 {
		t.Errorf("expected a single HELP line per metric name:\n%s", out)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestLabels(t *testing.T) {
	if got := Labels("a", "1", "b", "two"); got != `a="1",b="two"` {
		t.Fatalf("Labels = %s", got)
	}
	if got := Labels(); got != "" {
		t.Fatalf("Labels() = %q", got)
	}
}
