// Package telemetry records HTTP and prediction metrics and serves them in
// the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

var (
	defaultDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	defaultProbabilityBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
)

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram stores non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// labeledHistograms is a set of histograms keyed by a "|"-joined label tuple.
type labeledHistograms struct {
	mu         sync.RWMutex
	boundaries []float64
	items      map[string]*histogram
}

func newLabeledHistograms(boundaries []float64) *labeledHistograms {
	return &labeledHistograms{boundaries: boundaries, items: make(map[string]*histogram)}
}

func (s *labeledHistograms) get(key string) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.items[key]; !ok {
		h = newHistogram(s.boundaries)
		s.items[key] = h
	}
	return h
}

func (s *labeledHistograms) sortedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabelsKey builds the key for an HTTP duration series.
func LabelsKey(method, route, statusCode string) string {
	return method + "|" + route + "|" + statusCode
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics is the process-wide metric set for the prediction server.
type Metrics struct {
	requests       *labeledHistograms
	activeRequests int64

	predictions   sync.Map // label string -> *int64
	probabilities *histogram
	failures      int64

	gaugeMu sync.RWMutex
	gauges  []gaugeFunc
}

type gaugeFunc struct {
	name string
	help string
	fn   func() float64
}

func New() *Metrics {
	return &Metrics{
		requests:      newLabeledHistograms(defaultDurationBuckets),
		probabilities: newHistogram(defaultProbabilityBuckets),
	}
}

// RegisterGauge adds a gauge whose value is read at scrape time.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	m.gaugeMu.Lock()
	defer m.gaugeMu.Unlock()
	m.gauges = append(m.gauges, gaugeFunc{name: name, help: help, fn: fn})
}

// ObservePrediction counts a served prediction and records its probability.
func (m *Metrics) ObservePrediction(label int, probability float64) {
	key := strconv.Itoa(label)
	v, _ := m.predictions.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), 1)
	m.probabilities.Observe(probability)
}

// ObserveFailure counts a prediction that could not be produced.
func (m *Metrics) ObserveFailure() {
	atomic.AddInt64(&m.failures, 1)
}

// PredictionCount returns how many predictions carried label.
func (m *Metrics) PredictionCount(label int) int64 {
	v, ok := m.predictions.Load(strconv.Itoa(label))
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// RequestCount returns the number of requests recorded for a series.
func (m *Metrics) RequestCount(method, route, statusCode string) int64 {
	return m.requests.get(LabelsKey(method, route, statusCode)).Count()
}

// Middleware records request duration by method, route and status.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.activeRequests, 1)
			defer atomic.AddInt64(&m.activeRequests, -1)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := strconv.Itoa(c.Response().Status)
			m.requests.get(LabelsKey(c.Request().Method, route, status)).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the metric set at /metrics.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeHeader(&b, "http_server_request_duration_seconds", "Duration of HTTP requests in seconds.", "histogram")
		for _, key := range m.requests.sortedKeys() {
			parts := strings.SplitN(key, "|", 3)
			if len(parts) != 3 {
				continue
			}
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, m.requests.get(key))
		}
		b.WriteByte('\n')

		writeHeader(&b, "http_server_active_requests", "Number of in-flight HTTP requests.", "gauge")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&m.activeRequests))

		writeHeader(&b, "readmission_predictions_total", "Predictions served by predicted label.", "counter")
		var labels []string
		m.predictions.Range(func(k, _ any) bool {
			labels = append(labels, k.(string))
			return true
		})
		sort.Strings(labels)
		for _, l := range labels {
			v, _ := m.predictions.Load(l)
			fmt.Fprintf(&b, "readmission_predictions_total{label=%q} %d\n", l, atomic.LoadInt64(v.(*int64)))
		}
		b.WriteByte('\n')

		writeHeader(&b, "readmission_prediction_failures_total", "Prediction requests that failed after decoding.", "counter")
		fmt.Fprintf(&b, "readmission_prediction_failures_total %d\n\n", atomic.LoadInt64(&m.failures))

		writeHeader(&b, "readmission_probability", "Predicted readmission probability.", "histogram")
		writeHistogram(&b, "readmission_probability", "", m.probabilities)
		b.WriteByte('\n')

		m.gaugeMu.RLock()
		for _, g := range m.gauges {
			writeHeader(&b, g.name, g.help, "gauge")
			fmt.Fprintf(&b, "%s %g\n\n", g.name, g.fn())
		}
		m.gaugeMu.RUnlock()

		c.Response().Header().Set(echo.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
		return c.String(http.StatusOK, b.String())
	}
}

// ---------------------------------------------------------------------------
// Prometheus format helpers
// ---------------------------------------------------------------------------

func writeHeader(b *strings.Builder, name, help, typ string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()

	prefix, suffix := "", ""
	if labels != "" {
		prefix = labels + ","
		suffix = "{" + labels + "}"
	}
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%sle=\"%g\"} %d\n", name, prefix, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", name, prefix, total)
	fmt.Fprintf(b, "%s_sum%s %g\n", name, suffix, h.Sum())
	fmt.Fprintf(b, "%s_count%s %d\n", name, suffix, total)
}
