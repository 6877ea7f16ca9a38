// Package metrics exposes counters for the download pipeline and the HTTP
// surface in Prometheus text format, without pulling in a client library.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/model"
)

// Metrics holds all application metrics.
type Metrics struct {
	mu sync.RWMutex

	requestCount    map[string]uint64
	requestDuration map[string]*Histogram

	jobCounters map[string]uint64

	// subscriberCount is read at scrape time.
	subscriberCount func() int

	startTime time.Time
}

func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]uint64),
		requestDuration: make(map[string]*Histogram),
		jobCounters:     make(map[string]uint64),
		startTime:       time.Now(),
	}
}

// SetSubscriberGauge registers the event subscriber count read at scrape time.
func (m *Metrics) SetSubscriberGauge(fn func() int) {
	m.mu.Lock()
	m.subscriberCount = fn
	m.mu.Unlock()
}

// Histogram tracks value distributions.
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	buckets    []float64
	bucketVals []uint64
}

func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

// Observe records a value in seconds.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, path string, duration time.Duration) {
	key := method + " " + path

	m.mu.Lock()
	m.requestCount[key]++
	h, ok := m.requestDuration[key]
	if !ok {
		h = NewHistogram()
		m.requestDuration[key] = h
	}
	m.mu.Unlock()

	h.Observe(duration.Seconds())
}

// Watch consumes job events from the bridge and counts lifecycle
// transitions. It returns when ctx is cancelled.
func (m *Metrics) Watch(ctx context.Context, bridge *events.Bridge) {
	sub := bridge.Subscribe(uuid.Nil)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Type != model.EventState || ev.Job == nil {
				continue
			}
			switch ev.Job.Status {
			case model.StatusRunning:
				m.incJob("downloads_started_total")
			case model.StatusCompleted:
				m.incJob("downloads_completed_total")
			case model.StatusFailed:
				m.incJob("downloads_failed_total")
			case model.StatusCancelled:
				m.incJob("downloads_cancelled_total")
			}
		}
	}
}

func (m *Metrics) incJob(name string) {
	m.mu.Lock()
	m.jobCounters[name]++
	m.mu.Unlock()
}

// JobCount returns a job lifecycle counter, for tests.
func (m *Metrics) JobCount(name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobCounters[name]
}

// Handler serves the metrics in Prometheus text exposition format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(m.render()))
	}
}

func (m *Metrics) render() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	b.WriteString("# TYPE process_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "process_uptime_seconds %.0f\n", time.Since(m.startTime).Seconds())

	jobNames := make([]string, 0, len(m.jobCounters))
	for name := range m.jobCounters {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)
	for _, name := range jobNames {
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		fmt.Fprintf(&b, "%s %d\n", name, m.jobCounters[name])
	}

	if m.subscriberCount != nil {
		b.WriteString("# TYPE event_subscribers gauge\n")
		fmt.Fprintf(&b, "event_subscribers %d\n", m.subscriberCount())
	}

	keys := make([]string, 0, len(m.requestCount))
	for key := range m.requestCount {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	b.WriteString("# TYPE http_requests_total counter\n")
	for _, key := range keys {
		parts := strings.SplitN(key, " ", 2)
		fmt.Fprintf(&b, "http_requests_total{method=%q,path=%q} %d\n",
			parts[0], parts[1], m.requestCount[key])
	}

	for _, key := range keys {
		h, ok := m.requestDuration[key]
		if !ok {
			continue
		}
		parts := strings.SplitN(key, " ", 2)
		h.mu.Lock()
		fmt.Fprintf(&b, "http_request_duration_seconds_count{method=%q,path=%q} %d\n",
			parts[0], parts[1], h.count)
		fmt.Fprintf(&b, "http_request_duration_seconds_sum{method=%q,path=%q} %f\n",
			parts[0], parts[1], h.sum)
		h.mu.Unlock()
	}

	return b.String()
}
