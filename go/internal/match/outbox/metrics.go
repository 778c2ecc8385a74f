package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/buzzer/go/internal/models"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordProcessed(kind string, success bool, duration time.Duration)
	RecordDropped(kind string)
	RecordQueueDepth(depth int)
	RecordPublish(eventType string, success bool, duration time.Duration)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordProcessed(kind string, success bool, duration time.Duration)    {}
func (n *NoOpMetricsCollector) RecordDropped(kind string)                                             {}
func (n *NoOpMetricsCollector) RecordQueueDepth(depth int)                                            {}
func (n *NoOpMetricsCollector) RecordPublish(eventType string, success bool, duration time.Duration) {}

// CounterMetrics keeps in-process totals, exported through the health endpoint.
type CounterMetrics struct {
	mu         sync.Mutex
	succeeded  map[string]uint64
	failed     map[string]uint64
	dropped    map[string]uint64
	published  uint64
	publishErr uint64
	maxDepth   int
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{
		succeeded: make(map[string]uint64),
		failed:    make(map[string]uint64),
		dropped:   make(map[string]uint64),
	}
}

func (m *CounterMetrics) RecordProcessed(kind string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.succeeded[kind]++
	} else {
		m.failed[kind]++
	}
}

func (m *CounterMetrics) RecordDropped(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[kind]++
}

func (m *CounterMetrics) RecordQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth > m.maxDepth {
		m.maxDepth = depth
	}
}

func (m *CounterMetrics) RecordPublish(eventType string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.published++
	} else {
		m.publishErr++
	}
}

// Snapshot returns a copy of the counters.
func (m *CounterMetrics) Snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"succeeded":       copyCounts(m.succeeded),
		"failed":          copyCounts(m.failed),
		"dropped":         copyCounts(m.dropped),
		"published":       m.published,
		"publish_errors":  m.publishErr,
		"max_queue_depth": m.maxDepth,
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MetricPublisher wraps an EventPublisher with metrics collection
type MetricPublisher struct {
	publisher EventPublisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher EventPublisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, code string, event models.MatchEvent) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, code, event)

	p.metrics.RecordPublish(event.Type, err == nil, time.Since(start))
	return err
}
