package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
)

type HealthStatus struct {
	Healthy           bool
	LastEventTime     time.Time
	EventsProcessed   uint64
	PendingEvents     int
	DatabaseConnected bool
	NATSConnected     bool
	WorkerRunning     bool
	Errors            []string
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Pinger is satisfied by stores that can verify their backend connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type WorkerHealthChecker struct {
	worker   *Worker
	store    Pinger
	natsConn *nats.Conn
	metrics  *CounterMetrics
	// Pending records above this count are reported as a warning.
	backlogThreshold int
}

// NewWorkerHealthChecker builds a checker; store, natsConn and metrics may be nil.
func NewWorkerHealthChecker(worker *Worker, store Pinger, natsConn *nats.Conn, metrics *CounterMetrics) *WorkerHealthChecker {
	return &WorkerHealthChecker{
		worker:           worker,
		store:            store,
		natsConn:         natsConn,
		metrics:          metrics,
		backlogThreshold: worker.config.QueueSize / 2,
	}
}

func (h *WorkerHealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.worker.Stats()
	status.PendingEvents = h.worker.Pending()

	status.DatabaseConnected = true
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			status.DatabaseConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
	}

	if h.natsConn != nil {
		status.NATSConnected = h.natsConn.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.WorkerRunning = h.worker.Running()
	if !status.WorkerRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "worker not running")
	}

	if status.PendingEvents > h.backlogThreshold {
		status.Errors = append(status.Errors, fmt.Sprintf("high pending record count: %d", status.PendingEvents))
	}

	return status
}

func (h *WorkerHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	response := map[string]interface{}{
		"healthy":            status.Healthy,
		"events_processed":   status.EventsProcessed,
		"pending_events":     status.PendingEvents,
		"last_event_time":    status.LastEventTime,
		"database_connected": status.DatabaseConnected,
		"nats_connected":     status.NATSConnected,
		"worker_running":     status.WorkerRunning,
		"errors":             status.Errors,
	}
	if h.metrics != nil {
		response["counters"] = h.metrics.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
