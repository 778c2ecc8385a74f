package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/match"
	"github.com/mcdev12/buzzer/go/internal/models"
	"github.com/rs/zerolog/log"
)

type Config struct {
	QueueSize int
	OpTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize: 1024,
		OpTimeout: 5 * time.Second,
	}
}

// Worker is the engine's EventSink. Calls enqueue and return immediately; a
// single goroutine drains the queue in order into the store and publishers.
// Failures are logged and dropped, never retried.
type Worker struct {
	queue      chan item
	store      Store
	publishers []EventPublisher
	onCreated  MatchCreatedFunc
	metrics    MetricsCollector
	config     Config

	// Only touched by the drain goroutine.
	matchIDs map[string]uuid.UUID

	processed atomic.Uint64
	lastEvent atomic.Int64

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ match.EventSink = (*Worker)(nil)

type Option func(*Worker)

// WithPublisher adds a fan-out target for appended events.
func WithPublisher(p EventPublisher) Option {
	return func(w *Worker) { w.publishers = append(w.publishers, p) }
}

// WithMetrics replaces the default in-process counters.
func WithMetrics(m MetricsCollector) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithMatchCreated registers a callback for confirmed match creations.
func WithMatchCreated(fn MatchCreatedFunc) Option {
	return func(w *Worker) { w.onCreated = fn }
}

func NewWorker(store Store, cfg Config, opts ...Option) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultConfig().OpTimeout
	}
	w := &Worker{
		queue:    make(chan item, cfg.QueueSize),
		store:    store,
		metrics:  &NoOpMetricsCollector{},
		config:   cfg,
		matchIDs: make(map[string]uuid.UUID),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateMatch implements match.EventSink.
func (w *Worker) CreateMatch(code string) {
	w.enqueue(item{kind: itemCreateMatch, code: code})
}

// Append implements match.EventSink. The payload is encoded immediately so
// later mutations by the caller are not observed.
func (w *Worker) Append(code string, matchID uuid.UUID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Str("event_type", eventType).Msg("failed to encode match event payload")
		return
	}
	w.enqueue(item{
		kind: itemEvent,
		code: code,
		event: models.MatchEvent{
			ID:        uuid.New(),
			MatchID:   matchID,
			Type:      eventType,
			Payload:   data,
			CreatedAt: time.Now().UTC(),
		},
	})
}

// UpsertSummary implements match.EventSink.
func (w *Worker) UpsertSummary(summary models.MatchSummary) {
	w.enqueue(item{kind: itemSummary, code: summary.Code, summary: summary})
}

func (w *Worker) enqueue(it item) {
	select {
	case w.queue <- it:
		w.metrics.RecordQueueDepth(len(w.queue))
	default:
		w.metrics.RecordDropped(it.kind.String())
		log.Warn().Str("room_code", it.code).Str("kind", it.kind.String()).Msg("outbox queue full, dropping record")
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Int("queue_size", w.config.QueueSize).
		Int("publishers", len(w.publishers)).
		Msg("outbox worker started")
	return nil
}

// Stop drains whatever is already queued and waits for the worker to exit.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Uint64("processed", w.processed.Load()).Msg("outbox worker stopped")
	return nil
}

// Running reports whether the drain goroutine is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns the number of processed records and when the last one finished.
func (w *Worker) Stats() (uint64, time.Time) {
	var last time.Time
	if ns := w.lastEvent.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return w.processed.Load(), last
}

// Pending returns the number of queued records.
func (w *Worker) Pending() int {
	return len(w.queue)
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-w.stopChan:
			w.drain()
			return
		case it := <-w.queue:
			w.process(it)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case it := <-w.queue:
			w.process(it)
		default:
			return
		}
	}
}

func (w *Worker) process(it item) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.OpTimeout)
	defer cancel()

	start := time.Now()
	err := w.handle(ctx, it)
	w.metrics.RecordProcessed(it.kind.String(), err == nil, time.Since(start))
	if err != nil {
		log.Error().
			Err(err).
			Str("room_code", it.code).
			Str("kind", it.kind.String()).
			Msg("outbox record failed")
	}

	w.processed.Add(1)
	w.lastEvent.Store(time.Now().UnixNano())
}

func (w *Worker) handle(ctx context.Context, it item) error {
	switch it.kind {
	case itemCreateMatch:
		id, err := w.store.CreateMatch(ctx, it.code)
		if err != nil {
			return fmt.Errorf("failed to create match: %w", err)
		}
		w.matchIDs[it.code] = id
		if w.onCreated != nil {
			w.onCreated(it.code, id)
		}
		log.Info().Str("room_code", it.code).Str("match_id", id.String()).Msg("match created")
		return nil

	case itemEvent:
		ev := it.event
		id, ok := w.resolve(it.code, ev.MatchID)
		if !ok {
			log.Debug().Str("room_code", it.code).Str("event_type", ev.Type).Msg("no match for room, event skipped")
			return nil
		}
		ev.MatchID = id
		if err := w.store.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to append %s event: %w", ev.Type, err)
		}
		w.publish(ctx, it.code, ev)
		return nil

	case itemSummary:
		s := it.summary
		id, ok := w.resolve(it.code, s.MatchID)
		if !ok {
			log.Debug().Str("room_code", it.code).Msg("no match for room, summary skipped")
			return nil
		}
		s.MatchID = id
		if err := w.store.UpdateMatch(ctx, s); err != nil {
			return fmt.Errorf("failed to update match: %w", err)
		}
		if s.Status == models.MatchStatusCompleted {
			delete(w.matchIDs, it.code)
		}
		return nil
	}
	return fmt.Errorf("unknown outbox item kind %d", it.kind)
}

func (w *Worker) resolve(code string, id uuid.UUID) (uuid.UUID, bool) {
	if id != uuid.Nil {
		return id, true
	}
	id, ok := w.matchIDs[code]
	return id, ok
}

func (w *Worker) publish(ctx context.Context, code string, ev models.MatchEvent) {
	for _, p := range w.publishers {
		if err := p.Publish(ctx, code, ev); err != nil {
			log.Warn().
				Err(err).
				Str("event_id", ev.ID.String()).
				Str("event_type", ev.Type).
				Msg("failed to publish match event")
		}
	}
}
