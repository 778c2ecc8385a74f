package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/match/outbox"
	"github.com/mcdev12/buzzer/go/internal/models"
)

// MemoryStore keeps matches in process. It backs the server when no database
// is configured and serves the admin reads in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]*models.Match
	now     func() time.Time
}

var (
	_ outbox.Store  = (*MemoryStore)(nil)
	_ outbox.Pinger = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[uuid.UUID]*models.Match),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateMatch(ctx context.Context, code string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m := &models.Match{
		ID:        uuid.New(),
		Code:      code,
		Status:    models.MatchStatusLive,
		TeamAName: teamName("A", code),
		TeamBName: teamName("B", code),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.matches[m.ID] = m
	return m.ID, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event models.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[event.MatchID]
	if !ok {
		return models.ErrMatchNotFound
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	m.Events = append(m.Events, event)
	return nil
}

func (s *MemoryStore) UpdateMatch(ctx context.Context, summary models.MatchSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[summary.MatchID]
	if !ok {
		return models.ErrMatchNotFound
	}
	if m.Status != models.MatchStatusCompleted {
		m.Status = summary.Status
	}
	m.ScoreA = summary.ScoreA
	m.ScoreB = summary.ScoreB
	m.Overtime = summary.Overtime
	m.UpdatedAt = s.now()
	return nil
}

// ListMatches returns up to limit matches, newest first, without events.
func (s *MemoryStore) ListMatches(ctx context.Context, limit int) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Match, 0, len(s.matches))
	for _, m := range s.matches {
		c := *m
		c.Events = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetMatch returns one match with its events in insertion order.
func (s *MemoryStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, models.ErrMatchNotFound
	}
	c := *m
	c.Events = append([]models.MatchEvent(nil), m.Events...)
	return &c, nil
}
