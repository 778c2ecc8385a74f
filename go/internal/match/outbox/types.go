package outbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/models"
)

// Store is the durable side of the outbox.
type Store interface {
	CreateMatch(ctx context.Context, code string) (uuid.UUID, error)
	AppendEvent(ctx context.Context, event models.MatchEvent) error
	UpdateMatch(ctx context.Context, summary models.MatchSummary) error
}

// EventPublisher fans persisted events out to other consumers.
type EventPublisher interface {
	Publish(ctx context.Context, code string, event models.MatchEvent) error
}

// MatchCreatedFunc is told the id the store assigned to a room's match.
type MatchCreatedFunc func(code string, matchID uuid.UUID)

type itemKind int

const (
	itemCreateMatch itemKind = iota
	itemEvent
	itemSummary
)

func (k itemKind) String() string {
	switch k {
	case itemCreateMatch:
		return "create_match"
	case itemEvent:
		return "event"
	case itemSummary:
		return "summary"
	}
	return "unknown"
}

type item struct {
	kind    itemKind
	code    string
	event   models.MatchEvent
	summary models.MatchSummary
}
