package match

import (
	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/mcdev12/buzzer/go/internal/models"
)

// Broadcaster delivers outbound messages to the connections joined to a room.
// Implementations must not block; the engine calls them while holding the room lock.
type Broadcaster interface {
	Subscribe(connID, code string)
	Broadcast(code string, t events.Type, data any)
	Send(connID string, t events.Type, data any)
	// CloseRoom drops every subscription to code so a later room with the
	// same code starts with no listeners.
	CloseRoom(code string)
}

// EventSink receives the audit trail of a room. Every call is fire and forget:
// the engine never waits on it and never learns whether it succeeded.
type EventSink interface {
	CreateMatch(code string)
	Append(code string, matchID uuid.UUID, eventType string, payload any)
	UpsertSummary(summary models.MatchSummary)
}

// Audit record types.
const (
	RecordRoomCreated      = "room_created"
	RecordPlayerJoined     = "player_joined"
	RecordQuestionOpened   = "question_opened"
	RecordLock             = "lock"
	RecordStealLock        = "steal_lock"
	RecordCorrectInitial   = "correct_initial"
	RecordIncorrectInitial = "incorrect_initial"
	RecordStealOpen        = "steal_open"
	RecordQuestionTimeout  = "question_timeout"
	RecordStealTimeout     = "steal_timeout"
	RecordCorrectSteal     = "correct_steal"
	RecordIncorrectSteal   = "incorrect_steal"
	RecordKillApplied      = "kill_applied"
	RecordKillSkipped      = "kill_skipped"
	RecordOvertimeEntered  = "overtime_entered"
	RecordMatchEnded       = "match_ended"
)
