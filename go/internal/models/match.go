package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MatchStatus defines the lifecycle status of a persisted match.
type MatchStatus string

const (
	MatchStatusLive      MatchStatus = "live"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match is the durable record of one room's game.
type Match struct {
	ID        uuid.UUID    `json:"id"`
	Code      string       `json:"code"`
	Status    MatchStatus  `json:"status"`
	ScoreA    int          `json:"score_a"`
	ScoreB    int          `json:"score_b"`
	Overtime  bool         `json:"overtime"`
	TeamAName string       `json:"team_a_name"`
	TeamBName string       `json:"team_b_name"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Events    []MatchEvent `json:"events,omitempty"`
}

// MatchEvent is one append-only audit record.
type MatchEvent struct {
	ID        uuid.UUID       `json:"id"`
	MatchID   uuid.UUID       `json:"match_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MatchSummary is the mutable part of a match, upserted as the game moves.
type MatchSummary struct {
	Code     string      `json:"code"`
	MatchID  uuid.UUID   `json:"match_id"`
	Status   MatchStatus `json:"status"`
	ScoreA   int         `json:"score_a"`
	ScoreB   int         `json:"score_b"`
	Overtime bool        `json:"overtime"`
}
