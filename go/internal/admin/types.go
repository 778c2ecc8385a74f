package admin

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/buzzer/go/internal/models"
)

// MatchView is the admin JSON shape of a match.
type MatchView struct {
	ID        string      `json:"id"`
	Code      string      `json:"code"`
	Status    string      `json:"status"`
	ScoreA    int         `json:"scoreA"`
	ScoreB    int         `json:"scoreB"`
	Overtime  bool        `json:"overtime"`
	TeamAName string      `json:"teamAName,omitempty"`
	TeamBName string      `json:"teamBName,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Events    []EventView `json:"events,omitempty"`
}

type EventView struct {
	ID        string          `json:"id"`
	MatchID   string          `json:"matchId"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ListMatchesRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListMatchesResponse struct {
	Matches []MatchView `json:"matches"`
}

type GetMatchRequest struct {
	ID string `json:"id"`
}

type GetMatchResponse struct {
	Match MatchView `json:"match"`
}

func matchToView(m models.Match) MatchView {
	v := MatchView{
		ID:        m.ID.String(),
		Code:      m.Code,
		Status:    string(m.Status),
		ScoreA:    m.ScoreA,
		ScoreB:    m.ScoreB,
		Overtime:  m.Overtime,
		TeamAName: m.TeamAName,
		TeamBName: m.TeamBName,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Events != nil {
		v.Events = make([]EventView, 0, len(m.Events))
		for _, ev := range m.Events {
			v.Events = append(v.Events, EventView{
				ID:        ev.ID.String(),
				MatchID:   ev.MatchID.String(),
				Type:      ev.Type,
				Payload:   ev.Payload,
				CreatedAt: ev.CreatedAt,
			})
		}
	}
	return v
}

func matchesToViews(ms []models.Match) []MatchView {
	out := make([]MatchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchToView(m))
	}
	return out
}
