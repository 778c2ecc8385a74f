package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/buzzer/go/internal/match"
	"github.com/mcdev12/buzzer/go/internal/match/events"
)

// Inbound message types that are not room actions.
const (
	TypeCreateRoom events.Type = "createRoom"
	TypeJoinRoom   events.Type = "joinRoom"
)

// Join failure reasons sent in joinResult.
const (
	ReasonRoomNotFound = "Room not found"
	ReasonInvalidTeam  = "Invalid team"
)

// inboundData is the union of every inbound payload field.
type inboundData struct {
	Code     string  `json:"code"`
	Team     string  `json:"team"`
	Name     string  `json:"name"`
	TargetID string  `json:"targetId"`
	SentAt   float64 `json:"sentAt"`
}

// decodeMessage splits a frame into its type and payload.
func decodeMessage(message []byte) (events.Type, inboundData, error) {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "", inboundData{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return "", inboundData{}, fmt.Errorf("envelope has no type")
	}

	var data inboundData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", inboundData{}, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
	}
	return env.Type, data, nil
}

func (d inboundData) action(t events.Type) match.Action {
	return match.Action{
		Type:     match.ActionType(t),
		Code:     d.Code,
		TargetID: d.TargetID,
		SentAt:   int64(d.SentAt),
	}
}
