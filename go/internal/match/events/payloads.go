package events

import "encoding/json"

// Message payload types shared between the match engine and the gateway.
// Field names follow the browser client contract, so they are camelCase.

// Type names an outbound or inbound message.
type Type string

// Outbound message types.
const (
	TypeConnected         Type = "connected"
	TypeRoomCreated       Type = "roomCreated"
	TypeJoinResult        Type = "joinResult"
	TypeState             Type = "state"
	TypeLockoutWinner     Type = "lockoutWinner"
	TypeStealLockout      Type = "stealLockout"
	TypeQuestionOpened    Type = "questionOpened"
	TypeStealOpened       Type = "stealOpened"
	TypeQuestionTimeout   Type = "questionTimeout"
	TypeStealTimeout      Type = "stealTimeout"
	TypeKillPromptTargets Type = "killPromptTargets"
	TypeKillApplied       Type = "killApplied"
	TypeOvertimeEntered   Type = "overtimeEntered"
	TypeMatchEnded        Type = "matchEnded"
)

// Envelope is the frame every WebSocket message travels in.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is an encoded-on-delivery message addressed to a room or a connection.
type Outbound struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Encode marshals an outbound message into its wire form.
func Encode(t Type, data any) ([]byte, error) {
	if data == nil {
		data = struct{}{}
	}
	return json.Marshal(Outbound{Type: t, Data: data})
}

// ConnectedPayload greets a new connection with its server-side id.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// RoomCreatedPayload acknowledges createRoom to the host.
type RoomCreatedPayload struct {
	Code string `json:"code"`
}

// JoinResultPayload acknowledges joinRoom.
type JoinResultPayload struct {
	OK       bool   `json:"ok"`
	PlayerID string `json:"playerId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// LockoutPayload announces who won a buzzer race.
type LockoutPayload struct {
	PlayerID string `json:"playerId"`
	Team     string `json:"team"`
	Name     string `json:"name"`
}

// QuestionOpenedPayload carries the answer window deadline in Unix ms.
type QuestionOpenedPayload struct {
	DeadlineAt int64 `json:"deadlineAt"`
}

// StealOpenedPayload names the stealing team and its window deadline.
type StealOpenedPayload struct {
	Team       string `json:"team"`
	DeadlineAt int64  `json:"deadlineAt"`
}

// QuestionTimeoutPayload reports the players who lost a buzz when nobody buzzed.
type QuestionTimeoutPayload struct {
	EliminatedA *string `json:"eliminatedA,omitempty"`
	EliminatedB *string `json:"eliminatedB,omitempty"`
}

// StealTimeoutPayload reports the stealing-team player who lost a buzz.
type StealTimeoutPayload struct {
	Eliminated *string `json:"eliminated,omitempty"`
}

// KillPromptPayload is sent privately to the correct answerer.
type KillPromptPayload struct {
	Eligible []string `json:"eligible"`
}

// KillAppliedPayload names the opponent who lost a buzz.
type KillAppliedPayload struct {
	TargetID string `json:"targetId"`
}

// MatchEndedPayload carries the final scores.
type MatchEndedPayload struct {
	Scores Scores `json:"scores"`
}
