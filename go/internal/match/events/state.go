package events

// Scores is the per-team score pair.
type Scores struct {
	A int `json:"A"`
	B int `json:"B"`
}

// PhaseView is the public form of a room phase. Kind discriminates which of
// the remaining fields are set.
type PhaseView struct {
	Kind         string `json:"kind"`
	DeadlineAt   int64  `json:"deadlineAt,omitempty"`
	PlayerID     string `json:"playerId,omitempty"`
	Team         string `json:"team,omitempty"`
	Origin       string `json:"origin,omitempty"`
	AwaitingKill bool   `json:"awaitingKill,omitempty"`
}

// PlayerView is the public form of a player. Connection identifiers are never included.
type PlayerView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Team            string `json:"team"`
	BuzzesRemaining int    `json:"buzzesRemaining"`
	Slotted         bool   `json:"slotted"`
}

// RoomState is the snapshot broadcast to every connection in a room after
// each state-changing transition. Players are listed in join order.
type RoomState struct {
	Code            string              `json:"code"`
	Scores          Scores              `json:"scores"`
	QuestionIndex   int                 `json:"questionIndex"`
	MaxQuestions    int                 `json:"maxQuestions"`
	Phase           PhaseView           `json:"phase"`
	Overtime        bool                `json:"overtime"`
	Slots           map[string][]string `json:"slots"`
	LatencyByPlayer map[string]int64    `json:"latencyMsByPlayer"`
	Players         []PlayerView        `json:"players"`
}
