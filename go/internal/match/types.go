package match

import (
	"errors"
	"time"
)

// Team identifies one of the two sides in a room.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Valid reports whether t names one of the two teams.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// PhaseKind discriminates the per-room phase.
type PhaseKind string

const (
	PhaseIdle      PhaseKind = "idle"
	PhaseOpen      PhaseKind = "open"
	PhaseLocked    PhaseKind = "locked"
	PhaseStealOpen PhaseKind = "steal_open"
	PhaseEnded     PhaseKind = "ended"
)

// LockOrigin records whether a lock came from the open window or a steal window.
type LockOrigin string

const (
	OriginInitial LockOrigin = "initial"
	OriginSteal   LockOrigin = "steal"
)

// Phase is the tagged union of room phases. Only the fields relevant to Kind are set:
//
//	open:       Deadline
//	locked:     PlayerID, Team, Origin, AwaitingKill
//	steal_open: Team, Deadline
type Phase struct {
	Kind         PhaseKind
	Deadline     time.Time
	PlayerID     string
	Team         Team
	Origin       LockOrigin
	AwaitingKill bool
}

// Player is a participant bound to exactly one room.
type Player struct {
	ID              string
	Name            string
	Team            Team
	BuzzesRemaining int
	Slotted         bool
}

// CanBuzz reports whether the player is allowed into a buzzer race at all.
func (p *Player) CanBuzz() bool {
	return p.Slotted && p.BuzzesRemaining > 0
}

// Rules holds the tunable game constants.
type Rules struct {
	QuestionTime  time.Duration `yaml:"question_time"`
	StealTime     time.Duration `yaml:"steal_time"`
	InitialBuzzes int           `yaml:"initial_buzzes"`
	SlotsPerTeam  int           `yaml:"slots_per_team"`
	MaxQuestions  int           `yaml:"max_questions"`
	// TimerSlack is added to every scheduled expiry so the timer never fires
	// before the deadline clients were told about.
	TimerSlack time.Duration `yaml:"timer_slack"`
}

// DefaultRules returns the standard competition format.
func DefaultRules() Rules {
	return Rules{
		QuestionTime:  15 * time.Second,
		StealTime:     10 * time.Second,
		InitialBuzzes: 5,
		SlotsPerTeam:  4,
		MaxQuestions:  20,
		TimerSlack:    10 * time.Millisecond,
	}
}

// DefaultPlayerName is used when a joining player supplies no name.
const DefaultPlayerName = "Player"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidTeam  = errors.New("invalid team")
)
