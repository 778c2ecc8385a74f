package match

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/mcdev12/buzzer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// engine bundles the collaborators shared by every room of a registry.
type engine struct {
	rules       Rules
	clock       clockwork.Clock
	pick        Picker
	broadcaster Broadcaster
	sink        EventSink
}

// Room is the phase engine of a single game. Every action and every timer
// expiry runs to completion under mu, so transitions on one room are
// serialized and each broadcast reflects fully updated state.
type Room struct {
	mu sync.Mutex

	code          string
	hostConnID    string
	players       map[string]*Player
	joinOrder     []string
	slots         map[Team][]string
	scores        map[Team]int
	questionIndex int
	maxQuestions  int
	phase         Phase
	phaseSeq      uint64
	overtime      bool
	latency       map[string]int64
	playerConns   map[string]string
	matchID       uuid.UUID

	createdAt    time.Time
	lastActivity time.Time

	ctx    context.Context
	cancel context.CancelFunc
	eng    *engine
}

func newRoom(ctx context.Context, code, hostConnID string, eng *engine) *Room {
	now := eng.clock.Now()
	roomCtx, cancel := context.WithCancel(ctx)
	return &Room{
		code:         code,
		hostConnID:   hostConnID,
		players:      make(map[string]*Player),
		slots:        map[Team][]string{TeamA: {}, TeamB: {}},
		scores:       map[Team]int{TeamA: 0, TeamB: 0},
		maxQuestions: eng.rules.MaxQuestions,
		phase:        Phase{Kind: PhaseIdle},
		latency:      make(map[string]int64),
		playerConns:  make(map[string]string),
		createdAt:    now,
		lastActivity: now,
		ctx:          roomCtx,
		cancel:       cancel,
		eng:          eng,
	}
}

// Code returns the room's immutable code.
func (r *Room) Code() string { return r.code }

// IsHost reports whether connID created the room.
func (r *Room) IsHost(connID string) bool {
	return connID != "" && r.hostConnID == connID
}

var _ roster = (*Room)(nil)

// slottedPlayers implements roster. Callers must hold mu.
func (r *Room) slottedPlayers(team Team) []*Player {
	players := make([]*Player, 0, len(r.slots[team]))
	for _, id := range r.slots[team] {
		if p, ok := r.players[id]; ok && p.Slotted {
			players = append(players, p)
		}
	}
	return players
}

// Snapshot returns a copy of the room's public state.
func (r *Room) Snapshot() events.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) join(connID string, team Team, name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	if name == "" {
		name = DefaultPlayerName
	}
	p := &Player{
		ID:              uuid.New().String(),
		Name:            name,
		Team:            team,
		BuzzesRemaining: r.eng.rules.InitialBuzzes,
	}
	if len(r.slots[team]) < r.eng.rules.SlotsPerTeam {
		p.Slotted = true
		r.slots[team] = append(r.slots[team], p.ID)
	}
	r.players[p.ID] = p
	r.joinOrder = append(r.joinOrder, p.ID)
	r.playerConns[p.ID] = connID

	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID).
		Str("team", string(team)).
		Bool("slotted", p.Slotted).
		Msg("player joined room")

	r.eng.broadcaster.Subscribe(connID, r.code)
	r.publishState()
	r.record(RecordPlayerJoined, map[string]any{"playerId": p.ID, "team": team, "name": name, "slotted": p.Slotted})
	return p.ID
}

func (r *Room) unbind(playerID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playerConns[playerID] == connID {
		delete(r.playerConns, playerID)
	}
}

func (r *Room) setMatchID(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchID = id
}

// OpenBuzzers starts the answer window for the next question.
func (r *Room) OpenBuzzers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase.Kind != PhaseIdle {
		r.drop("openBuzzers", "phase is not idle")
		return
	}
	if !r.overtime && r.questionIndex >= r.maxQuestions {
		r.drop("openBuzzers", "regulation is over")
		return
	}
	r.touch()

	deadline := r.eng.clock.Now().Add(r.eng.rules.QuestionTime)
	r.setPhase(Phase{Kind: PhaseOpen, Deadline: deadline})
	r.publishState()
	r.eng.broadcaster.Broadcast(r.code, events.TypeQuestionOpened, events.QuestionOpenedPayload{
		DeadlineAt: deadline.UnixMilli(),
	})
	r.record(RecordQuestionOpened, map[string]any{"questionIndex": r.questionIndex, "deadlineAt": deadline.UnixMilli()})
	r.scheduleExpiry(r.eng.rules.QuestionTime, PhaseOpen, r.expireQuestion)
}

// Buzz locks the phase for the first eligible player to press.
func (r *Room) Buzz(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || !p.CanBuzz() {
		r.drop("buzz", "player cannot buzz")
		return
	}

	var origin LockOrigin
	switch r.phase.Kind {
	case PhaseOpen:
		origin = OriginInitial
	case PhaseStealOpen:
		if p.Team != r.phase.Team {
			r.drop("buzz", "not on the stealing team")
			return
		}
		origin = OriginSteal
	default:
		r.drop("buzz", "buzzers are not open")
		return
	}
	r.touch()

	r.setPhase(Phase{Kind: PhaseLocked, PlayerID: p.ID, Team: p.Team, Origin: origin})
	p.BuzzesRemaining--

	r.publishState()
	lock := events.LockoutPayload{PlayerID: p.ID, Team: string(p.Team), Name: p.Name}
	if origin == OriginSteal {
		r.eng.broadcaster.Broadcast(r.code, events.TypeStealLockout, lock)
		r.record(RecordStealLock, lock)
		return
	}
	r.eng.broadcaster.Broadcast(r.code, events.TypeLockoutWinner, lock)
	r.record(RecordLock, lock)
}

// MarkCorrectInitial credits the locked initial answerer. Outside overtime the
// answerer is then prompted to pick a kill target; in overtime the match ends.
func (r *Room) MarkCorrectInitial() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lockedAwaitingGrade(OriginInitial) {
		r.drop("markCorrectInitial", "no initial answer to grade")
		return
	}
	r.touch()

	team := r.phase.Team
	answerer := r.phase.PlayerID
	r.scores[team]++
	r.record(RecordCorrectInitial, map[string]any{"playerId": answerer, "team": team})
	r.upsertSummary(models.MatchStatusLive)

	if r.overtime {
		r.endMatch()
		return
	}

	eligible := eligibleTargets(r, team)
	r.sendToPlayer(answerer, events.TypeKillPromptTargets, events.KillPromptPayload{Eligible: eligible})
	if len(eligible) == 0 {
		r.advance()
		return
	}

	r.setPhase(Phase{Kind: PhaseLocked, PlayerID: answerer, Team: team, Origin: OriginInitial, AwaitingKill: true})
	r.publishState()
}

// MarkIncorrectInitial opens the steal window for the answerer's opponents.
func (r *Room) MarkIncorrectInitial() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lockedAwaitingGrade(OriginInitial) {
		r.drop("markIncorrectInitial", "no initial answer to grade")
		return
	}
	r.touch()

	stealTeam := r.phase.Team.Opponent()
	r.record(RecordIncorrectInitial, map[string]any{"playerId": r.phase.PlayerID, "team": r.phase.Team})

	deadline := r.eng.clock.Now().Add(r.eng.rules.StealTime)
	r.setPhase(Phase{Kind: PhaseStealOpen, Team: stealTeam, Deadline: deadline})
	r.publishState()
	r.eng.broadcaster.Broadcast(r.code, events.TypeStealOpened, events.StealOpenedPayload{
		Team:       string(stealTeam),
		DeadlineAt: deadline.UnixMilli(),
	})
	r.record(RecordStealOpen, map[string]any{"team": stealTeam, "deadlineAt": deadline.UnixMilli()})
	r.scheduleExpiry(r.eng.rules.StealTime, PhaseStealOpen, r.expireSteal)
}

// MarkCorrectSteal credits the stealing team. A steal never earns a kill.
func (r *Room) MarkCorrectSteal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lockedAwaitingGrade(OriginSteal) {
		r.drop("markCorrectSteal", "no steal answer to grade")
		return
	}
	r.touch()

	r.scores[r.phase.Team]++
	r.record(RecordCorrectSteal, map[string]any{"playerId": r.phase.PlayerID, "team": r.phase.Team})
	r.upsertSummary(models.MatchStatusLive)

	if r.overtime {
		r.endMatch()
		return
	}
	r.advance()
}

// MarkIncorrectSteal resolves the question with no score and no kill.
func (r *Room) MarkIncorrectSteal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lockedAwaitingGrade(OriginSteal) {
		r.drop("markIncorrectSteal", "no steal answer to grade")
		return
	}
	r.touch()

	r.record(RecordIncorrectSteal, map[string]any{"playerId": r.phase.PlayerID, "team": r.phase.Team})
	r.advance()
}

// AssignKillTarget lets the correct initial answerer remove one buzz from an
// eligible opponent.
func (r *Room) AssignKillTarget(playerID, targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase.Kind != PhaseLocked || !r.phase.AwaitingKill || r.overtime {
		r.drop("assignKillTarget", "no kill pending")
		return
	}
	if playerID != r.phase.PlayerID {
		r.drop("assignKillTarget", "not the answerer")
		return
	}
	target, ok := r.players[targetID]
	if !ok || target.Team == r.phase.Team || !slices.Contains(eligibleTargets(r, r.phase.Team), targetID) {
		r.drop("assignKillTarget", "target not eligible")
		return
	}
	r.touch()

	target.BuzzesRemaining--
	r.eng.broadcaster.Broadcast(r.code, events.TypeKillApplied, events.KillAppliedPayload{TargetID: targetID})
	r.record(RecordKillApplied, map[string]any{"by": playerID, "targetId": targetID})
	r.advance()
}

// SkipKill lets the host move on when the answerer never picks a target.
func (r *Room) SkipKill() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase.Kind != PhaseLocked || !r.phase.AwaitingKill {
		r.drop("skipKill", "no kill pending")
		return
	}
	r.touch()

	r.record(RecordKillSkipped, map[string]any{"playerId": r.phase.PlayerID})
	r.advance()
}

// RecordPing stores the round trip measured from a client timestamp in Unix ms.
// Latency is advisory and never broadcast on its own.
func (r *Room) RecordPing(playerID string, sentAt int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return
	}
	rtt := r.eng.clock.Now().UnixMilli() - sentAt
	if rtt < 0 {
		rtt = 0
	}
	r.latency[playerID] = rtt
}

func (r *Room) lockedAwaitingGrade(origin LockOrigin) bool {
	return r.phase.Kind == PhaseLocked && r.phase.Origin == origin && !r.phase.AwaitingKill
}

// expireQuestion resolves an open window nobody buzzed in.
func (r *Room) expireQuestion() {
	var payload events.QuestionTimeoutPayload
	if !r.overtime {
		if id, ok := randomEliminate(r, TeamA, r.eng.pick); ok {
			payload.EliminatedA = &id
		}
		if id, ok := randomEliminate(r, TeamB, r.eng.pick); ok {
			payload.EliminatedB = &id
		}
	}

	r.eng.broadcaster.Broadcast(r.code, events.TypeQuestionTimeout, payload)
	r.record(RecordQuestionTimeout, payload)
	r.advance()
}

// expireSteal resolves a steal window nobody on the stealing team buzzed in.
func (r *Room) expireSteal() {
	var payload events.StealTimeoutPayload
	if !r.overtime {
		if id, ok := randomEliminate(r, r.phase.Team, r.eng.pick); ok {
			payload.Eliminated = &id
		}
	}

	r.eng.broadcaster.Broadcast(r.code, events.TypeStealTimeout, payload)
	r.record(RecordStealTimeout, map[string]any{"team": r.phase.Team, "eliminated": payload.Eliminated})
	r.advance()
}

// advance resolves the current question, entering overtime or ending the
// match when regulation runs out.
func (r *Room) advance() {
	r.questionIndex++

	if !r.overtime && r.questionIndex >= r.maxQuestions {
		if r.scores[TeamA] == r.scores[TeamB] {
			r.overtime = true
			r.setPhase(Phase{Kind: PhaseIdle})
			r.publishState()
			r.eng.broadcaster.Broadcast(r.code, events.TypeOvertimeEntered, struct{}{})
			r.record(RecordOvertimeEntered, r.scorePayload())
			r.upsertSummary(models.MatchStatusLive)
			log.Info().Str("room_code", r.code).Msg("regulation tied, entering overtime")
			return
		}
		r.endMatch()
		return
	}

	r.setPhase(Phase{Kind: PhaseIdle})
	r.publishState()
}

func (r *Room) endMatch() {
	r.setPhase(Phase{Kind: PhaseEnded})
	r.publishState()
	r.eng.broadcaster.Broadcast(r.code, events.TypeMatchEnded, events.MatchEndedPayload{Scores: r.scorePayload()})
	r.record(RecordMatchEnded, r.scorePayload())
	r.upsertSummary(models.MatchStatusCompleted)

	log.Info().
		Str("room_code", r.code).
		Int("score_a", r.scores[TeamA]).
		Int("score_b", r.scores[TeamB]).
		Bool("overtime", r.overtime).
		Msg("match ended")
}

func (r *Room) setPhase(p Phase) {
	r.phase = p
	r.phaseSeq++
}

func (r *Room) touch() {
	r.lastActivity = r.eng.clock.Now()
}

func (r *Room) drop(action, reason string) {
	log.Debug().
		Str("room_code", r.code).
		Str("action", action).
		Str("phase", string(r.phase.Kind)).
		Str("reason", reason).
		Msg("action dropped")
}

func (r *Room) publishState() {
	r.eng.broadcaster.Broadcast(r.code, events.TypeState, r.snapshotLocked())
}

func (r *Room) sendToPlayer(playerID string, t events.Type, data any) {
	connID, ok := r.playerConns[playerID]
	if !ok {
		return
	}
	r.eng.broadcaster.Send(connID, t, data)
}

func (r *Room) record(eventType string, payload any) {
	r.eng.sink.Append(r.code, r.matchID, eventType, payload)
}

func (r *Room) upsertSummary(status models.MatchStatus) {
	r.eng.sink.UpsertSummary(models.MatchSummary{
		Code:     r.code,
		MatchID:  r.matchID,
		Status:   status,
		ScoreA:   r.scores[TeamA],
		ScoreB:   r.scores[TeamB],
		Overtime: r.overtime,
	})
}

func (r *Room) scorePayload() events.Scores {
	return events.Scores{A: r.scores[TeamA], B: r.scores[TeamB]}
}
