package match

import "github.com/mcdev12/buzzer/go/internal/match/events"

// snapshotLocked builds an immutable copy of the room's public state.
// Callers must hold mu.
func (r *Room) snapshotLocked() events.RoomState {
	state := events.RoomState{
		Code:            r.code,
		Scores:          r.scorePayload(),
		QuestionIndex:   r.questionIndex,
		MaxQuestions:    r.maxQuestions,
		Phase:           phaseView(r.phase),
		Overtime:        r.overtime,
		Slots:           make(map[string][]string, len(r.slots)),
		LatencyByPlayer: make(map[string]int64, len(r.latency)),
		Players:         make([]events.PlayerView, 0, len(r.joinOrder)),
	}
	for team, ids := range r.slots {
		state.Slots[string(team)] = append([]string{}, ids...)
	}
	for id, ms := range r.latency {
		state.LatencyByPlayer[id] = ms
	}
	for _, id := range r.joinOrder {
		p := r.players[id]
		state.Players = append(state.Players, events.PlayerView{
			ID:              p.ID,
			Name:            p.Name,
			Team:            string(p.Team),
			BuzzesRemaining: p.BuzzesRemaining,
			Slotted:         p.Slotted,
		})
	}
	return state
}

func phaseView(p Phase) events.PhaseView {
	view := events.PhaseView{Kind: string(p.Kind)}
	switch p.Kind {
	case PhaseOpen:
		view.DeadlineAt = p.Deadline.UnixMilli()
	case PhaseLocked:
		view.PlayerID = p.PlayerID
		view.Team = string(p.Team)
		view.Origin = string(p.Origin)
		view.AwaitingKill = p.AwaitingKill
	case PhaseStealOpen:
		view.Team = string(p.Team)
		view.DeadlineAt = p.Deadline.UnixMilli()
	}
	return view
}
