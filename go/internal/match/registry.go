package match

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

// ActionType names an inbound room action.
type ActionType string

const (
	ActionOpenBuzzers          ActionType = "openBuzzers"
	ActionBuzz                 ActionType = "buzz"
	ActionMarkCorrectInitial   ActionType = "markCorrectInitial"
	ActionMarkIncorrectInitial ActionType = "markIncorrectInitial"
	ActionMarkCorrectSteal     ActionType = "markCorrectSteal"
	ActionMarkIncorrectSteal   ActionType = "markIncorrectSteal"
	ActionAssignKillTarget     ActionType = "assignKillTarget"
	ActionSkipKill             ActionType = "skipKill"
	ActionPing                 ActionType = "ping"
)

// IsHostAction reports whether only the room's host may perform t.
func (t ActionType) IsHostAction() bool {
	switch t {
	case ActionOpenBuzzers, ActionMarkCorrectInitial, ActionMarkIncorrectInitial,
		ActionMarkCorrectSteal, ActionMarkIncorrectSteal, ActionSkipKill:
		return true
	}
	return false
}

// Action is a decoded inbound request addressed to one room.
type Action struct {
	Type     ActionType
	Code     string
	TargetID string
	SentAt   int64
}

// Config configures a Registry. Zero values fall back to production defaults.
type Config struct {
	Rules  Rules
	Clock  clockwork.Clock
	Picker Picker
	Codes  *CodeAllocator
	// OnReap is called with the code of every reaped room, outside any lock.
	OnReap func(code string)
}

type binding struct {
	code     string
	playerID string
}

// Registry owns the live rooms of the process and routes actions to them.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	bindings map[string]binding

	ctx    context.Context
	codes  *CodeAllocator
	onReap func(code string)
	eng    *engine
}

// NewRegistry creates an empty registry. Rooms and their timers live until
// ctx is cancelled or they are reaped.
func NewRegistry(ctx context.Context, cfg Config, broadcaster Broadcaster, sink EventSink) *Registry {
	if cfg.Rules == (Rules{}) {
		cfg.Rules = DefaultRules()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Picker == nil {
		cfg.Picker = rand.Intn
	}
	if cfg.Codes == nil {
		cfg.Codes = NewCodeAllocator(defaultCodeLength)
	}

	return &Registry{
		rooms:    make(map[string]*Room),
		bindings: make(map[string]binding),
		ctx:      ctx,
		codes:    cfg.Codes,
		onReap:   cfg.OnReap,
		eng: &engine{
			rules:       cfg.Rules,
			clock:       cfg.Clock,
			pick:        cfg.Picker,
			broadcaster: broadcaster,
			sink:        sink,
		},
	}
}

// CreateRoom allocates a code, creates an idle room hosted by hostConnID and
// returns the code.
func (g *Registry) CreateRoom(hostConnID string) string {
	g.mu.Lock()
	code := g.codes.Next(func(c string) bool {
		_, taken := g.rooms[c]
		return taken
	})
	room := newRoom(g.ctx, code, hostConnID, g.eng)
	g.rooms[code] = room
	g.mu.Unlock()

	room.mu.Lock()
	defer room.mu.Unlock()

	g.eng.broadcaster.Subscribe(hostConnID, code)
	g.eng.broadcaster.Send(hostConnID, events.TypeRoomCreated, events.RoomCreatedPayload{Code: code})
	room.publishState()
	g.eng.sink.CreateMatch(code)
	room.record(RecordRoomCreated, map[string]any{"code": code})

	log.Info().
		Str("room_code", code).
		Str("host_connection_id", hostConnID).
		Msg("room created")
	return code
}

// JoinRoom adds a player to the room and binds connID to them.
// Team capacity never fails a join; overflow players join unslotted.
func (g *Registry) JoinRoom(connID, code string, team Team, name string) (string, error) {
	room, ok := g.Room(code)
	if !ok {
		return "", ErrRoomNotFound
	}
	if !team.Valid() {
		return "", ErrInvalidTeam
	}

	playerID := room.join(connID, team, strings.TrimSpace(name))

	g.mu.Lock()
	prev, rebound := g.bindings[connID]
	g.bindings[connID] = binding{code: room.code, playerID: playerID}
	prevRoom := g.rooms[prev.code]
	g.mu.Unlock()

	// A connection speaks for one player at a time.
	if rebound && prevRoom != nil {
		prevRoom.unbind(prev.playerID, connID)
	}
	return playerID, nil
}

// ResolvePlayer returns the room code and player bound to connID.
func (g *Registry) ResolvePlayer(connID string) (code, playerID string, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.bindings[connID]
	return b.code, b.playerID, ok
}

// OnDisconnect forgets connID. The player itself stays in the room.
func (g *Registry) OnDisconnect(connID string) {
	g.mu.Lock()
	b, ok := g.bindings[connID]
	delete(g.bindings, connID)
	room := g.rooms[b.code]
	g.mu.Unlock()

	if ok && room != nil {
		room.unbind(b.playerID, connID)
	}
}

// Room looks up a live room by code.
func (g *Registry) Room(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[normalizeCode(code)]
	return room, ok
}

// AssignMatchID records the persistence handle once the store confirms it.
func (g *Registry) AssignMatchID(code string, id uuid.UUID) {
	if room, ok := g.Room(code); ok {
		room.setMatchID(id)
	}
}

// Dispatch routes an action from connID to its room. Actions from the wrong
// connection, for unknown rooms, or failing their phase guard are dropped.
func (g *Registry) Dispatch(connID string, a Action) {
	room, ok := g.Room(a.Code)
	if !ok {
		log.Debug().Str("connection_id", connID).Str("room_code", a.Code).Str("action", string(a.Type)).Msg("action for unknown room dropped")
		return
	}

	if a.Type.IsHostAction() {
		if !room.IsHost(connID) {
			log.Debug().Str("connection_id", connID).Str("room_code", room.code).Str("action", string(a.Type)).Msg("host action from non-host dropped")
			return
		}
		switch a.Type {
		case ActionOpenBuzzers:
			room.OpenBuzzers()
		case ActionMarkCorrectInitial:
			room.MarkCorrectInitial()
		case ActionMarkIncorrectInitial:
			room.MarkIncorrectInitial()
		case ActionMarkCorrectSteal:
			room.MarkCorrectSteal()
		case ActionMarkIncorrectSteal:
			room.MarkIncorrectSteal()
		case ActionSkipKill:
			room.SkipKill()
		}
		return
	}

	code, playerID, bound := g.ResolvePlayer(connID)
	if !bound || code != room.code {
		log.Debug().Str("connection_id", connID).Str("room_code", room.code).Str("action", string(a.Type)).Msg("action from unbound connection dropped")
		return
	}
	switch a.Type {
	case ActionBuzz:
		room.Buzz(playerID)
	case ActionAssignKillTarget:
		room.AssignKillTarget(playerID, a.TargetID)
	case ActionPing:
		room.RecordPing(playerID, a.SentAt)
	default:
		log.Debug().Str("connection_id", connID).Str("action", string(a.Type)).Msg("unknown action dropped")
	}
}

// Reap removes rooms with no activity for idleFor and stops their timers.
// It returns the number of rooms removed.
func (g *Registry) Reap(idleFor time.Duration) int {
	now := g.eng.clock.Now()

	g.mu.RLock()
	candidates := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		candidates = append(candidates, room)
	}
	g.mu.RUnlock()

	var stale []*Room
	for _, room := range candidates {
		room.mu.Lock()
		idle := now.Sub(room.lastActivity)
		room.mu.Unlock()
		if idle >= idleFor {
			stale = append(stale, room)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	g.mu.Lock()
	var reaped []string
	for _, room := range stale {
		code := room.code
		if g.rooms[code] != room {
			continue
		}
		room.cancel()
		delete(g.rooms, code)
		for connID, b := range g.bindings {
			if b.code == code {
				delete(g.bindings, connID)
			}
		}
		// Before the code can be handed out again.
		g.eng.broadcaster.CloseRoom(code)
		reaped = append(reaped, code)
		log.Info().Str("room_code", code).Msg("idle room reaped")
	}
	g.mu.Unlock()

	if g.onReap != nil {
		for _, code := range reaped {
			g.onReap(code)
		}
	}
	return len(reaped)
}

// RunReaper calls Reap every interval until ctx is done. A zero idleFor disables it.
func (g *Registry) RunReaper(ctx context.Context, interval, idleFor time.Duration) {
	if idleFor <= 0 || interval <= 0 {
		return
	}
	ticker := g.eng.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.Reap(idleFor)
		}
	}
}

// Stats reports counts for the connection stats endpoint.
func (g *Registry) Stats() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return map[string]interface{}{
		"active_rooms":  len(g.rooms),
		"bound_players": len(g.bindings),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
