package match

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/mcdev12/buzzer/go/internal/models"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type sentMessage struct {
	Room string
	Conn string
	Type events.Type
	Data any
}

// recorder is a Broadcaster that keeps every message for inspection.
type recorder struct {
	mu   sync.Mutex
	subs   map[string][]string
	msgs   []sentMessage
	closed []string
}

func newRecorder() *recorder {
	return &recorder{subs: make(map[string][]string)}
}

func (r *recorder) Subscribe(connID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[code] = append(r.subs[code], connID)
}

func (r *recorder) CloseRoom(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, code)
	r.closed = append(r.closed, code)
}

func (r *recorder) Broadcast(code string, t events.Type, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sentMessage{Room: code, Type: t, Data: data})
}

func (r *recorder) Send(connID string, t events.Type, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sentMessage{Conn: connID, Type: t, Data: data})
}

func (r *recorder) ofType(t events.Type) []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMessage
	for _, m := range r.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) count(t events.Type) int {
	return len(r.ofType(t))
}

func (r *recorder) last(t *testing.T, typ events.Type) sentMessage {
	t.Helper()
	msgs := r.ofType(typ)
	if len(msgs) == 0 {
		t.Fatalf("no %s message recorded", typ)
	}
	return msgs[len(msgs)-1]
}

// sinkRecorder is an EventSink that keeps every call.
type sinkRecorder struct {
	mu        sync.Mutex
	created   []string
	records   []string
	summaries []models.MatchSummary
}

func (s *sinkRecorder) CreateMatch(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, code)
}

func (s *sinkRecorder) Append(code string, matchID uuid.UUID, eventType string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, eventType)
}

func (s *sinkRecorder) UpsertSummary(summary models.MatchSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
}

func (s *sinkRecorder) has(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r == eventType {
			return true
		}
	}
	return false
}

func (s *sinkRecorder) lastSummary(t *testing.T) models.MatchSummary {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.summaries) == 0 {
		t.Fatal("no summary upserted")
	}
	return s.summaries[len(s.summaries)-1]
}

type fixture struct {
	reg   *Registry
	bc    *recorder
	sink  *sinkRecorder
	clock fakeClock
	code  string
	teamA []string
	teamB []string
}

const hostConn = "host-conn"

func testRules() Rules {
	rules := DefaultRules()
	rules.TimerSlack = 0
	return rules
}

func newFixture(t *testing.T, rules Rules) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := clockwork.NewFakeClock()
	f := &fixture{
		bc:    newRecorder(),
		sink:  &sinkRecorder{},
		clock: clock,
	}
	f.reg = NewRegistry(ctx, Config{
		Rules:  rules,
		Clock:  clock,
		Picker: func(int) int { return 0 },
	}, f.bc, f.sink)
	f.code = f.reg.CreateRoom(hostConn)
	return f
}

// newFullFixture creates a room with four slotted players on each team.
func newFullFixture(t *testing.T, rules Rules) *fixture {
	t.Helper()
	f := newFixture(t, rules)
	for i := 1; i <= 4; i++ {
		f.teamA = append(f.teamA, f.join(t, connFor(TeamA, i), TeamA))
		f.teamB = append(f.teamB, f.join(t, connFor(TeamB, i), TeamB))
	}
	return f
}

func connFor(team Team, i int) string {
	return fmt.Sprintf("conn-%s%d", team, i)
}

// findPlayer looks up a player in a snapshot by id.
func findPlayer(st events.RoomState, id string) (events.PlayerView, bool) {
	for _, p := range st.Players {
		if p.ID == id {
			return p, true
		}
	}
	return events.PlayerView{}, false
}

// playerOf is findPlayer for callers that only need the fields; a missing
// player reads as the zero view.
func playerOf(st events.RoomState, id string) events.PlayerView {
	p, _ := findPlayer(st, id)
	return p
}

func (f *fixture) join(t *testing.T, connID string, team Team) string {
	t.Helper()
	id, err := f.reg.JoinRoom(connID, f.code, team, connID)
	if err != nil {
		t.Fatalf("join %s: %v", connID, err)
	}
	return id
}

func (f *fixture) host(action ActionType) {
	f.reg.Dispatch(hostConn, Action{Type: action, Code: f.code})
}

func (f *fixture) player(connID string, action ActionType) {
	f.reg.Dispatch(connID, Action{Type: action, Code: f.code})
}

func (f *fixture) kill(connID, targetID string) {
	f.reg.Dispatch(connID, Action{Type: ActionAssignKillTarget, Code: f.code, TargetID: targetID})
}

func (f *fixture) room(t *testing.T) *Room {
	t.Helper()
	room, ok := f.reg.Room(f.code)
	if !ok {
		t.Fatalf("room %s not found", f.code)
	}
	return room
}

func (f *fixture) state(t *testing.T) events.RoomState {
	t.Helper()
	return f.room(t).Snapshot()
}

func (f *fixture) setBuzzes(t *testing.T, playerID string, n int) {
	t.Helper()
	room := f.room(t)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.players[playerID].BuzzesRemaining = n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
