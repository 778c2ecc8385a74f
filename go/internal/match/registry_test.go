package match

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/buzzer/go/internal/match/events"
)

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, testRules())

	if len(f.code) != 6 {
		t.Fatalf("code %q has length %d, want 6", f.code, len(f.code))
	}
	created := f.bc.last(t, events.TypeRoomCreated)
	if created.Conn != hostConn || created.Data.(events.RoomCreatedPayload).Code != f.code {
		t.Errorf("roomCreated = %+v", created)
	}
	st := f.bc.last(t, events.TypeState).Data.(events.RoomState)
	if st.Phase.Kind != string(PhaseIdle) || st.QuestionIndex != 0 || st.MaxQuestions != 20 {
		t.Errorf("initial state = %+v", st)
	}
	if len(f.sink.created) != 1 || f.sink.created[0] != f.code {
		t.Errorf("match creation requested for %v, want [%s]", f.sink.created, f.code)
	}
	if subs := f.bc.subs[f.code]; len(subs) != 1 || subs[0] != hostConn {
		t.Errorf("room subscribers = %v, want host only", subs)
	}
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t, testRules())

	id, err := f.reg.JoinRoom("conn-1", strings.ToLower(f.code), TeamB, "  ")
	if err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("player id %q is not a uuid", id)
	}

	st := f.state(t)
	p := playerOf(st, id)
	if p.Name != DefaultPlayerName || p.Team != "B" || p.BuzzesRemaining != 5 || !p.Slotted {
		t.Errorf("player = %+v", p)
	}
	if len(st.Slots["B"]) != 1 || st.Slots["B"][0] != id {
		t.Errorf("slots = %v", st.Slots)
	}

	code, playerID, ok := f.reg.ResolvePlayer("conn-1")
	if !ok || code != f.code || playerID != id {
		t.Errorf("ResolvePlayer() = %q, %q, %v", code, playerID, ok)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	f := newFixture(t, testRules())

	if _, err := f.reg.JoinRoom("conn-1", "ZZZZZZ", TeamA, "x"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room error = %v, want ErrRoomNotFound", err)
	}
	if _, err := f.reg.JoinRoom("conn-1", f.code, Team("C"), "x"); !errors.Is(err, ErrInvalidTeam) {
		t.Errorf("bad team error = %v, want ErrInvalidTeam", err)
	}
	if _, _, ok := f.reg.ResolvePlayer("conn-1"); ok {
		t.Error("failed join left a binding")
	}
}

func TestTeamOverflowJoinsUnslotted(t *testing.T) {
	f := newFixture(t, testRules())

	var ids []string
	for i := 1; i <= 6; i++ {
		ids = append(ids, f.join(t, connFor(TeamA, i), TeamA))
	}

	st := f.state(t)
	if len(st.Slots["A"]) != 4 {
		t.Fatalf("team A has %d slots, want 4", len(st.Slots["A"]))
	}
	for i, id := range ids {
		if want := i < 4; playerOf(st, id).Slotted != want {
			t.Errorf("player %d slotted = %v, want %v", i+1, playerOf(st, id).Slotted, want)
		}
	}
	if len(st.Players) != 6 {
		t.Errorf("room has %d players, want 6", len(st.Players))
	}
}

func TestDisconnectKeepsPlayer(t *testing.T) {
	f := newFullFixture(t, testRules())
	a1 := f.teamA[0]

	f.reg.OnDisconnect(connFor(TeamA, 1))

	if _, _, ok := f.reg.ResolvePlayer(connFor(TeamA, 1)); ok {
		t.Error("binding survived disconnect")
	}
	if _, ok := findPlayer(f.state(t), a1); !ok {
		t.Fatal("player removed on disconnect")
	}

	f.host(ActionOpenBuzzers)
	f.player(connFor(TeamA, 1), ActionBuzz)
	if got := f.state(t).Phase.Kind; got != string(PhaseOpen) {
		t.Errorf("disconnected connection still acted, phase = %s", got)
	}
}

func TestPlayerActionForOtherRoomDropped(t *testing.T) {
	f := newFullFixture(t, testRules())
	other := f.reg.CreateRoom("other-host")
	f.reg.Dispatch("other-host", Action{Type: ActionOpenBuzzers, Code: other})

	f.reg.Dispatch(connFor(TeamA, 1), Action{Type: ActionBuzz, Code: other})

	room, _ := f.reg.Room(other)
	if got := room.Snapshot().Phase.Kind; got != string(PhaseOpen) {
		t.Fatalf("player from another room locked the buzzer, phase = %s", got)
	}
}

func TestAssignMatchID(t *testing.T) {
	f := newFixture(t, testRules())
	id := uuid.New()

	f.reg.AssignMatchID(f.code, id)

	room := f.room(t)
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.matchID != id {
		t.Errorf("matchID = %s, want %s", room.matchID, id)
	}
}

func TestReapIdleRooms(t *testing.T) {
	f := newFullFixture(t, testRules())
	f.clock.Advance(time.Minute)
	fresh := f.reg.CreateRoom("fresh-host")

	if n := f.reg.Reap(30 * time.Second); n != 1 {
		t.Fatalf("reaped %d rooms, want 1", n)
	}
	if _, ok := f.reg.Room(f.code); ok {
		t.Error("idle room still registered")
	}
	if _, ok := f.reg.Room(fresh); !ok {
		t.Error("active room reaped")
	}
	if _, _, ok := f.reg.ResolvePlayer(connFor(TeamA, 1)); ok {
		t.Error("binding to reaped room survived")
	}
	if len(f.bc.closed) != 1 || f.bc.closed[0] != f.code {
		t.Errorf("closed subscriptions = %v, want [%s]", f.bc.closed, f.code)
	}
	if _, ok := f.bc.subs[f.code]; ok {
		t.Error("reaped room kept its subscribers")
	}
}

func TestReapDoesNotHoldRegistryWhileWaitingOnRoom(t *testing.T) {
	f := newFixture(t, testRules())
	f.clock.Advance(time.Minute)
	busy, _ := f.reg.Room(f.code)

	busy.mu.Lock()
	done := make(chan int, 1)
	go func() { done <- f.reg.Reap(30 * time.Second) }()

	lookup := make(chan bool, 1)
	go func() {
		_, ok := f.reg.Room(f.code)
		lookup <- ok
	}()
	select {
	case ok := <-lookup:
		if !ok {
			t.Error("room removed while its lock was held")
		}
	case <-time.After(time.Second):
		t.Fatal("registry lookup blocked behind a busy room")
	}
	busy.mu.Unlock()

	if n := <-done; n != 1 {
		t.Errorf("reaped %d rooms, want 1", n)
	}
}

func TestRejoinRebindsConnection(t *testing.T) {
	f := newFixture(t, testRules())
	first := f.join(t, "conn-1", TeamA)
	second := f.join(t, "conn-1", TeamB)

	room, _ := f.reg.Room(f.code)
	room.mu.Lock()
	_, firstBound := room.playerConns[first]
	secondConn := room.playerConns[second]
	room.mu.Unlock()
	if firstBound {
		t.Error("earlier player still bound to the rejoined connection")
	}
	if secondConn != "conn-1" {
		t.Errorf("second player bound to %q, want conn-1", secondConn)
	}

	f.reg.OnDisconnect("conn-1")
	room.mu.Lock()
	left := len(room.playerConns)
	room.mu.Unlock()
	if left != 0 {
		t.Errorf("%d player bindings survived disconnect", left)
	}
	if _, _, ok := f.reg.ResolvePlayer("conn-1"); ok {
		t.Error("connection still resolves after disconnect")
	}
}

func TestCodeAllocatorRetriesCollisions(t *testing.T) {
	seq := []int{0, 0, 0, 1, 1, 1}
	i := 0
	alloc := &CodeAllocator{length: 3, index: func(int) int {
		v := seq[i%len(seq)]
		i++
		return v
	}}

	code := alloc.Next(func(c string) bool { return c == "AAA" })
	if code != "BBB" {
		t.Fatalf("Next() = %q, want BBB", code)
	}
}

func TestCodeAllocatorAlphabet(t *testing.T) {
	alloc := NewCodeAllocator(0)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		code := alloc.Next(func(c string) bool { return seen[c] })
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q", code, r)
			}
		}
		if seen[code] {
			t.Fatalf("code %q handed out twice", code)
		}
		seen[code] = true
	}
}

func TestReapNotifiesHook(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var reaped []string
	reg := NewRegistry(context.Background(), Config{
		Clock:  clock,
		OnReap: func(code string) { reaped = append(reaped, code) },
	}, newRecorder(), &sinkRecorder{})
	code := reg.CreateRoom("host")

	if n := reg.Reap(time.Minute); n != 0 || len(reaped) != 0 {
		t.Fatalf("fresh room reaped: n=%d hook=%v", n, reaped)
	}
	clock.Advance(2 * time.Minute)
	if n := reg.Reap(time.Minute); n != 1 {
		t.Fatalf("reaped %d rooms, want 1", n)
	}
	if len(reaped) != 1 || reaped[0] != code {
		t.Errorf("hook saw %v, want [%s]", reaped, code)
	}
}
