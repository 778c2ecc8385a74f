package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/buzzer/go/internal/match"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/mcdev12/buzzer/go/internal/models"
)

// fakeConn registers a connection with no socket behind it.
func fakeConn(cm *ConnectionManager, buffer int) *Connection {
	c := &Connection{
		ID:      uuid.New().String(),
		Send:    make(chan []byte, buffer),
		Manager: cm,
		rooms:   make(map[string]bool),
	}
	cm.registerConnection(c)
	return c
}

func receive(t *testing.T, c *Connection) events.Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var env events.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return events.Envelope{}
}

func startManager(t *testing.T, cm *ConnectionManager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)
}

type disconnects struct {
	mu  sync.Mutex
	ids []string
}

func (d *disconnects) HandleMessage(conn *Connection, message []byte) {}

func (d *disconnects) HandleDisconnect(conn *Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, conn.ID)
}

func TestBroadcastReachesRoomSubscribersInOrder(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	startManager(t, cm)
	a, b, outsider := fakeConn(cm, 8), fakeConn(cm, 8), fakeConn(cm, 8)
	cm.Subscribe(a.ID, "ROOM01")
	cm.Subscribe(b.ID, "ROOM01")
	cm.Subscribe(outsider.ID, "ROOM02")

	cm.Broadcast("ROOM01", events.TypeQuestionOpened, events.QuestionOpenedPayload{DeadlineAt: 42})
	cm.Broadcast("ROOM01", events.TypeOvertimeEntered, nil)

	for _, c := range []*Connection{a, b} {
		if got := receive(t, c).Type; got != events.TypeQuestionOpened {
			t.Errorf("first message = %s, want questionOpened", got)
		}
		env := receive(t, c)
		if env.Type != events.TypeOvertimeEntered || string(env.Data) != "{}" {
			t.Errorf("second message = %s %s", env.Type, env.Data)
		}
	}
	select {
	case raw := <-outsider.Send:
		t.Errorf("other room received %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseRoomDropsSubscribers(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a, b := fakeConn(cm, 8), fakeConn(cm, 8)
	cm.Subscribe(a.ID, "ROOM01")
	cm.Subscribe(b.ID, "ROOM01")
	cm.Subscribe(b.ID, "ROOM02")

	cm.CloseRoom("ROOM01")

	cm.handleBroadcast(BroadcastMessage{Code: "ROOM01", Data: []byte(`{}`)})
	select {
	case raw := <-a.Send:
		t.Errorf("closed room still delivered %s", raw)
	default:
	}

	cm.Subscribe(a.ID, "ROOM01")
	cm.handleBroadcast(BroadcastMessage{Code: "ROOM01", Data: []byte(`{"n":1}`)})
	if got := <-a.Send; string(got) != `{"n":1}` {
		t.Errorf("resubscribed connection got %s", got)
	}
	select {
	case raw := <-b.Send:
		t.Errorf("old subscriber received the reused code: %s", raw)
	default:
	}

	stats := cm.GetConnectionStats()
	if stats["total_connections"] != 2 || stats["subscribed_rooms"] != 2 {
		t.Errorf("stats after close = %v", stats)
	}
}

func TestSendTargetsOneConnection(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	startManager(t, cm)
	a, b := fakeConn(cm, 8), fakeConn(cm, 8)
	cm.Subscribe(a.ID, "ROOM01")
	cm.Subscribe(b.ID, "ROOM01")

	cm.Send(b.ID, events.TypeKillPromptTargets, events.KillPromptPayload{Eligible: []string{"x"}})

	env := receive(t, b)
	var prompt events.KillPromptPayload
	if err := json.Unmarshal(env.Data, &prompt); err != nil || len(prompt.Eligible) != 1 {
		t.Errorf("prompt = %s (%v)", env.Data, err)
	}
	select {
	case raw := <-a.Send:
		t.Errorf("private message leaked: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowConnectionIsDropped(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	d := &disconnects{}
	cm.SetMessageHandler(d)
	slow := fakeConn(cm, 1)
	cm.Subscribe(slow.ID, "ROOM01")

	cm.handleBroadcast(BroadcastMessage{Code: "ROOM01", Data: []byte(`{}`)})
	cm.handleBroadcast(BroadcastMessage{Code: "ROOM01", Data: []byte(`{}`)})

	stats := cm.GetConnectionStats()
	if stats["total_connections"] != 0 || stats["subscribed_rooms"] != 0 {
		t.Errorf("stats after drop = %v", stats)
	}
	if len(d.ids) != 1 || d.ids[0] != slow.ID {
		t.Errorf("disconnects = %v", d.ids)
	}
	// A second unregister is a no-op.
	cm.unregisterConnection(slow)
	if len(d.ids) != 1 {
		t.Errorf("disconnect reported %d times", len(d.ids))
	}
}

type fakeRooms struct {
	created    []string
	actions    []match.Action
	joinErr    error
	joinedTeam match.Team
	gone       []string
}

func (f *fakeRooms) CreateRoom(hostConnID string) string {
	f.created = append(f.created, hostConnID)
	return "ABC123"
}

func (f *fakeRooms) JoinRoom(connID, code string, team match.Team, name string) (string, error) {
	f.joinedTeam = team
	if f.joinErr != nil {
		return "", f.joinErr
	}
	return "player-1", nil
}

func (f *fakeRooms) Dispatch(connID string, a match.Action) {
	f.actions = append(f.actions, a)
}

func (f *fakeRooms) OnDisconnect(connID string) {
	f.gone = append(f.gone, connID)
}

type sent struct {
	conn string
	typ  events.Type
	data any
}

type sendRecorder struct {
	msgs []sent
}

func (s *sendRecorder) Subscribe(connID, code string) {}
func (s *sendRecorder) CloseRoom(code string) {}
func (s *sendRecorder) Broadcast(code string, t events.Type, data any) {}
func (s *sendRecorder) Send(connID string, t events.Type, data any) {
	s.msgs = append(s.msgs, sent{conn: connID, typ: t, data: data})
}

func TestRouterJoinResults(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		ok     bool
		reason string
	}{
		{"joined", nil, true, ""},
		{"unknown room", match.ErrRoomNotFound, false, ReasonRoomNotFound},
		{"bad team", match.ErrInvalidTeam, false, ReasonInvalidTeam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms := &fakeRooms{joinErr: tt.err}
			out := &sendRecorder{}
			rt := NewRouter(rooms, out)

			rt.route("conn-1", []byte(`{"type":"joinRoom","data":{"code":"abc123","team":"B","name":"Ana"}}`))

			if rooms.joinedTeam != match.TeamB {
				t.Errorf("team = %q", rooms.joinedTeam)
			}
			if len(out.msgs) != 1 || out.msgs[0].typ != events.TypeJoinResult || out.msgs[0].conn != "conn-1" {
				t.Fatalf("sent = %+v", out.msgs)
			}
			res := out.msgs[0].data.(events.JoinResultPayload)
			if res.OK != tt.ok || res.Reason != tt.reason {
				t.Errorf("joinResult = %+v", res)
			}
			if tt.ok && res.PlayerID != "player-1" {
				t.Errorf("playerId = %q", res.PlayerID)
			}
		})
	}
}

func TestRouterDispatchesActions(t *testing.T) {
	rooms := &fakeRooms{}
	rt := NewRouter(rooms, &sendRecorder{})

	rt.route("host", []byte(`{"type":"createRoom"}`))
	rt.route("p1", []byte(`{"type":"assignKillTarget","data":{"code":"ABC123","targetId":"b2"}}`))
	rt.route("p1", []byte(`{"type":"ping","data":{"code":"ABC123","sentAt":1700000000123}}`))
	rt.route("p1", []byte(`not json`))
	rt.route("p1", []byte(`{"data":{}}`))
	rt.HandleDisconnect(&Connection{ID: "p1"})

	if len(rooms.created) != 1 || rooms.created[0] != "host" {
		t.Errorf("created = %v", rooms.created)
	}
	if len(rooms.actions) != 2 {
		t.Fatalf("actions = %+v", rooms.actions)
	}
	kill := rooms.actions[0]
	if kill.Type != match.ActionAssignKillTarget || kill.Code != "ABC123" || kill.TargetID != "b2" {
		t.Errorf("kill action = %+v", kill)
	}
	if ping := rooms.actions[1]; ping.Type != match.ActionPing || ping.SentAt != 1700000000123 {
		t.Errorf("ping action = %+v", ping)
	}
	if len(rooms.gone) != 1 || rooms.gone[0] != "p1" {
		t.Errorf("disconnects = %v", rooms.gone)
	}
}

type nopSink struct{}

func (nopSink) CreateMatch(code string) {}
func (nopSink) Append(code string, matchID uuid.UUID, eventType string, payload any) {}
func (nopSink) UpsertSummary(summary models.MatchSummary) {}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	c := &wsClient{t: t, conn: conn}
	c.await(events.TypeConnected)
	return c
}

func (c *wsClient) send(typ string, data any) {
	c.t.Helper()
	raw, _ := json.Marshal(data)
	if err := c.conn.WriteJSON(map[string]any{"type": typ, "data": json.RawMessage(raw)}); err != nil {
		c.t.Fatalf("write %s: %v", typ, err)
	}
}

// await reads until a message of type typ arrives.
func (c *wsClient) await(typ events.Type) json.RawMessage {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env events.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.t.Fatalf("waiting for %s: %v", typ, err)
		}
		if env.Type == typ {
			return env.Data
		}
	}
}

func TestWebSocketEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := NewConnectionManager(DefaultConnectionConfig())
	registry := match.NewRegistry(ctx, match.Config{Clock: clockwork.NewFakeClock()}, cm, nopSink{})
	svc := NewService(cm, registry)
	go svc.Start(ctx)

	r := mux.NewRouter()
	svc.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	host := dial(t, srv)
	host.send("createRoom", nil)
	var created events.RoomCreatedPayload
	if err := json.Unmarshal(host.await(events.TypeRoomCreated), &created); err != nil || len(created.Code) != 6 {
		t.Fatalf("roomCreated = %+v (%v)", created, err)
	}

	player := dial(t, srv)
	player.send("joinRoom", map[string]string{"code": "NOPE00", "team": "A", "name": "Ana"})
	var nack events.JoinResultPayload
	_ = json.Unmarshal(player.await(events.TypeJoinResult), &nack)
	if nack.OK || nack.Reason != ReasonRoomNotFound {
		t.Errorf("join unknown room = %+v", nack)
	}

	player.send("joinRoom", map[string]string{"code": created.Code, "team": "A", "name": "Ana"})
	var ack events.JoinResultPayload
	_ = json.Unmarshal(player.await(events.TypeJoinResult), &ack)
	if !ack.OK || ack.PlayerID == "" {
		t.Fatalf("join = %+v", ack)
	}

	host.send("openBuzzers", map[string]string{"code": created.Code})
	player.await(events.TypeQuestionOpened)
	player.send("buzz", map[string]string{"code": created.Code})

	var winner events.LockoutPayload
	if err := json.Unmarshal(host.await(events.TypeLockoutWinner), &winner); err != nil {
		t.Fatalf("decode lockoutWinner: %v", err)
	}
	if winner.PlayerID != ack.PlayerID || winner.Team != "A" || winner.Name != "Ana" {
		t.Errorf("lockoutWinner = %+v", winner)
	}

	var state events.RoomState
	if err := json.Unmarshal(player.await(events.TypeState), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Phase.Kind != string(match.PhaseLocked) || state.Phase.PlayerID != ack.PlayerID {
		t.Errorf("phase = %+v", state.Phase)
	}
}

func TestStatsEndpoint(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	registry := match.NewRegistry(context.Background(), match.Config{Clock: clockwork.NewFakeClock()}, cm, nopSink{})
	fakeConn(cm, 8)
	registry.CreateRoom("someone")

	h := NewWebSocketHandler(cm, registry)
	rec := httptest.NewRecorder()
	h.HandleConnectionStats(rec, httptest.NewRequest("GET", "/ws/stats", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["total_connections"] != float64(1) || body["active_rooms"] != float64(1) {
		t.Errorf("stats = %v", body)
	}
}

