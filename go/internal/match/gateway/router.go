package gateway

import (
	"errors"

	"github.com/mcdev12/buzzer/go/internal/match"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

// Rooms is what the router needs from the room registry.
type Rooms interface {
	CreateRoom(hostConnID string) string
	JoinRoom(connID, code string, team match.Team, name string) (string, error)
	Dispatch(connID string, a match.Action)
	OnDisconnect(connID string)
}

// Router turns inbound frames into registry calls.
type Router struct {
	rooms Rooms
	out   match.Broadcaster
}

var _ MessageHandler = (*Router)(nil)

func NewRouter(rooms Rooms, out match.Broadcaster) *Router {
	return &Router{rooms: rooms, out: out}
}

func (rt *Router) HandleMessage(conn *Connection, message []byte) {
	rt.route(conn.ID, message)
}

func (rt *Router) HandleDisconnect(conn *Connection) {
	rt.rooms.OnDisconnect(conn.ID)
}

func (rt *Router) route(connID string, message []byte) {
	t, data, err := decodeMessage(message)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", connID).Msg("malformed message dropped")
		return
	}

	switch t {
	case TypeCreateRoom:
		rt.rooms.CreateRoom(connID)
	case TypeJoinRoom:
		rt.join(connID, data)
	default:
		rt.rooms.Dispatch(connID, data.action(t))
	}
}

func (rt *Router) join(connID string, data inboundData) {
	playerID, err := rt.rooms.JoinRoom(connID, data.Code, match.Team(data.Team), data.Name)
	if err != nil {
		reason := ReasonRoomNotFound
		if errors.Is(err, match.ErrInvalidTeam) {
			reason = ReasonInvalidTeam
		}
		log.Debug().Err(err).Str("connection_id", connID).Str("room_code", data.Code).Msg("join rejected")
		rt.out.Send(connID, events.TypeJoinResult, events.JoinResultPayload{OK: false, Reason: reason})
		return
	}
	rt.out.Send(connID, events.TypeJoinResult, events.JoinResultPayload{OK: true, PlayerID: playerID})
}
