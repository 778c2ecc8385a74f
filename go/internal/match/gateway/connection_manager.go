package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/buzzer/go/internal/match"
	"github.com/mcdev12/buzzer/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns the WebSocket connections of the process and
// delivers room messages to them. It is the engine's Broadcaster.
type ConnectionManager struct {
	conns map[string]*Connection
	// Subscribers per room code.
	rooms map[string]map[*Connection]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	// Single queue so messages for a room leave in the order they were produced.
	broadcastCh chan BroadcastMessage
}

var _ match.Broadcaster = (*ConnectionManager)(nil)

// MessageHandler receives what connections read and when they go away.
type MessageHandler interface {
	HandleMessage(conn *Connection, message []byte)
	HandleDisconnect(conn *Connection)
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	// Room codes this connection receives broadcasts for. Guarded by Manager.mu.
	rooms map[string]bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an encoded frame for a room, or for one connection when ConnID is set.
type BroadcastMessage struct {
	Code   string
	ConnID string
	Type   events.Type
	Data   []byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// SetMessageHandler installs the inbound router. Must be called before Start.
func (cm *ConnectionManager) SetMessageHandler(h MessageHandler) {
	cm.handler = h
}

// Start delivers queued messages until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request and starts the connection pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := cm.newConnection(conn)
	cm.registerConnection(connection)
	cm.Send(connection.ID, events.TypeConnected, events.ConnectedPayload{ConnectionID: connection.ID})

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) newConnection(conn *websocket.Conn) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		rooms:       make(map[string]bool),
	}
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.conns)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and tells the handler once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.conns[conn.ID]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.conns, conn.ID)
	for code := range conn.rooms {
		if subs := cm.rooms[code]; subs != nil {
			delete(subs, conn)
			if len(subs) == 0 {
				delete(cm.rooms, code)
			}
		}
	}
	close(conn.Send)
	cm.mu.Unlock()

	if cm.handler != nil {
		cm.handler.HandleDisconnect(conn)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Msg("connection unregistered")
}

// Subscribe implements match.Broadcaster.
func (cm *ConnectionManager) Subscribe(connID, code string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.conns[connID]
	if !ok {
		return
	}
	if cm.rooms[code] == nil {
		cm.rooms[code] = make(map[*Connection]bool)
	}
	cm.rooms[code][conn] = true
	conn.rooms[code] = true
}

// CloseRoom implements match.Broadcaster. Connections stay open; they only
// stop receiving messages for code.
func (cm *ConnectionManager) CloseRoom(code string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	subs := cm.rooms[code]
	for conn := range subs {
		delete(conn.rooms, code)
	}
	delete(cm.rooms, code)

	log.Debug().
		Str("room_code", code).
		Int("subscribers", len(subs)).
		Msg("room subscriptions closed")
}

// Broadcast implements match.Broadcaster.
func (cm *ConnectionManager) Broadcast(code string, t events.Type, data any) {
	cm.enqueue(BroadcastMessage{Code: code, Type: t}, data)
}

// Send implements match.Broadcaster.
func (cm *ConnectionManager) Send(connID string, t events.Type, data any) {
	cm.enqueue(BroadcastMessage{ConnID: connID, Type: t}, data)
}

func (cm *ConnectionManager) enqueue(msg BroadcastMessage, data any) {
	encoded, err := events.Encode(msg.Type, data)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(msg.Type)).Msg("failed to encode outbound message")
		return
	}
	msg.Data = encoded

	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().
			Str("room_code", msg.Code).
			Str("connection_id", msg.ConnID).
			Str("event_type", string(msg.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	var slow []*Connection
	delivered := 0

	// Sends happen under the read lock so no channel is closed mid-send.
	cm.mu.RLock()
	var targets []*Connection
	if message.ConnID != "" {
		if conn, ok := cm.conns[message.ConnID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.rooms[message.Code] {
			targets = append(targets, conn)
		}
	}
	for _, conn := range targets {
		select {
		case conn.Send <- message.Data:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Type)).
		Str("room_code", message.Code).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	roomCounts := make(map[string]int, len(cm.rooms))
	for code, subs := range cm.rooms {
		roomCounts[code] = len(subs)
	}

	return map[string]interface{}{
		"total_connections": len(cm.conns),
		"subscribed_rooms":  len(cm.rooms),
		"room_connections":  roomCounts,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads frames and hands them to the manager's handler.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c, message)
		}
	}
}
