package gateway

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// RoomRegistry is the registry as seen by the gateway.
type RoomRegistry interface {
	Rooms
	StatsProvider
}

// Service is the game gateway: WebSocket connections in, room messages out.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	router            *Router
}

// NewService wires the connection manager to the registry. cm must be the
// Broadcaster the registry was built with.
func NewService(cm *ConnectionManager, registry RoomRegistry) *Service {
	router := NewRouter(registry, cm)
	cm.SetMessageHandler(router)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, registry),
		router:            router,
	}
}

// Start delivers outbound messages until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting game gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(r *mux.Router) {
	s.wsHandler.RegisterRoutes(r)
	log.Info().Msg("game gateway routes registered")
}
