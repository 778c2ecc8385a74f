package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/clients/conference"
	"github.com/mcdev12/buzzer/go/internal/admin"
	"github.com/mcdev12/buzzer/go/internal/config"
	"github.com/mcdev12/buzzer/go/internal/match"
	"github.com/mcdev12/buzzer/go/internal/match/gateway"
	"github.com/mcdev12/buzzer/go/internal/match/outbox"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Registry     *match.Registry
	Gateway      *gateway.Service
	Outbox       *outbox.Worker
	OutboxHealth *outbox.WorkerHealthChecker
	Admin        *admin.Service
	AdminHTTP    *admin.Handler
	Conference   *conference.Handler

	publisher *outbox.JetStreamPublisher
	rooms     config.RoomsConfig
}

func setupServices(ctx context.Context, cfg config.Config, stores *Stores) (*Services, error) {
	// Outbox: engine → queue → store (+ JetStream)
	metrics := outbox.NewCounterMetrics()

	var registry *match.Registry
	opts := []outbox.Option{
		outbox.WithMetrics(metrics),
		outbox.WithMatchCreated(func(code string, id uuid.UUID) {
			registry.AssignMatchID(code, id)
		}),
	}

	var publisher *outbox.JetStreamPublisher
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Stream != "" {
			jsCfg.StreamName = cfg.NATS.Stream
		}
		p, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			log.Warn().Err(err).Str("nats_url", cfg.NATS.URL).Msg("event fan-out disabled")
		} else {
			publisher, natsConn = p, p.Conn()
			opts = append(opts, outbox.WithPublisher(outbox.NewMetricPublisher(p, metrics)))
		}
	}

	worker := outbox.NewWorker(stores.Writer, outbox.Config{
		QueueSize: cfg.Outbox.QueueSize,
		OpTimeout: cfg.Outbox.OpTimeout,
	}, opts...)

	// Conferencing
	confCfg := conference.Config{
		URL:       cfg.LiveKit.URL,
		APIKey:    cfg.LiveKit.APIKey,
		APISecret: cfg.LiveKit.APISecret,
		TokenTTL:  cfg.LiveKit.TokenTTL,
	}
	issuer := conference.NewIssuer(confCfg, nil)
	confRooms := conference.NewRoomClient(issuer)

	// Engine + gateway
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	registry = match.NewRegistry(ctx, match.Config{
		Rules:  cfg.Rules,
		Codes:  match.NewCodeAllocator(cfg.Rooms.CodeLength),
		OnReap: closeConferenceRoom(confRooms),
	}, cm, worker)

	// Admin: repository → app → service
	adminApp := admin.NewApp(stores.Reader)

	return &Services{
		Registry:     registry,
		Gateway:      gateway.NewService(cm, registry),
		Outbox:       worker,
		OutboxHealth: outbox.NewWorkerHealthChecker(worker, stores.Pinger, natsConn, metrics),
		Admin:        admin.NewService(adminApp),
		AdminHTTP:    admin.NewHandler(adminApp),
		Conference:   conference.NewHandler(confCfg, issuer, confRooms),
		publisher:    publisher,
		rooms:        cfg.Rooms,
	}, nil
}

// Start launches the background loops. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Outbox.Start(ctx); err != nil {
		return fmt.Errorf("failed to start outbox worker: %w", err)
	}
	go s.Gateway.Start(ctx)

	if s.rooms.IdleTTL > 0 {
		log.Info().Dur("idle_ttl", s.rooms.IdleTTL).Msg("idle room reaper enabled")
		go s.Registry.RunReaper(ctx, s.rooms.ReapInterval, s.rooms.IdleTTL)
	}
	return nil
}

// Stop flushes the outbox and closes the bus connection.
func (s *Services) Stop() {
	if err := s.Outbox.Stop(); err != nil {
		log.Warn().Err(err).Msg("outbox worker stop")
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func closeConferenceRoom(rooms *conference.RoomClient) func(code string) {
	if rooms == nil {
		return nil
	}
	return func(code string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rooms.DeleteRoom(ctx, code); err != nil {
			log.Warn().Err(err).Str("room_code", code).Msg("conference room not deleted")
		}
	}
}
