package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/mcdev12/buzzer/go/internal/admin"
	admindb "github.com/mcdev12/buzzer/go/internal/admin/db"
	"github.com/mcdev12/buzzer/go/internal/dbconfig"
	"github.com/mcdev12/buzzer/go/internal/match/outbox"
	"github.com/mcdev12/buzzer/go/internal/match/repository"
	"github.com/rs/zerolog/log"
)

// Stores groups the write side used by the outbox and the read side used by
// the admin views.
type Stores struct {
	Writer outbox.Store
	Pinger outbox.Pinger
	Reader admin.MatchesRepository

	pool *pgxpool.Pool
	db   *sql.DB
}

func setupStores(ctx context.Context, dbCfg dbconfig.Config) (*Stores, error) {
	if !dbCfg.Enabled() {
		log.Warn().Msg("no database configured, matches are kept in memory")
		mem := repository.NewMemoryStore()
		return &Stores{Writer: mem, Pinger: mem, Reader: mem}, nil
	}

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	writer := repository.NewPostgresStore(pool)
	if err := writer.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		pool.Close()
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("database", dbCfg.Target()).Msg("connected to database")
	return &Stores{
		Writer: writer,
		Pinger: writer,
		Reader: admin.NewPostgresRepository(admindb.New(database)),
		pool:   pool,
		db:     database,
	}, nil
}

func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
