package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/buzzer/go/internal/match/outbox"
	"github.com/mcdev12/buzzer/go/internal/models"
	"github.com/mcdev12/buzzer/go/internal/sqlutil"
)

//go:embed schema.sql
var schema string

// PostgresStore writes matches and their audit events with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var (
	_ outbox.Store  = (*PostgresStore)(nil)
	_ outbox.Pinger = (*PostgresStore)(nil)
)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the match tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateMatch(ctx context.Context, code string) (uuid.UUID, error) {
	const q = `
		INSERT INTO matches (id, code, status, team_a_name, team_b_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	id := uuid.New()
	var created uuid.UUID
	err := s.pool.QueryRow(ctx, q,
		id, code, models.MatchStatusLive, teamName("A", code), teamName("B", code),
	).Scan(&created)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert match: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event models.MatchEvent) error {
	const q = `
		INSERT INTO match_events (id, match_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	payload := sqlutil.ToNullRawMessage(event.Payload)
	if _, err := s.pool.Exec(ctx, q, event.ID, event.MatchID, event.Type, payload, event.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert match event: %w", err)
	}
	return nil
}

// UpdateMatch applies a summary. A completed match never goes back to live.
func (s *PostgresStore) UpdateMatch(ctx context.Context, summary models.MatchSummary) error {
	return sqlutil.RunTx(ctx, s.pool, func(tx pgx.Tx) error {
		const lock = `SELECT status FROM matches WHERE id = $1 FOR UPDATE`

		var current models.MatchStatus
		if err := tx.QueryRow(ctx, lock, summary.MatchID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrMatchNotFound
			}
			return fmt.Errorf("failed to lock match: %w", err)
		}

		status := summary.Status
		if current == models.MatchStatusCompleted {
			status = models.MatchStatusCompleted
		}

		const q = `
			UPDATE matches
			SET status = $2, score_a = $3, score_b = $4, overtime = $5, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, q, summary.MatchID, status, summary.ScoreA, summary.ScoreB, summary.Overtime); err != nil {
			return fmt.Errorf("failed to update match: %w", err)
		}
		return nil
	})
}

func teamName(team, code string) string {
	return fmt.Sprintf("Team %s %s", team, code)
}
