package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/admin/db"
	"github.com/mcdev12/buzzer/go/internal/models"
	"github.com/mcdev12/buzzer/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	ListMatches(ctx context.Context, limit int32) ([]db.Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (db.Match, error)
	ListMatchEvents(ctx context.Context, matchID uuid.UUID) ([]db.MatchEvent, error)
}

// PostgresRepository reads persisted matches for the admin views.
type PostgresRepository struct {
	queries Querier
}

var _ MatchesRepository = (*PostgresRepository)(nil)

func NewPostgresRepository(querier Querier) *PostgresRepository {
	return &PostgresRepository{queries: querier}
}

// ListMatches returns the newest matches without their events.
func (r *PostgresRepository) ListMatches(ctx context.Context, limit int) ([]models.Match, error) {
	rows, err := r.queries.ListMatches(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	out := make([]models.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, dbMatchToModel(row))
	}
	return out, nil
}

// GetMatch returns a match and its events, oldest event first.
func (r *PostgresRepository) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	row, err := r.queries.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	evs, err := r.queries.ListMatchEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list match events: %w", err)
	}

	m := dbMatchToModel(row)
	m.Events = make([]models.MatchEvent, 0, len(evs))
	for _, ev := range evs {
		m.Events = append(m.Events, models.MatchEvent{
			ID:        ev.ID,
			MatchID:   ev.MatchID,
			Type:      ev.Type,
			Payload:   sqlutil.FromNullRawMessage(ev.Payload),
			CreatedAt: sqlutil.FromSqlTime(ev.CreatedAt),
		})
	}
	return &m, nil
}

func dbMatchToModel(row db.Match) models.Match {
	return models.Match{
		ID:        row.ID,
		Code:      row.Code,
		Status:    models.MatchStatus(row.Status),
		ScoreA:    int(row.ScoreA),
		ScoreB:    int(row.ScoreB),
		Overtime:  row.Overtime,
		TeamAName: sqlutil.FromSqlString(row.TeamAName, "Team A "+row.Code),
		TeamBName: sqlutil.FromSqlString(row.TeamBName, "Team B "+row.Code),
		CreatedAt: sqlutil.FromSqlTime(row.CreatedAt),
		UpdatedAt: sqlutil.FromSqlTime(row.UpdatedAt),
	}
}
