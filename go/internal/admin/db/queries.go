// Package db holds the hand-written read queries for the admin views.
package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Match struct {
	ID        uuid.UUID
	Code      string
	Status    string
	ScoreA    int32
	ScoreB    int32
	Overtime  bool
	TeamAName sql.NullString
	TeamBName sql.NullString
	CreatedAt sql.NullTime
	UpdatedAt sql.NullTime
}

type MatchEvent struct {
	ID        uuid.UUID
	MatchID   uuid.UUID
	Type      string
	Payload   pqtype.NullRawMessage
	CreatedAt sql.NullTime
}

const listMatches = `-- name: ListMatches :many
SELECT id, code, status, score_a, score_b, overtime, team_a_name, team_b_name, created_at, updated_at
FROM matches
ORDER BY created_at DESC
LIMIT $1
`

func (q *Queries) ListMatches(ctx context.Context, limit int32) ([]Match, error) {
	rows, err := q.db.QueryContext(ctx, listMatches, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Match
	for rows.Next() {
		var i Match
		if err := scanMatch(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMatch = `-- name: GetMatch :one
SELECT id, code, status, score_a, score_b, overtime, team_a_name, team_b_name, created_at, updated_at
FROM matches
WHERE id = $1
`

func (q *Queries) GetMatch(ctx context.Context, id uuid.UUID) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatch, id)
	var i Match
	err := scanMatch(row, &i)
	return i, err
}

const listMatchEvents = `-- name: ListMatchEvents :many
SELECT id, match_id, type, payload, created_at
FROM match_events
WHERE match_id = $1
ORDER BY created_at ASC
`

func (q *Queries) ListMatchEvents(ctx context.Context, matchID uuid.UUID) ([]MatchEvent, error) {
	rows, err := q.db.QueryContext(ctx, listMatchEvents, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchEvent
	for rows.Next() {
		var i MatchEvent
		if err := rows.Scan(
			&i.ID,
			&i.MatchID,
			&i.Type,
			&i.Payload,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(s scanner, i *Match) error {
	return s.Scan(
		&i.ID,
		&i.Code,
		&i.Status,
		&i.ScoreA,
		&i.ScoreB,
		&i.Overtime,
		&i.TeamAName,
		&i.TeamBName,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}
