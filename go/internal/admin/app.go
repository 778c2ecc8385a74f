package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// MatchesRepository defines what the app layer needs from the repository
type MatchesRepository interface {
	ListMatches(ctx context.Context, limit int) ([]models.Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
}

// App serves the read-only admin views over persisted matches
type App struct {
	repo MatchesRepository
}

func NewApp(repo MatchesRepository) *App {
	return &App{repo: repo}
}

// ListMatches returns the most recent matches. A zero limit means the default.
func (a *App) ListMatches(ctx context.Context, limit int) ([]models.Match, error) {
	matches, err := a.repo.ListMatches(ctx, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

// GetMatch returns one match with its audit trail.
func (a *App) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	m, err := a.repo.GetMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
