// Package repository defines storage contracts for matchdays and predictions
// along with in-memory, Postgres and Redis implementations.
package repository

import (
	"context"

	"github.com/okian/scoreline/internal/domain/model"
)

// MatchdayStore persists the latest result set of each round.
type MatchdayStore interface {
	// PutResults replaces the stored result set for rs.Round.
	PutResults(ctx context.Context, rs model.ResultSet) error

	// Results returns the result set for round or ErrNotFound.
	Results(ctx context.Context, round int) (model.ResultSet, error)

	// Rounds lists known rounds, most recent first.
	Rounds(ctx context.Context) ([]int, error)
}

// PredictionStore persists user predictions. Implementations enforce at most
// one prediction per user and round and return ErrConflict otherwise.
type PredictionStore interface {
	// Create stores p. p.ID must be set by the caller.
	Create(ctx context.Context, p model.Prediction) error

	// Get returns the prediction with id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Prediction, error)

	// UpdateScores replaces the scores of prediction id.
	UpdateScores(ctx context.Context, id string, scores map[model.MatchID]model.Score) (model.Prediction, error)

	// Delete removes prediction id.
	Delete(ctx context.Context, id string) error

	// ListByRound returns the round's predictions with the given status,
	// oldest first. An empty status matches every status.
	ListByRound(ctx context.Context, round int, status model.PredictionStatus) ([]model.Prediction, error)

	// FindByUser returns userID's prediction for round or ErrNotFound.
	FindByUser(ctx context.Context, userID string, round int) (model.Prediction, error)

	// ListByUser returns all of userID's predictions, oldest first.
	ListByUser(ctx context.Context, userID string) ([]model.Prediction, error)
}

// Store bundles both contracts.
type Store interface {
	MatchdayStore
	PredictionStore

	// Count returns the number of stored predictions.
	Count(ctx context.Context) int

	// Close releases underlying connections.
	Close() error
}
