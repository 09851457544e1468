package model

import (
	"fmt"
	"time"
)

// PredictionStatus tracks whether a prediction takes part in ranking.
type PredictionStatus string

// Prediction statuses.
const (
	StatusSaved PredictionStatus = "saved"
	StatusDraft PredictionStatus = "draft"
)

// Valid reports whether s is a known status.
func (s PredictionStatus) Valid() bool {
	return s == StatusSaved || s == StatusDraft
}

// Prediction holds one user's predicted scores for one round.
// A user has at most one prediction per round.
type Prediction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Round     int               `json:"round"`
	Scores    map[MatchID]Score `json:"scores"`
	Status    PredictionStatus  `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ValidateScores checks every predicted score.
func (p Prediction) ValidateScores() error {
	for id, s := range p.Scores {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("match %d: %w", id, err)
		}
	}
	return nil
}

// Tally is a user's accumulated points for a round.
type Tally struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}
