// Package loadgen drives a running scoreline service with a generated round.
//
// It submits one saved prediction per synthetic user, posts a finished
// results feed for the round, then reads the leaderboard and every user's
// rank back and checks them against standings computed locally.
package loadgen

import (
	"time"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Round         int           // Round to play
	Users         int           // Number of synthetic users
	Fixtures      int           // Fixtures in the round
	TopN          int           // Leaderboard rows to fetch
	Workers       int           // Concurrent HTTP workers
	Timeout       time.Duration // Per-request timeout
	SettleTimeout time.Duration // How long to wait for results to be stored
	PollInterval  time.Duration // Delay between settlement polls
	Order         ranking.Order // Order the service ranks in
	OutputFile    string        // Scenario dump; empty disables it
}

// Scenario is everything generated for one run.
type Scenario struct {
	Round       int                `json:"round"`
	Predictions []model.Prediction `json:"predictions"`
	Feed        feed.Update        `json:"feed"`
	Results     model.ResultSet    `json:"-"`
}

// Stats holds run statistics.
type Stats struct {
	PredictionsGenerated int
	PredictionsCreated   int
	PredictionsConflict  int
	PredictionsFailed    int
	RanksRetrieved       int
	LeaderboardRows      int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}

// createPredictionRequest mirrors the body of POST /predictions.
type createPredictionRequest struct {
	UserID string                        `json:"user_id"`
	Round  int                           `json:"round"`
	Scores map[model.MatchID]model.Score `json:"scores"`
	Status model.PredictionStatus        `json:"status"`
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

type leaderboardResponse struct {
	Round     int                `json:"round"`
	Standings []ranking.Standing `json:"standings"`
}

// RankRow is one user's rank as reported by the service.
type RankRow struct {
	Round        int    `json:"round"`
	UserID       string `json:"user_id"`
	Rank         *int   `json:"rank"`
	Points       int    `json:"points"`
	Participants int    `json:"participants"`
}
