package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/scoreline/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

const percentMultiplier = 100

// Errors returned by Run.
var (
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrSubmission    = errors.New("prediction submission failed")
	ErrSettleTimeout = errors.New("results were not stored in time")
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (Stats, error) {
	cfg.Normalize()
	stats := Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting scoreline load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("round", cfg.Round),
		logger.Int("users", cfg.Users),
		logger.Int("fixtures", cfg.Fixtures),
		logger.Int("workers", cfg.Workers),
		logger.String("order", cfg.Order.String()))

	client := newHTTPClient(cfg)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	scenario, err := Generate(ctx, cfg, time.Now())
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}
	stats.PredictionsGenerated = len(scenario.Predictions)

	submitPredictions(ctx, cfg, client, scenario.Predictions, &stats)
	if stats.PredictionsCreated != stats.PredictionsGenerated {
		return stats, fmt.Errorf("%w: %d of %d created", ErrSubmission, stats.PredictionsCreated, stats.PredictionsGenerated)
	}

	if err := postFeed(ctx, client, scenario); err != nil {
		return stats, err
	}
	if err := waitForResults(ctx, cfg, client, scenario); err != nil {
		return stats, err
	}

	board, err := fetchLeaderboard(ctx, client, cfg.Round, cfg.TopN)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardRows = len(board.Standings)

	users := make([]string, len(scenario.Predictions))
	for i, p := range scenario.Predictions {
		users[i] = p.UserID
	}
	ranks := fetchRanks(ctx, cfg, client, users)
	stats.RanksRetrieved = len(ranks)

	verifyErr := Verify(ctx, cfg, scenario, board.Standings, ranks)

	if cfg.OutputFile != "" {
		if err := saveScenario(ctx, cfg.OutputFile, scenario); err != nil {
			log.Warn(ctx, "failed to save scenario", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	return stats, verifyErr
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// waitForResults polls the matchday until every generated fixture is stored
// as completed.
func waitForResults(ctx context.Context, cfg *Config, client *HTTPClient, s Scenario) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		rs, ok, err := fetchResults(ctx, client, s.Round)
		if err == nil && ok && rs.CompletedCount() == s.Results.CompletedCount() {
			logger.Get().Info(ctx, "results stored", logger.Int("completed", rs.CompletedCount()))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: round %d", ErrSettleTimeout, s.Round)
		case <-ticker.C:
		}
	}
}

func saveScenario(ctx context.Context, filename string, s Scenario) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}

	logger.Get().Info(ctx, "scenario saved", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats Stats) {
	var successRate, perSecond float64
	if stats.PredictionsGenerated > 0 {
		successRate = float64(stats.PredictionsCreated) / float64(stats.PredictionsGenerated) * percentMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.PredictionsGenerated+stats.RanksRetrieved) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("predictionsGenerated", stats.PredictionsGenerated),
		logger.Int("predictionsCreated", stats.PredictionsCreated),
		logger.Int("predictionsConflict", stats.PredictionsConflict),
		logger.Int("predictionsFailed", stats.PredictionsFailed),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", perSecond))
}
