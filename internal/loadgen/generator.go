package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
)

// randIntn returns a uniform int in [0, n) using crypto/rand.
func randIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randomScore() model.Score {
	return model.Score{Home: randIntn(maxGoals), Away: randIntn(maxGoals)}
}

// Generate builds a scenario for cfg: one finished fixture list and one saved
// prediction per user covering every fixture. Kickoffs lie in the past so the
// round closes as soon as the feed is stored.
func Generate(ctx context.Context, cfg *Config, now time.Time) (Scenario, error) {
	logger.Get().Info(ctx, "generating scenario",
		logger.Int("round", cfg.Round),
		logger.Int("users", cfg.Users),
		logger.Int("fixtures", cfg.Fixtures))

	ids := make([]model.MatchID, cfg.Fixtures)
	fixtures := make([]feed.Fixture, cfg.Fixtures)
	start := now.Add(-roundStartedAt).UTC()
	for i := range fixtures {
		// Ids are unique per round so reruns on other rounds never collide.
		ids[i] = model.MatchID(cfg.Round*1000 + i + 1)
		actual := randomScore()

		var f feed.Fixture
		f.Fixture.ID = int64(ids[i])
		f.Fixture.Date = start.Add(time.Duration(i) * kickoffSpacing).Format(time.RFC3339)
		f.Fixture.Status.Short = feed.StatusFinished
		f.Goals.Home = &actual.Home
		f.Goals.Away = &actual.Away
		fixtures[i] = f
	}

	update := feed.Update{
		EventID:  fmt.Sprintf("loadgen-%d-%s", cfg.Round, uuid.NewString()),
		Round:    cfg.Round,
		Fixtures: fixtures,
	}
	results, err := update.Validate()
	if err != nil {
		return Scenario{}, fmt.Errorf("generated feed is invalid: %w", err)
	}

	predictions := make([]model.Prediction, cfg.Users)
	for i := range predictions {
		if err := ctx.Err(); err != nil {
			return Scenario{}, fmt.Errorf("context cancelled during generation: %w", err)
		}
		scores := make(map[model.MatchID]model.Score, len(ids))
		for _, id := range ids {
			scores[id] = randomScore()
		}
		predictions[i] = model.Prediction{
			UserID: "user-" + uuid.NewString(),
			Round:  cfg.Round,
			Scores: scores,
			Status: model.StatusSaved,
		}
	}

	logger.Get().Info(ctx, "generated scenario", logger.Int("predictions", len(predictions)))
	return Scenario{
		Round:       cfg.Round,
		Predictions: predictions,
		Feed:        update,
		Results:     results,
	}, nil
}
