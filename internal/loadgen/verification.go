package loadgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/scoreline/internal/domain/ranking"
	"github.com/okian/scoreline/pkg/logger"
)

// ErrVerification is returned when the service disagrees with local standings.
var ErrVerification = errors.New("verification failed")

// maxReported bounds how many mismatches are listed in the returned error.
const maxReported = 10

// Verify compares the service's leaderboard and ranks against standings
// computed locally. Users on equal points may appear in any order, so rows
// are checked by points per position and per user.
func Verify(ctx context.Context, cfg *Config, s Scenario, board []ranking.Standing, ranks map[string]RankRow) error {
	expected := ranking.New(ranking.WithOrder(cfg.Order)).Standings(s.Results, s.Predictions)
	pointsByUser := make(map[string]int, len(expected))
	for _, row := range expected {
		pointsByUser[row.UserID] = row.Points
	}

	var problems []error
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	wantRows := min(cfg.TopN, len(expected))
	if len(board) != wantRows {
		report("leaderboard has %d rows, want %d", len(board), wantRows)
	}
	for i, row := range board {
		if i >= len(expected) {
			break
		}
		if row.Position != i+1 {
			report("leaderboard row %d has position %d", i, row.Position)
		}
		if row.Points != expected[i].Points {
			report("position %d has %d points, want %d", row.Position, row.Points, expected[i].Points)
		}
		if want, ok := pointsByUser[row.UserID]; !ok || want != row.Points {
			report("user %s listed with %d points, want %d", row.UserID, row.Points, want)
		}
	}

	if len(ranks) != len(expected) {
		report("retrieved %d ranks, want %d", len(ranks), len(expected))
	}
	for userID, row := range ranks {
		want, ok := pointsByUser[userID]
		switch {
		case !ok:
			report("unexpected rank for %s", userID)
		case row.Rank == nil:
			report("user %s is unranked", userID)
		case *row.Rank < 1 || *row.Rank > len(expected):
			report("user %s has rank %d outside 1..%d", userID, *row.Rank, len(expected))
		case row.Points != want:
			report("user %s has %d points, want %d", userID, row.Points, want)
		case expected[*row.Rank-1].Points != want:
			report("user %s at rank %d with %d points, that position holds %d", userID, *row.Rank, want, expected[*row.Rank-1].Points)
		case row.Participants != len(expected):
			report("user %s sees %d participants, want %d", userID, row.Participants, len(expected))
		}
	}

	if len(problems) == 0 {
		logger.Get().Info(ctx, "verification passed",
			logger.Int("participants", len(expected)),
			logger.Int("leaderboardRows", len(board)))
		return nil
	}

	logger.Get().Error(ctx, "verification found mismatches", logger.Int("count", len(problems)))
	if len(problems) > maxReported {
		problems = append(problems[:maxReported], fmt.Errorf("and %d more", len(problems)-maxReported))
	}
	return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
}
