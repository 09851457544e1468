package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
	"github.com/okian/scoreline/internal/domain/scoring"
	"github.com/okian/scoreline/internal/loadgen"
)

var errBadScore = errors.New(`score must look like "2-1"`)

func newPointsCommand() *cli.Command {
	return &cli.Command{
		Name:      "points",
		Usage:     "score one predicted score against a final score",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "predicted", Aliases: []string{"p"}, Required: true, Usage: "predicted score, e.g. 2-1"},
			&cli.StringFlag{Name: "actual", Aliases: []string{"a"}, Required: true, Usage: "final score, e.g. 1-0"},
		},
		Action: func(c *cli.Context) error {
			predicted, err := parseScore(c.String("predicted"))
			if err != nil {
				return fmt.Errorf("predicted: %w", err)
			}
			actual, err := parseScore(c.String("actual"))
			if err != nil {
				return fmt.Errorf("actual: %w", err)
			}
			tier := scoring.Classify(predicted, actual)
			_, err = fmt.Fprintf(c.App.Writer, "%d %s\n", tier.Points(), tier)
			return err
		},
	}
}

func newStandingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "standings",
		Usage: "rank a round from a results feed file and a predictions file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "results", Aliases: []string{"r"}, Required: true, Usage: "results feed JSON, as posted to /feed/results"},
			&cli.StringFlag{Name: "predictions", Required: true, Usage: "JSON array of predictions"},
			&cli.StringFlag{Name: "order", Value: "descending", Usage: "descending or ascending"},
			&cli.StringFlag{Name: "user", Usage: "print only this user's rank"},
		},
		Action: func(c *cli.Context) error {
			order, err := parseOrder(c.String("order"))
			if err != nil {
				return err
			}
			results, err := readResults(c.String("results"))
			if err != nil {
				return err
			}
			all, err := readPredictions(c.String("predictions"), results.Round)
			if err != nil {
				return err
			}
			predictions := savedOnly(all)

			agg := ranking.New(ranking.WithOrder(order))
			if user := c.String("user"); user != "" {
				res := agg.Rank(results, predictions, user, findUser(all))
				if !res.Ranked {
					_, err = fmt.Fprintf(c.App.Writer, "%s is unranked in round %d\n", user, results.Round)
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "%s is %d of %d with %d points\n", user, res.Rank, res.Participants, res.Points)
				return err
			}
			return printStandings(c.App.Writer, agg.Standings(results, predictions))
		},
	}
}

// parseScore reads "H-A" or "H:A". Only the colon form can carry a sign.
func parseScore(s string) (model.Score, error) {
	s = strings.TrimSpace(s)
	home, away, ok := strings.Cut(s, ":")
	if !ok {
		home, away, ok = strings.Cut(s, "-")
	}
	if !ok {
		return model.Score{}, errBadScore
	}
	h, err := strconv.Atoi(strings.TrimSpace(home))
	if err != nil {
		return model.Score{}, errBadScore
	}
	a, err := strconv.Atoi(strings.TrimSpace(away))
	if err != nil {
		return model.Score{}, errBadScore
	}
	score := model.Score{Home: h, Away: a}
	if err := score.Validate(); err != nil {
		return model.Score{}, err
	}
	return score, nil
}

func parseOrder(s string) (ranking.Order, error) {
	order, err := ranking.ParseOrder(s)
	if err != nil {
		return 0, fmt.Errorf("order: %w", err)
	}
	return order, nil
}

func readResults(path string) (model.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ResultSet{}, err
	}
	defer func() { _ = f.Close() }()

	update, err := feed.Decode(f)
	if err != nil {
		return model.ResultSet{}, fmt.Errorf("%s: %w", path, err)
	}
	results, err := update.Validate()
	if err != nil {
		return model.ResultSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}

// readPredictions loads every prediction for round, drafts included. Other
// rounds are skipped.
func readPredictions(path string, round int) ([]model.Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var all []model.Prediction
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]model.Prediction, 0, len(all))
	for i, p := range all {
		if p.Round != round {
			continue
		}
		if p.Status == "" {
			p.Status = model.StatusSaved
		}
		if err := p.ValidateScores(); err != nil {
			return nil, fmt.Errorf("%s: prediction %d: %w", path, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// savedOnly is the collection the standings are built from.
func savedOnly(all []model.Prediction) []model.Prediction {
	out := make([]model.Prediction, 0, len(all))
	for _, p := range all {
		if p.Status == model.StatusSaved {
			out = append(out, p)
		}
	}
	return out
}

// findUser resolves a user outside the saved collection, so a draft still
// gets a rank.
func findUser(all []model.Prediction) ranking.Lookup {
	return func(userID string) (model.Prediction, bool) {
		for _, p := range all {
			if p.UserID == userID {
				return p, true
			}
		}
		return model.Prediction{}, false
	}
}

func printStandings(w io.Writer, table []ranking.Standing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "POS\tUSER\tPOINTS")
	for _, row := range table {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\n", row.Position, row.UserID, row.Points)
	}
	return tw.Flush()
}

func printStats(w io.Writer, s loadgen.Stats) {
	_, _ = fmt.Fprintf(w, "predictions: %d generated, %d created, %d conflict, %d failed\n",
		s.PredictionsGenerated, s.PredictionsCreated, s.PredictionsConflict, s.PredictionsFailed)
	_, _ = fmt.Fprintf(w, "ranks: %d retrieved, leaderboard rows: %d, duration: %s\n",
		s.RanksRetrieved, s.LeaderboardRows, s.Duration)
}
