// Command scorecalc scores predictions offline and load tests a running
// scoreline service.
package main

import (
	"io"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/okian/scoreline/internal/loadgen"
	"github.com/okian/scoreline/pkg/logger"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		os.Stderr.WriteString("scorecalc: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "scorecalc",
		Usage:     "score predictions and exercise a scoreline service",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-format", Value: logger.FormatText, Usage: "text or json"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			if err := logger.Init(logger.WithWriter(c.App.ErrWriter), logger.WithFormat(c.String("log-format"))); err != nil {
				return err
			}
			return logger.SetLevelString(c.String("log-level"))
		},
		Commands: []*cli.Command{
			newPointsCommand(),
			newStandingsCommand(),
			newLoadTestCommand(),
		},
	}
}

func newLoadTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "loadtest",
		Usage: "play a generated round against a running service and verify its standings",
		Description: "Predictions are submitted before the results feed, so the round must not\n" +
			"have stored results yet. Pick a fresh --round on each run.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.IntFlag{Name: "round", Value: 1, Usage: "round to play"},
			&cli.IntFlag{Name: "users", Value: loadgen.DefaultUsers, Usage: "synthetic users"},
			&cli.IntFlag{Name: "fixtures", Value: loadgen.DefaultFixtures, Usage: "fixtures in the round"},
			&cli.IntFlag{Name: "top", Value: loadgen.DefaultTopN, Usage: "leaderboard rows to fetch, capped at the server's default max_leaderboard_limit"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * 2, Usage: "concurrent HTTP workers"},
			&cli.DurationFlag{Name: "timeout", Value: loadgen.DefaultTimeout, Usage: "per-request timeout"},
			&cli.DurationFlag{Name: "settle-timeout", Value: loadgen.DefaultSettleTimeout, Usage: "how long to wait for results"},
			&cli.StringFlag{Name: "order", Value: "descending", Usage: "rank order the service uses"},
			&cli.StringFlag{Name: "output", Usage: "write the generated scenario to this file"},
		},
		Action: func(c *cli.Context) error {
			order, err := parseOrder(c.String("order"))
			if err != nil {
				return err
			}
			stats, err := loadgen.Run(c.Context, &loadgen.Config{
				BaseURL:       c.String("url"),
				Round:         c.Int("round"),
				Users:         c.Int("users"),
				Fixtures:      c.Int("fixtures"),
				TopN:          c.Int("top"),
				Workers:       c.Int("workers"),
				Timeout:       c.Duration("timeout"),
				SettleTimeout: c.Duration("settle-timeout"),
				Order:         order,
				OutputFile:    c.String("output"),
			})
			printStats(c.App.Writer, stats)
			return err
		},
	}
}
