package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/okian/scoreline/internal/adapters/repository"
	service "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
	"github.com/okian/scoreline/internal/domain/scoring"
	"github.com/okian/scoreline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var kickoff = time.Date(2024, 3, 2, 12, 30, 0, 0, time.UTC)

// round27 has two finished fixtures and one still to play.
func round27() model.ResultSet {
	return model.ResultSet{
		Round: 27,
		Matches: []model.MatchResult{
			{ID: 1, Status: "FT", Completed: true, Actual: model.Score{Home: 2, Away: 1}, Kickoff: kickoff},
			{ID: 2, Status: "FT", Completed: true, Actual: model.Score{Home: 0, Away: 0}, Kickoff: kickoff},
			{ID: 3, Status: "NS", Kickoff: kickoff.Add(24 * time.Hour)},
		},
	}
}

func startService(store repository.Store, opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithStore(store), service.WithWorkerCount(2)}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func stopService(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = svc.Stop(ctx)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(500),
			service.WithDedupeSize(250),
			service.WithRankOrder(ranking.Ascending),
		)

		Convey("Then stats reflect the configuration before start", func() {
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 500)
			So(stats["rankOrder"], ShouldEqual, "ascending")
		})

		Convey("When starting the service", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer stopService(svc)

			Convey("Then it is marked as started and reports runtime stats", func() {
				stats := svc.GetStats(context.Background())
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["totalPredictions"], ShouldEqual, 0)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats(context.Background())["started"], ShouldEqual, false)
			})

			Convey("And stopping again is a no-op", func() {
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_Points(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New()

		Convey("When scoring valid scores", func() {
			tier, err := svc.Points(model.Score{Home: 2, Away: 2}, model.Score{Home: 3, Away: 3})

			Convey("Then different draws share the margin tier", func() {
				So(err, ShouldBeNil)
				So(tier, ShouldEqual, scoring.TierOutcomeMargin)
				So(tier.Points(), ShouldEqual, 7)
			})
		})

		Convey("When a score is negative", func() {
			_, err := svc.Points(model.Score{Home: -1}, model.Score{})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrNegativeGoals), ShouldBeTrue)
			})
		})
	})
}

func TestService_Predictions(t *testing.T) {
	Convey("Given a started service with deadline enforcement", t, func() {
		store := repository.NewMemoryStore()
		now := kickoff.Add(-time.Hour)
		svc := startService(store, service.WithClock(func() time.Time { return now }))
		defer stopService(svc)
		ctx := context.Background()

		So(store.PutResults(ctx, model.ResultSet{
			Round:   28,
			Matches: []model.MatchResult{{ID: 10, Status: "NS", Kickoff: kickoff}},
		}), ShouldBeNil)

		scores := map[model.MatchID]model.Score{10: {Home: 1, Away: 0}}

		Convey("When creating a prediction before kickoff", func() {
			p, err := svc.CreatePrediction(ctx, service.NewPrediction{UserID: "alice", Round: 28, Scores: scores})
			So(err, ShouldBeNil)

			Convey("Then it is saved with an id", func() {
				So(p.ID, ShouldNotBeEmpty)
				So(p.Status, ShouldEqual, model.StatusSaved)
				So(p.CreatedAt, ShouldEqual, now.UTC())
			})

			Convey("And a second one for the same round conflicts", func() {
				_, err := svc.CreatePrediction(ctx, service.NewPrediction{UserID: "alice", Round: 28, Scores: scores})
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("And the owner can list it", func() {
				list, err := svc.ListPredictions(ctx, "alice")
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].ID, ShouldEqual, p.ID)
			})

			Convey("And the owner can update it", func() {
				updated, err := svc.UpdatePrediction(ctx, p.ID, "alice",
					map[model.MatchID]model.Score{10: {Home: 3, Away: 3}})
				So(err, ShouldBeNil)
				So(updated.Scores[10], ShouldResemble, model.Score{Home: 3, Away: 3})
			})

			Convey("And another user cannot update or delete it", func() {
				_, err := svc.UpdatePrediction(ctx, p.ID, "bob", scores)
				So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
				So(errors.Is(svc.DeletePrediction(ctx, p.ID, "bob"), service.ErrForbidden), ShouldBeTrue)
			})

			Convey("And the owner can delete it", func() {
				So(svc.DeletePrediction(ctx, p.ID, "alice"), ShouldBeNil)
				_, err := svc.GetPrediction(ctx, p.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And once kickoff is reached it can no longer change", func() {
				now = kickoff
				_, err := svc.UpdatePrediction(ctx, p.ID, "alice", scores)
				So(errors.Is(err, service.ErrDeadlinePassed), ShouldBeTrue)
			})
		})

		Convey("When creating at or after the deadline", func() {
			now = kickoff
			_, err := svc.CreatePrediction(ctx, service.NewPrediction{UserID: "carol", Round: 28, Scores: scores})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrDeadlinePassed), ShouldBeTrue)
			})
		})

		Convey("When the round has no stored results", func() {
			now = kickoff.Add(72 * time.Hour)
			_, err := svc.CreatePrediction(ctx, service.NewPrediction{UserID: "carol", Round: 40, Scores: scores})

			Convey("Then there is no deadline", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the input is invalid", func() {
			cases := []service.NewPrediction{
				{UserID: "", Round: 28},
				{UserID: "dave", Round: 0},
				{UserID: "dave", Round: 28, Status: "pending"},
				{UserID: "dave", Round: 28, Scores: map[model.MatchID]model.Score{10: {Home: -1}}},
			}

			Convey("Then every case is rejected as invalid", func() {
				for _, in := range cases {
					_, err := svc.CreatePrediction(ctx, in)
					So(errors.Is(err, service.ErrInvalidPrediction), ShouldBeTrue)
				}
			})
		})

		Convey("When listing without a user", func() {
			_, err := svc.ListPredictions(ctx, " ")
			So(errors.Is(err, service.ErrInvalidPrediction), ShouldBeTrue)
		})
	})
}

func TestService_GetPrediction(t *testing.T) {
	Convey("Given a prediction for a round with results", t, func() {
		store := repository.NewMemoryStore()
		svc := startService(store, service.WithDeadlineEnforcement(false))
		defer stopService(svc)
		ctx := context.Background()

		So(store.PutResults(ctx, round27()), ShouldBeNil)
		p, err := svc.CreatePrediction(ctx, service.NewPrediction{
			UserID: "alice",
			Round:  27,
			Scores: map[model.MatchID]model.Score{
				1: {Home: 2, Away: 1},
				3: {Home: 1, Away: 1},
			},
		})
		So(err, ShouldBeNil)

		Convey("When fetching it", func() {
			view, err := svc.GetPrediction(ctx, p.ID)
			So(err, ShouldBeNil)

			Convey("Then it carries points and a per-fixture breakdown", func() {
				So(view.Points, ShouldEqual, 10)
				So(view.Breakdown, ShouldHaveLength, 3)
				So(view.Breakdown[0].Verdict, ShouldEqual, scoring.VerdictCorrect)
				So(view.Breakdown[1].Verdict, ShouldEqual, scoring.VerdictNotPredicted)
				So(view.Breakdown[2].Verdict, ShouldEqual, scoring.VerdictInProgress)
			})
		})

		Convey("When its round has no results", func() {
			other, err := svc.CreatePrediction(ctx, service.NewPrediction{UserID: "alice", Round: 30})
			So(err, ShouldBeNil)
			view, err := svc.GetPrediction(ctx, other.ID)

			Convey("Then the breakdown is empty", func() {
				So(err, ShouldBeNil)
				So(view.Points, ShouldEqual, 0)
				So(view.Breakdown, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Ranking(t *testing.T) {
	Convey("Given saved predictions for a settled round", t, func() {
		store := repository.NewMemoryStore()
		svc := startService(store, service.WithDeadlineEnforcement(false))
		defer stopService(svc)
		ctx := context.Background()

		So(store.PutResults(ctx, round27()), ShouldBeNil)
		create := func(user string, status model.PredictionStatus, scores map[model.MatchID]model.Score) {
			_, err := svc.CreatePrediction(ctx, service.NewPrediction{UserID: user, Round: 27, Scores: scores, Status: status})
			So(err, ShouldBeNil)
		}
		// alice: 10 + 10, bob: 3 + 7, carol: 0 + 0, dave (draft): 10
		create("alice", model.StatusSaved, map[model.MatchID]model.Score{1: {Home: 2, Away: 1}, 2: {Home: 0, Away: 0}})
		create("bob", model.StatusSaved, map[model.MatchID]model.Score{1: {Home: 4, Away: 0}, 2: {Home: 1, Away: 1}})
		create("carol", model.StatusSaved, map[model.MatchID]model.Score{1: {Home: 0, Away: 3}, 2: {Home: 2, Away: 1}})
		create("dave", model.StatusDraft, map[model.MatchID]model.Score{1: {Home: 2, Away: 1}})

		Convey("When reading the leaderboard", func() {
			table, err := svc.Leaderboard(ctx, 27, 0)
			So(err, ShouldBeNil)

			Convey("Then saved predictions are ranked by points", func() {
				So(table, ShouldResemble, []ranking.Standing{
					{Position: 1, UserID: "alice", Points: 20},
					{Position: 2, UserID: "bob", Points: 10},
					{Position: 3, UserID: "carol", Points: 0},
				})
			})

			Convey("And the limit truncates the table", func() {
				top, err := svc.Leaderboard(ctx, 27, 2)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
			})
		})

		Convey("When ranking a saved participant", func() {
			res, err := svc.Rank(ctx, 27, "bob")
			So(err, ShouldBeNil)
			So(res.Ranked, ShouldBeTrue)
			So(res.Rank, ShouldEqual, 2)
			So(res.Points, ShouldEqual, 10)
		})

		Convey("When ranking a user with only a draft", func() {
			res, err := svc.Rank(ctx, 27, "dave")

			Convey("Then the lookup places them after saved users on equal points", func() {
				So(err, ShouldBeNil)
				So(res.Ranked, ShouldBeTrue)
				So(res.Rank, ShouldEqual, 3)
				So(res.Participants, ShouldEqual, 4)
			})
		})

		Convey("When ranking a user without a prediction", func() {
			res, err := svc.Rank(ctx, 27, "erin")

			Convey("Then they are unranked", func() {
				So(err, ShouldBeNil)
				So(res.Ranked, ShouldBeFalse)
				So(res.Rank, ShouldEqual, 0)
			})
		})

		Convey("When the round is unknown", func() {
			_, err := svc.Leaderboard(ctx, 99, 10)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.Rank(ctx, 99, "alice")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
