package ranking_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func sc(home, away int) model.Score { return model.Score{Home: home, Away: away} }

func pred(user string, scores map[model.MatchID]model.Score) model.Prediction {
	return model.Prediction{UserID: user, Round: 1, Scores: scores, Status: model.StatusSaved}
}

// twoMatchRound has one finished fixture (2-1) and one still being played.
func twoMatchRound() model.ResultSet {
	return model.ResultSet{
		Round: 1,
		Matches: []model.MatchResult{
			{ID: 100, Completed: true, Actual: sc(2, 1)},
			{ID: 200, Completed: false, Actual: sc(0, 0)},
		},
	}
}

func TestAggregator_Tally(t *testing.T) {
	Convey("Given three users and a round with one incomplete match", t, func() {
		agg := ranking.New()
		predictions := []model.Prediction{
			pred("alice", map[model.MatchID]model.Score{100: sc(2, 1), 200: sc(0, 0)}),
			pred("bob", map[model.MatchID]model.Score{100: sc(3, 2), 200: sc(0, 0)}),
			pred("carol", map[model.MatchID]model.Score{100: sc(0, 2), 200: sc(0, 0)}),
		}

		Convey("When tallying", func() {
			got := agg.Tally(twoMatchRound(), predictions)

			Convey("Then only the completed match counts", func() {
				want := []model.Tally{
					{UserID: "alice", Points: 10},
					{UserID: "bob", Points: 7},
					{UserID: "carol", Points: 0},
				}
				So(cmp.Diff(want, got), ShouldBeEmpty)
			})
		})

		Convey("When no match is completed", func() {
			round := model.ResultSet{Round: 1, Matches: []model.MatchResult{{ID: 100}, {ID: 200}}}
			got := agg.Tally(round, predictions)

			Convey("Then every tally is zero", func() {
				for _, tally := range got {
					So(tally.Points, ShouldEqual, 0)
				}
			})

			Convey("And standings keep input order", func() {
				table := agg.Standings(round, predictions)
				So(table[0].UserID, ShouldEqual, "alice")
				So(table[1].UserID, ShouldEqual, "bob")
				So(table[2].UserID, ShouldEqual, "carol")
			})
		})

		Convey("When a completed match was not predicted", func() {
			partial := []model.Prediction{pred("dave", map[model.MatchID]model.Score{200: sc(1, 1)})}
			got := agg.Tally(twoMatchRound(), partial)

			Convey("Then it contributes nothing", func() {
				So(got[0].Points, ShouldEqual, 0)
			})
		})
	})
}

func TestAggregator_Rank(t *testing.T) {
	Convey("Given a scored round", t, func() {
		predictions := []model.Prediction{
			pred("carol", map[model.MatchID]model.Score{100: sc(0, 2)}),
			pred("alice", map[model.MatchID]model.Score{100: sc(2, 1)}),
			pred("bob", map[model.MatchID]model.Score{100: sc(3, 2)}),
		}

		Convey("When ranking in descending order", func() {
			agg := ranking.New()

			Convey("Then the top scorer is first", func() {
				res := agg.Rank(twoMatchRound(), predictions, "alice", nil)
				So(res.Ranked, ShouldBeTrue)
				So(res.Rank, ShouldEqual, 1)
				So(res.Points, ShouldEqual, 10)
				So(res.Participants, ShouldEqual, 3)

				So(agg.Rank(twoMatchRound(), predictions, "bob", nil).Rank, ShouldEqual, 2)
				So(agg.Rank(twoMatchRound(), predictions, "carol", nil).Rank, ShouldEqual, 3)
			})
		})

		Convey("When ranking in the legacy ascending order", func() {
			agg := ranking.New(ranking.WithOrder(ranking.Ascending))

			Convey("Then the lowest scorer is first and the top scorer last", func() {
				So(agg.Order(), ShouldEqual, ranking.Ascending)
				So(agg.Rank(twoMatchRound(), predictions, "carol", nil).Rank, ShouldEqual, 1)
				So(agg.Rank(twoMatchRound(), predictions, "bob", nil).Rank, ShouldEqual, 2)
				So(agg.Rank(twoMatchRound(), predictions, "alice", nil).Rank, ShouldEqual, 3)
			})
		})

		Convey("When the user is missing but the lookup finds them", func() {
			agg := ranking.New()
			calls := 0
			lookup := func(userID string) (model.Prediction, bool) {
				calls++
				return pred(userID, map[model.MatchID]model.Score{100: sc(3, 0)}), true
			}
			res := agg.Rank(twoMatchRound(), predictions, "dave", lookup)

			Convey("Then their tally joins the table", func() {
				So(calls, ShouldEqual, 1)
				So(res.Ranked, ShouldBeTrue)
				So(res.Points, ShouldEqual, 3)
				So(res.Rank, ShouldEqual, 3)
				So(res.Participants, ShouldEqual, 4)
			})
		})

		Convey("When the user is present the lookup is not consulted", func() {
			agg := ranking.New()
			called := false
			lookup := func(string) (model.Prediction, bool) {
				called = true
				return model.Prediction{}, false
			}
			agg.Rank(twoMatchRound(), predictions, "bob", lookup)
			So(called, ShouldBeFalse)
		})

		Convey("When the user cannot be found anywhere", func() {
			agg := ranking.New()
			lookup := func(string) (model.Prediction, bool) { return model.Prediction{}, false }
			res := agg.Rank(twoMatchRound(), predictions, "nobody", lookup)

			Convey("Then they are unranked", func() {
				So(res.Ranked, ShouldBeFalse)
				So(res.Rank, ShouldEqual, 0)
				So(res.Participants, ShouldEqual, 3)
			})
		})

		Convey("When ranking an empty round", func() {
			res := ranking.New().Rank(model.ResultSet{}, nil, "alice", nil)
			So(res.Ranked, ShouldBeFalse)
			So(res.Participants, ShouldEqual, 0)
		})

		Convey("Then every tallied user gets a rank within bounds", func() {
			agg := ranking.New()
			for _, p := range predictions {
				res := agg.Rank(twoMatchRound(), predictions, p.UserID, nil)
				So(res.Ranked, ShouldBeTrue)
				So(res.Rank, ShouldBeBetweenOrEqual, 1, len(predictions))
			}
		})
	})
}

func TestAggregator_StandingsTies(t *testing.T) {
	Convey("Given tied tallies", t, func() {
		predictions := []model.Prediction{
			pred("x", map[model.MatchID]model.Score{100: sc(1, 0)}),
			pred("y", map[model.MatchID]model.Score{100: sc(2, 1)}),
			pred("z", map[model.MatchID]model.Score{100: sc(1, 0)}),
		}

		Convey("When building descending standings", func() {
			table := ranking.New().Standings(twoMatchRound(), predictions)

			Convey("Then ties keep input order behind the leader", func() {
				want := []ranking.Standing{
					{Position: 1, UserID: "y", Points: 10},
					{Position: 2, UserID: "x", Points: 7},
					{Position: 3, UserID: "z", Points: 7},
				}
				So(cmp.Diff(want, table), ShouldBeEmpty)
			})
		})
	})
}

func TestParseOrder(t *testing.T) {
	Convey("Given order names", t, func() {
		for _, s := range []string{"", "desc", "Descending"} {
			o, err := ranking.ParseOrder(s)
			So(err, ShouldBeNil)
			So(o, ShouldEqual, ranking.Descending)
		}
		for _, s := range []string{"asc", " ASCENDING "} {
			o, err := ranking.ParseOrder(s)
			So(err, ShouldBeNil)
			So(o, ShouldEqual, ranking.Ascending)
		}
		_, err := ranking.ParseOrder("sideways")
		So(errors.Is(err, ranking.ErrUnknownOrder), ShouldBeTrue)
		So(ranking.Ascending.String(), ShouldEqual, "ascending")
	})
}
