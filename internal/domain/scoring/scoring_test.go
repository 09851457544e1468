package scoring_test

import (
	"testing"

	"github.com/okian/scoreline/internal/domain/model"
	scoring "github.com/okian/scoreline/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const maxGoals = 6

func sc(home, away int) model.Score { return model.Score{Home: home, Away: away} }

// allScores enumerates every scoreline up to maxGoals a side.
func allScores() []model.Score {
	out := make([]model.Score, 0, (maxGoals+1)*(maxGoals+1))
	for h := 0; h <= maxGoals; h++ {
		for a := 0; a <= maxGoals; a++ {
			out = append(out, sc(h, a))
		}
	}
	return out
}

func TestPoints_Scenarios(t *testing.T) {
	Convey("Given the scoring tiers", t, func() {
		cases := []struct {
			name      string
			predicted model.Score
			actual    model.Score
			tier      scoring.Tier
			points    int
		}{
			{"exact away win", sc(1, 2), sc(1, 2), scoring.TierExact, 10},
			{"outcome and margin", sc(1, 2), sc(2, 3), scoring.TierOutcomeMargin, 7},
			{"draw with a different scoreline", sc(2, 2), sc(3, 3), scoring.TierOutcomeMargin, 7},
			{"outcome and home goals", sc(1, 2), sc(1, 3), scoring.TierOutcomeOneSide, 5},
			{"outcome only", sc(3, 2), sc(5, 1), scoring.TierOutcome, 3},
			{"wrong outcome, away goals", sc(3, 2), sc(1, 2), scoring.TierWrongOutcomeSide, 1},
			{"predicted draw, home goals match a win", sc(3, 3), sc(3, 2), scoring.TierWrongOutcomeSide, 1},
			{"nothing matches", sc(3, 3), sc(1, 2), scoring.TierMiss, 0},
			{"exact goalless draw", sc(0, 0), sc(0, 0), scoring.TierExact, 10},
		}

		for _, tc := range cases {
			Convey("When the case is "+tc.name, func() {
				Convey("Then the tier and points match", func() {
					So(scoring.Classify(tc.predicted, tc.actual), ShouldEqual, tc.tier)
					So(scoring.Points(tc.predicted, tc.actual), ShouldEqual, tc.points)
				})
			})
		}
	})
}

func TestPoints_Properties(t *testing.T) {
	Convey("Given every scoreline up to six goals a side", t, func() {
		scores := allScores()
		allowed := map[int]bool{0: true, 1: true, 3: true, 5: true, 7: true, 10: true}

		Convey("Then an exact prediction always scores 10", func() {
			for _, s := range scores {
				So(scoring.Points(s, s), ShouldEqual, scoring.PointsExact)
			}
		})

		Convey("Then swapping home and away on both sides keeps the tier", func() {
			for _, p := range scores {
				for _, a := range scores {
					So(scoring.Classify(p.Swap(), a.Swap()), ShouldEqual, scoring.Classify(p, a))
				}
			}
		})

		Convey("Then points are always one of the tier values", func() {
			for _, p := range scores {
				for _, a := range scores {
					So(allowed[scoring.Points(p, a)], ShouldBeTrue)
				}
			}
		})

		Convey("Then repeated calls return the same result", func() {
			for _, p := range scores {
				first := scoring.Points(p, sc(2, 1))
				for i := 0; i < 3; i++ {
					So(scoring.Points(p, sc(2, 1)), ShouldEqual, first)
				}
			}
		})

		Convey("Then only the exact scoreline reaches the exact tier", func() {
			for _, p := range scores {
				for _, a := range scores {
					if p != a {
						So(scoring.Classify(p, a), ShouldNotEqual, scoring.TierExact)
					}
				}
			}
		})
	})
}

func TestTier_Labels(t *testing.T) {
	Convey("Given each tier", t, func() {
		Convey("Then labels and points line up", func() {
			So(scoring.TierExact.String(), ShouldEqual, "exact")
			So(scoring.TierOutcomeMargin.String(), ShouldEqual, "outcome_margin")
			So(scoring.TierOutcomeOneSide.String(), ShouldEqual, "outcome_one_side")
			So(scoring.TierOutcome.String(), ShouldEqual, "outcome")
			So(scoring.TierWrongOutcomeSide.String(), ShouldEqual, "wrong_outcome_one_side")
			So(scoring.TierMiss.String(), ShouldEqual, "miss")
			So(scoring.Tier(0).Points(), ShouldEqual, 0)
		})
	})
}

func TestBreakdown(t *testing.T) {
	Convey("Given a prediction and a partly played round", t, func() {
		results := model.ResultSet{
			Round: 5,
			Matches: []model.MatchResult{
				{ID: 1, Completed: true, Actual: sc(2, 1)},
				{ID: 2, Completed: true, Actual: sc(0, 0)},
				{ID: 3, Completed: false},
				{ID: 4, Completed: true, Actual: sc(1, 1)},
			},
		}
		p := model.Prediction{
			UserID: "u1",
			Round:  5,
			Scores: map[model.MatchID]model.Score{
				1: sc(2, 1),
				2: sc(1, 0),
				3: sc(0, 1),
			},
		}

		Convey("When building the breakdown", func() {
			rows := scoring.Breakdown(p, results)

			Convey("Then each fixture gets a verdict in fixture order", func() {
				So(len(rows), ShouldEqual, 4)

				So(rows[0].Verdict, ShouldEqual, scoring.VerdictCorrect)
				So(rows[0].Points, ShouldEqual, 10)
				So(rows[0].Tier, ShouldEqual, "exact")

				So(rows[1].Verdict, ShouldEqual, scoring.VerdictIncorrect)
				So(rows[1].Points, ShouldEqual, 1)

				So(rows[2].Verdict, ShouldEqual, scoring.VerdictInProgress)
				So(rows[2].Points, ShouldEqual, 0)
				So(rows[2].Actual, ShouldBeNil)

				So(rows[3].Verdict, ShouldEqual, scoring.VerdictNotPredicted)
				So(rows[3].Predicted, ShouldBeNil)
				So(*rows[3].Actual, ShouldResemble, sc(1, 1))
			})
		})
	})
}
