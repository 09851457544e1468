// Package scoring awards points for a predicted score against the final score.
package scoring

import (
	"github.com/okian/scoreline/internal/domain/model"
)

// Tier is the partial-credit band a prediction falls into. Tiers are
// evaluated in order and the first matching one wins.
type Tier int

// Scoring tiers.
const (
	TierExact            Tier = iota + 1 // exact score
	TierOutcomeMargin                    // outcome and goal margin
	TierOutcomeOneSide                   // outcome and one side's goals
	TierOutcome                          // outcome only
	TierWrongOutcomeSide                 // wrong outcome, one side's goals
	TierMiss                             // nothing
)

// Point values per tier.
const (
	PointsExact            = 10
	PointsOutcomeMargin    = 7
	PointsOutcomeOneSide   = 5
	PointsOutcome          = 3
	PointsWrongOutcomeSide = 1
	PointsMiss             = 0
)

// Points returns the point value of the tier.
func (t Tier) Points() int {
	switch t {
	case TierExact:
		return PointsExact
	case TierOutcomeMargin:
		return PointsOutcomeMargin
	case TierOutcomeOneSide:
		return PointsOutcomeOneSide
	case TierOutcome:
		return PointsOutcome
	case TierWrongOutcomeSide:
		return PointsWrongOutcomeSide
	default:
		return PointsMiss
	}
}

// String returns a label used in logs, metrics and API responses.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierOutcomeMargin:
		return "outcome_margin"
	case TierOutcomeOneSide:
		return "outcome_one_side"
	case TierOutcome:
		return "outcome"
	case TierWrongOutcomeSide:
		return "wrong_outcome_one_side"
	default:
		return "miss"
	}
}

// Classify returns the tier reached by predicted against actual.
//
// Two different draws share margin 0, so a correctly predicted draw with the
// wrong scoreline lands in TierOutcomeMargin.
func Classify(predicted, actual model.Score) Tier {
	if predicted == actual {
		return TierExact
	}

	oneSide := predicted.Home == actual.Home || predicted.Away == actual.Away

	if predicted.Outcome() == actual.Outcome() {
		switch {
		case predicted.Margin() == actual.Margin():
			return TierOutcomeMargin
		case oneSide:
			return TierOutcomeOneSide
		default:
			return TierOutcome
		}
	}

	if oneSide {
		return TierWrongOutcomeSide
	}
	return TierMiss
}

// Points returns the points awarded for predicted against actual.
func Points(predicted, actual model.Score) int {
	return Classify(predicted, actual).Points()
}
