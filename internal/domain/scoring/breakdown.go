package scoring

import "github.com/okian/scoreline/internal/domain/model"

// Verdict summarises a single predicted fixture for display.
type Verdict string

// Verdicts.
const (
	VerdictCorrect      Verdict = "correct"
	VerdictIncorrect    Verdict = "incorrect"
	VerdictInProgress   Verdict = "in_progress"
	VerdictNotPredicted Verdict = "not_predicted"
)

// MatchPoints is the per-fixture view of a prediction.
type MatchPoints struct {
	MatchID   model.MatchID `json:"match_id"`
	Predicted *model.Score  `json:"predicted,omitempty"`
	Actual    *model.Score  `json:"actual,omitempty"`
	Verdict   Verdict       `json:"verdict"`
	Tier      string        `json:"tier,omitempty"`
	Points    int           `json:"points"`
}

// Breakdown scores each fixture of results for one prediction, in fixture order.
// Fixtures that are not completed yet score nothing.
func Breakdown(p model.Prediction, results model.ResultSet) []MatchPoints {
	out := make([]MatchPoints, 0, len(results.Matches))
	for _, m := range results.Matches {
		mp := MatchPoints{MatchID: m.ID}
		predicted, ok := p.Scores[m.ID]
		if ok {
			mp.Predicted = &predicted
		}
		if m.Completed {
			actual := m.Actual
			mp.Actual = &actual
		}

		switch {
		case !ok:
			mp.Verdict = VerdictNotPredicted
		case !m.Completed:
			mp.Verdict = VerdictInProgress
		default:
			tier := Classify(predicted, m.Actual)
			mp.Tier = tier.String()
			mp.Points = tier.Points()
			mp.Verdict = VerdictIncorrect
			if tier == TierExact {
				mp.Verdict = VerdictCorrect
			}
		}
		out = append(out, mp)
	}
	return out
}
