package ranking

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/scoring"
)

// Order controls how tallies are sorted before positions are assigned.
type Order int

// Sort orders.
const (
	// Descending puts the highest tally at position 1.
	Descending Order = iota
	// Ascending puts the lowest tally at position 1, matching the legacy ranking.
	Ascending
)

// String returns the config name of the order.
func (o Order) String() string {
	if o == Ascending {
		return "ascending"
	}
	return "descending"
}

// ParseOrder parses "ascending"/"asc" or "descending"/"desc". Empty means descending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	default:
		return Descending, fmt.Errorf("%q: %w", s, ErrUnknownOrder)
	}
}

// Lookup finds a single user's prediction for the round being ranked when it
// is missing from the supplied collection.
type Lookup func(userID string) (model.Prediction, bool)

// Standing is one row of a sorted round table.
type Standing struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Points   int    `json:"points"`
}

// Result is the outcome of a rank query. Rank is 0 and Ranked false when the
// user has no prediction for the round.
type Result struct {
	UserID       string
	Rank         int
	Ranked       bool
	Points       int
	Participants int
}

// Aggregator sums points per user and ranks them. It holds no state between
// calls and is safe for concurrent use.
type Aggregator struct {
	order Order
}

// New creates an Aggregator. The default order is Descending.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{order: Descending}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Order returns the configured sort order.
func (a *Aggregator) Order() Order {
	return a.order
}

// TallyOne sums points for one prediction over the completed fixtures of results.
// A completed fixture without a predicted score adds nothing.
func TallyOne(p model.Prediction, results model.ResultSet) int {
	total := 0
	for _, m := range results.Matches {
		if !m.Completed {
			continue
		}
		predicted, ok := p.Scores[m.ID]
		if !ok {
			continue
		}
		total += scoring.Points(predicted, m.Actual)
	}
	return total
}

// Tally returns one tally per prediction, in input order.
func (a *Aggregator) Tally(results model.ResultSet, predictions []model.Prediction) []model.Tally {
	tallies := make([]model.Tally, 0, len(predictions))
	for _, p := range predictions {
		tallies = append(tallies, model.Tally{UserID: p.UserID, Points: TallyOne(p, results)})
	}
	return tallies
}

// Standings returns the sorted table for the round. Equal tallies keep their
// input order.
func (a *Aggregator) Standings(results model.ResultSet, predictions []model.Prediction) []Standing {
	return a.standings(a.Tally(results, predictions))
}

// Rank returns the 1-based position of userID. If the user is not among
// predictions, lookup (when non-nil) is consulted and the result is added to
// the table before sorting.
func (a *Aggregator) Rank(results model.ResultSet, predictions []model.Prediction, userID string, lookup Lookup) Result {
	tallies := a.Tally(results, predictions)

	if indexOf(tallies, userID) < 0 && lookup != nil {
		if p, ok := lookup(userID); ok {
			tallies = append(tallies, model.Tally{UserID: userID, Points: TallyOne(p, results)})
		}
	}

	table := a.standings(tallies)
	res := Result{UserID: userID, Participants: len(table)}
	for _, row := range table {
		if row.UserID == userID {
			res.Rank = row.Position
			res.Ranked = true
			res.Points = row.Points
			break
		}
	}
	return res
}

func (a *Aggregator) standings(tallies []model.Tally) []Standing {
	sorted := slices.Clone(tallies)
	slices.SortStableFunc(sorted, func(x, y model.Tally) int {
		if a.order == Ascending {
			return x.Points - y.Points
		}
		return y.Points - x.Points
	})

	table := make([]Standing, len(sorted))
	for i, t := range sorted {
		table[i] = Standing{Position: i + 1, UserID: t.UserID, Points: t.Points}
	}
	return table
}

func indexOf(tallies []model.Tally, userID string) int {
	return slices.IndexFunc(tallies, func(t model.Tally) bool { return t.UserID == userID })
}
