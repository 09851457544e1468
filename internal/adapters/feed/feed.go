// Package feed converts third-party fixture payloads into validated result sets.
//
// The feed reports goals as nullable numbers and a short status code per
// fixture. Nothing from the feed reaches the scoring engine before it has been
// converted into model.MatchResult here.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/scoreline/internal/domain/model"
)

// StatusFinished is the short status of a fixture whose score is final.
const StatusFinished = "FT"

// Fixture mirrors one entry of the feed's fixtures response.
type Fixture struct {
	Fixture struct {
		ID     int64  `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

// Update is the body accepted by the results ingestion endpoint.
type Update struct {
	EventID  string    `json:"event_id"`
	Round    int       `json:"round"`
	Fixtures []Fixture `json:"fixtures"`
}

// Decode reads an Update from r. Unknown fields are ignored since the feed
// carries far more than the engine needs.
func Decode(r io.Reader) (Update, error) {
	var u Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return Update{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return u, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (Update, error) {
	return Decode(bytes.NewReader(b))
}

// Validate checks the envelope and converts the fixtures.
func (u Update) Validate() (model.ResultSet, error) {
	if u.Round < 1 {
		return model.ResultSet{}, fmt.Errorf("%w: round must be positive", ErrInvalidPayload)
	}
	return Convert(u.Round, u.Fixtures)
}

// Convert turns feed fixtures into the ordered result set for round.
// A fixture is completed only when its status is StatusFinished, in which case
// both goal counts must be present and non-negative.
func Convert(round int, fixtures []Fixture) (model.ResultSet, error) {
	rs := model.ResultSet{Round: round, Matches: make([]model.MatchResult, 0, len(fixtures))}
	seen := make(map[model.MatchID]struct{}, len(fixtures))

	for i, f := range fixtures {
		m, err := convertFixture(f)
		if err != nil {
			return model.ResultSet{}, fmt.Errorf("fixture %d: %w", i, err)
		}
		if _, dup := seen[m.ID]; dup {
			return model.ResultSet{}, fmt.Errorf("fixture %d: duplicate id %d: %w", i, m.ID, ErrInvalidFixture)
		}
		seen[m.ID] = struct{}{}
		rs.Matches = append(rs.Matches, m)
	}
	return rs, nil
}

func convertFixture(f Fixture) (model.MatchResult, error) {
	if f.Fixture.ID <= 0 {
		return model.MatchResult{}, fmt.Errorf("missing id: %w", ErrInvalidFixture)
	}

	m := model.MatchResult{
		ID:     model.MatchID(f.Fixture.ID),
		Status: strings.ToUpper(strings.TrimSpace(f.Fixture.Status.Short)),
	}

	if f.Fixture.Date != "" {
		kickoff, err := time.Parse(time.RFC3339, f.Fixture.Date)
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("id %d: invalid date %q: %w", m.ID, f.Fixture.Date, ErrInvalidFixture)
		}
		m.Kickoff = kickoff.UTC()
	}

	if m.Status != StatusFinished {
		return m, nil
	}

	if f.Goals.Home == nil || f.Goals.Away == nil {
		return model.MatchResult{}, fmt.Errorf("id %d: finished without goals: %w", m.ID, ErrInvalidFixture)
	}
	actual := model.Score{Home: *f.Goals.Home, Away: *f.Goals.Away}
	if err := actual.Validate(); err != nil {
		return model.MatchResult{}, fmt.Errorf("id %d: %w: %w", m.ID, ErrInvalidFixture, err)
	}
	m.Completed = true
	m.Actual = actual
	return m, nil
}
