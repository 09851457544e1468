package model

import "time"

// MatchID identifies a fixture. Feed fixture ids are integers.
type MatchID int64

// MatchResult is one fixture of a matchday as reported by the results feed.
type MatchResult struct {
	ID        MatchID   `json:"id"`
	Status    string    `json:"status"`
	Completed bool      `json:"completed"`
	Actual    Score     `json:"actual"` // meaningful only when Completed
	Kickoff   time.Time `json:"kickoff,omitempty"`
}

// ResultSet is the ordered list of fixtures for a single round.
type ResultSet struct {
	Round     int           `json:"round"`
	Matches   []MatchResult `json:"matches"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CompletedCount returns how many fixtures carry a final score.
func (r ResultSet) CompletedCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.Completed {
			n++
		}
	}
	return n
}

// Deadline returns the earliest kickoff of the round. The second return is
// false when no fixture carries a kickoff time.
func (r ResultSet) Deadline() (time.Time, bool) {
	var deadline time.Time
	for _, m := range r.Matches {
		if m.Kickoff.IsZero() {
			continue
		}
		if deadline.IsZero() || m.Kickoff.Before(deadline) {
			deadline = m.Kickoff
		}
	}
	return deadline, !deadline.IsZero()
}

// FeedUpdate is a validated results payload travelling through the ingestion queue.
type FeedUpdate struct {
	EventID    string
	Results    ResultSet
	ReceivedAt time.Time
}

// Settlement summarises a round after a results update has been applied.
type Settlement struct {
	Round        int    `json:"round"`
	Completed    int    `json:"completed"`
	Fixtures     int    `json:"fixtures"`
	Participants int    `json:"participants"`
	Leader       string `json:"leader,omitempty"`
	LeaderPoints int    `json:"leader_points"`
}
