// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
)

// ErrNegativeGoals is returned when a score carries a negative goal count.
var ErrNegativeGoals = errors.New("goal count must not be negative")

// Outcome is the result of a match derived from its score.
type Outcome int

// Possible outcomes.
const (
	Draw Outcome = iota
	HomeWin
	AwayWin
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case HomeWin:
		return "home_win"
	case AwayWin:
		return "away_win"
	default:
		return "draw"
	}
}

// Score is a final or predicted scoreline.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Outcome derives the match outcome by comparing goal counts.
func (s Score) Outcome() Outcome {
	switch {
	case s.Home > s.Away:
		return HomeWin
	case s.Away > s.Home:
		return AwayWin
	default:
		return Draw
	}
}

// Margin is the goal difference home minus away.
func (s Score) Margin() int {
	return s.Home - s.Away
}

// Swap returns the score with home and away exchanged.
func (s Score) Swap() Score {
	return Score{Home: s.Away, Away: s.Home}
}

// Validate reports whether both goal counts are non-negative.
func (s Score) Validate() error {
	if s.Home < 0 || s.Away < 0 {
		return fmt.Errorf("%d-%d: %w", s.Home, s.Away, ErrNegativeGoals)
	}
	return nil
}

// String renders the score as "home-away".
func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}
