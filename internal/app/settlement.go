package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/scoring"
	"github.com/okian/scoreline/pkg/logger"
	"github.com/okian/scoreline/pkg/metrics"
)

// resultsWriter stores feed snapshots for the worker pool. Workers run
// concurrently, so a snapshot older than the stored one is dropped.
type resultsWriter struct {
	s *Service
}

func (w resultsWriter) PutResults(ctx context.Context, rs model.ResultSet) error {
	s := w.s
	lock := s.roundLock(rs.Round)
	lock.Lock()
	defer lock.Unlock()

	prev, err := s.store.Results(ctx, rs.Round)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		prev = model.ResultSet{}
	case err != nil:
		return fmt.Errorf("loading round %d: %w", rs.Round, err)
	case prev.UpdatedAt.After(rs.UpdatedAt):
		s.logger.Debug(ctx, "dropping stale results snapshot",
			logger.Int("round", rs.Round),
			logger.String("stored", prev.UpdatedAt.String()),
			logger.String("received", rs.UpdatedAt.String()))
		return nil
	}

	if err := s.store.PutResults(ctx, rs); err != nil {
		return err
	}

	if scored := newlyCompleted(prev, rs); len(scored) > 0 {
		s.roundMu.Lock()
		s.newlyScored[rs.Round] = append(s.newlyScored[rs.Round], scored...)
		s.roundMu.Unlock()
	}
	return nil
}

func (s *Service) roundLock(round int) *sync.Mutex {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()
	l, ok := s.roundLocks[round]
	if !ok {
		l = &sync.Mutex{}
		s.roundLocks[round] = l
	}
	return l
}

// newlyCompleted returns fixtures of next that are completed with a score
// they did not have in prev.
func newlyCompleted(prev, next model.ResultSet) []model.MatchResult {
	before := make(map[model.MatchID]model.MatchResult, len(prev.Matches))
	for _, m := range prev.Matches {
		before[m.ID] = m
	}
	var out []model.MatchResult
	for _, m := range next.Matches {
		if !m.Completed {
			continue
		}
		if old, ok := before[m.ID]; ok && old.Completed && old.Actual == m.Actual {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Settle re-tallies the round from the stored results. Points for fixtures
// completed by the triggering write are counted by tier.
func (s *Service) Settle(ctx context.Context, rs model.ResultSet) (model.Settlement, error) {
	current, err := s.store.Results(ctx, rs.Round)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("loading round %d: %w", rs.Round, err)
	}
	predictions, err := s.store.ListByRound(ctx, rs.Round, model.StatusSaved)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("listing predictions: %w", err)
	}

	s.roundMu.Lock()
	scored := s.newlyScored[rs.Round]
	delete(s.newlyScored, rs.Round)
	s.roundMu.Unlock()

	for _, m := range scored {
		for _, p := range predictions {
			if predicted, ok := p.Scores[m.ID]; ok {
				metrics.RecordMatchPoints(scoring.Classify(predicted, m.Actual).String())
			}
		}
	}

	table := s.aggregator.Standings(current, predictions)
	st := model.Settlement{
		Round:        current.Round,
		Completed:    current.CompletedCount(),
		Fixtures:     len(current.Matches),
		Participants: len(table),
	}
	if len(table) > 0 {
		st.Leader = table[0].UserID
		st.LeaderPoints = table[0].Points
	}
	metrics.RecordLeaderboardSize(len(table))
	return st, nil
}
