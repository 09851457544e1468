package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/metrics"
)

type userRound struct {
	userID string
	round  int
}

// MemoryStore keeps matchdays and predictions in process memory.
// Values are copied on the way in and out so callers never share maps.
type MemoryStore struct {
	mu sync.RWMutex

	matchdays   map[int]model.ResultSet
	predictions map[string]model.Prediction
	byUserRound map[userRound]string

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		matchdays:   make(map[int]model.ResultSet),
		predictions: make(map[string]model.Prediction),
		byUserRound: make(map[userRound]string),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutResults replaces the stored result set for rs.Round.
func (s *MemoryStore) PutResults(_ context.Context, rs model.ResultSet) error {
	defer observeUpdate(time.Now())
	if rs.Round < 1 {
		return fmt.Errorf("round %d: %w", rs.Round, ErrInvalidArg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs.Matches = slices.Clone(rs.Matches)
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = s.now().UTC()
	}
	s.matchdays[rs.Round] = rs
	return nil
}

// Results returns the stored result set for round.
func (s *MemoryStore) Results(_ context.Context, round int) (model.ResultSet, error) {
	defer observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.matchdays[round]
	if !ok {
		return model.ResultSet{}, fmt.Errorf("matchday %d: %w", round, ErrNotFound)
	}
	rs.Matches = slices.Clone(rs.Matches)
	return rs, nil
}

// Rounds lists known rounds, most recent first.
func (s *MemoryStore) Rounds(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rounds := slices.Collect(maps.Keys(s.matchdays))
	slices.Sort(rounds)
	slices.Reverse(rounds)
	return rounds, nil
}

// Create stores p.
func (s *MemoryStore) Create(_ context.Context, p model.Prediction) error {
	defer observeUpdate(time.Now())
	if p.ID == "" || p.UserID == "" {
		return fmt.Errorf("prediction id and user id are required: %w", ErrInvalidArg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := userRound{userID: p.UserID, round: p.Round}
	if _, exists := s.byUserRound[key]; exists {
		return fmt.Errorf("user %s round %d: %w", p.UserID, p.Round, ErrConflict)
	}
	if _, exists := s.predictions[p.ID]; exists {
		return fmt.Errorf("prediction %s: %w", p.ID, ErrConflict)
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	p.Scores = maps.Clone(p.Scores)
	s.predictions[p.ID] = p
	s.byUserRound[key] = p.ID
	return nil
}

// Get returns the prediction with id.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Prediction, error) {
	defer observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[id]
	if !ok {
		return model.Prediction{}, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	return clonePrediction(p), nil
}

// UpdateScores replaces the scores of prediction id.
func (s *MemoryStore) UpdateScores(_ context.Context, id string, scores map[model.MatchID]model.Score) (model.Prediction, error) {
	defer observeUpdate(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[id]
	if !ok {
		return model.Prediction{}, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	p.Scores = maps.Clone(scores)
	p.UpdatedAt = s.now().UTC()
	s.predictions[id] = p
	return clonePrediction(p), nil
}

// Delete removes prediction id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	defer observeUpdate(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[id]
	if !ok {
		return fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	delete(s.predictions, id)
	delete(s.byUserRound, userRound{userID: p.UserID, round: p.Round})
	return nil
}

// ListByRound returns the round's predictions with status, oldest first.
func (s *MemoryStore) ListByRound(_ context.Context, round int, status model.PredictionStatus) ([]model.Prediction, error) {
	defer observeQuery(time.Now())
	return s.filter(func(p model.Prediction) bool {
		return p.Round == round && (status == "" || p.Status == status)
	}), nil
}

// FindByUser returns userID's prediction for round.
func (s *MemoryStore) FindByUser(ctx context.Context, userID string, round int) (model.Prediction, error) {
	s.mu.RLock()
	id, ok := s.byUserRound[userRound{userID: userID, round: round}]
	s.mu.RUnlock()
	if !ok {
		return model.Prediction{}, fmt.Errorf("user %s round %d: %w", userID, round, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// ListByUser returns all of userID's predictions, oldest first.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.Prediction, error) {
	defer observeQuery(time.Now())
	return s.filter(func(p model.Prediction) bool { return p.UserID == userID }), nil
}

// Count returns the number of stored predictions.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.predictions)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) filter(keep func(model.Prediction) bool) []model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Prediction, 0)
	for _, p := range s.predictions {
		if keep(p) {
			out = append(out, clonePrediction(p))
		}
	}
	sortOldestFirst(out)
	return out
}

// sortOldestFirst orders by creation time, then id for determinism.
func sortOldestFirst(ps []model.Prediction) {
	slices.SortStableFunc(ps, func(a, b model.Prediction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func clonePrediction(p model.Prediction) model.Prediction {
	p.Scores = maps.Clone(p.Scores)
	return p
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}
