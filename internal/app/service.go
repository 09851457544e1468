// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scoreline/internal/adapters/feed"
	eventqueue "github.com/okian/scoreline/internal/adapters/mq/queue"
	workerpool "github.com/okian/scoreline/internal/adapters/mq/worker"
	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/domain/dedupe"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
	"github.com/okian/scoreline/internal/domain/scoring"
	"github.com/okian/scoreline/pkg/logger"
	"github.com/okian/scoreline/pkg/metrics"
)

// Service implements the API dependencies for the prediction competition.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	aggregator *ranking.Aggregator
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	order           ranking.Order
	enforceDeadline bool
	now             func() time.Time

	// Serialises result writes per round and collects the fixtures each write
	// completed so settlement can count points awarded exactly once.
	roundMu     sync.Mutex
	roundLocks  map[int]*sync.Mutex
	newlyScored map[int][]model.MatchResult

	settledMu   sync.Mutex
	settlements map[int]model.Settlement

	started bool

	logger logger.Logger
}

// IngestResult reports what happened to a feed update.
type IngestResult struct {
	EventID   string
	Duplicate bool
}

// NewPrediction is the input of CreatePrediction.
type NewPrediction struct {
	UserID string
	Round  int
	Scores map[model.MatchID]model.Score
	Status model.PredictionStatus
}

// CurrentRound is the most recent round with stored results, seen by one user.
// Prediction is nil when the user has none for the round. Allowed reports
// whether the user may still create a prediction.
type CurrentRound struct {
	Results    model.ResultSet
	Prediction *model.Prediction
	Allowed    bool
}

// PredictionView is a prediction scored against its round's current results.
type PredictionView struct {
	Prediction model.Prediction
	Points     int
	Breakdown  []scoring.MatchPoints
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      50_000,
		order:           ranking.Descending,
		enforceDeadline: true,
		now:             time.Now,
		roundLocks:      make(map[int]*sync.Mutex),
		newlyScored:     make(map[int][]model.MatchResult),
		settlements:     make(map[int]model.Settlement),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scoreline service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.aggregator = ranking.New(ranking.WithOrder(s.order))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, resultsWriter{s}, s,
		workerpool.WithOnSettled(s.recordSettlement))
	s.workerPool.Start(ctx)

	metrics.UpdatePredictionsTotal(s.store.Count(ctx))

	s.started = true
	s.logger.Info(ctx, "scoreline service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("rankOrder", s.order.String()),
		logger.Bool("enforceDeadline", s.enforceDeadline),
	)

	return nil
}

// Stop drains pending feed updates and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping scoreline service...")

	var errs []error
	if err := s.workerPool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "scoreline service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Points scores one predicted score against an actual score.
func (s *Service) Points(predicted, actual model.Score) (scoring.Tier, error) {
	if err := predicted.Validate(); err != nil {
		return 0, fmt.Errorf("predicted: %w", err)
	}
	if err := actual.Validate(); err != nil {
		return 0, fmt.Errorf("actual: %w", err)
	}
	return scoring.Classify(predicted, actual), nil
}

// IngestFeed validates a feed update and queues it for settlement. An update
// whose event id was already accepted is reported as a duplicate and dropped.
func (s *Service) IngestFeed(ctx context.Context, u feed.Update) (IngestResult, error) {
	if !s.running() {
		return IngestResult{}, ErrNotStarted
	}

	rs, err := u.Validate()
	if err != nil {
		metrics.RecordFeedRejected("invalid")
		return IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidFeed, err)
	}

	eventID := strings.TrimSpace(u.EventID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	res := IngestResult{EventID: eventID}

	seen, err := s.deduper.SeenAndRecord(ctx, eventID)
	if err != nil {
		metrics.RecordErrorByComponent("dedupe", "record_error")
		return res, fmt.Errorf("recording event %s: %w", eventID, err)
	}
	if seen {
		metrics.RecordFeedDuplicate()
		s.logger.Debug(ctx, "duplicate feed update, skipping", logger.String("eventID", eventID))
		res.Duplicate = true
		return res, nil
	}

	update := model.FeedUpdate{EventID: eventID, Results: rs, ReceivedAt: s.now().UTC()}
	if !s.eventQueue.Enqueue(ctx, update) {
		if err := s.deduper.Unrecord(ctx, eventID); err != nil {
			s.logger.Warn(ctx, "failed to roll back dedupe record",
				logger.String("eventID", eventID), logger.Error(err))
		}
		metrics.RecordFeedRejected("backpressure")
		return res, ErrBackpressure
	}

	metrics.RecordFeedAccepted()
	s.logger.Debug(ctx, "feed update enqueued",
		logger.String("eventID", eventID),
		logger.Int("round", rs.Round),
		logger.Int("fixtures", len(rs.Matches)))
	return res, nil
}

// Results returns the stored result set of round.
func (s *Service) Results(ctx context.Context, round int) (model.ResultSet, error) {
	if !s.running() {
		return model.ResultSet{}, ErrNotStarted
	}
	return s.store.Results(ctx, round)
}

// Rounds lists the rounds with stored results, most recent first.
func (s *Service) Rounds(ctx context.Context) ([]int, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.Rounds(ctx)
}

// CurrentRound returns the most recent round with stored results. For a
// non-empty userID it also reports that user's prediction; a user who already
// has one, or who is past the deadline, may not create another.
func (s *Service) CurrentRound(ctx context.Context, userID string) (CurrentRound, error) {
	if !s.running() {
		return CurrentRound{}, ErrNotStarted
	}
	rounds, err := s.store.Rounds(ctx)
	if err != nil {
		return CurrentRound{}, fmt.Errorf("listing rounds: %w", err)
	}
	if len(rounds) == 0 {
		return CurrentRound{}, fmt.Errorf("no round stored: %w", repository.ErrNotFound)
	}

	results, err := s.store.Results(ctx, rounds[0])
	if err != nil {
		return CurrentRound{}, err
	}
	cur := CurrentRound{Results: results, Allowed: true}

	switch err := s.checkDeadline(ctx, results.Round); {
	case errors.Is(err, ErrDeadlinePassed):
		cur.Allowed = false
	case err != nil:
		return CurrentRound{}, err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return cur, nil
	}
	p, err := s.store.FindByUser(ctx, userID, results.Round)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return CurrentRound{}, fmt.Errorf("looking up %s: %w", userID, err)
	default:
		cur.Prediction = &p
		cur.Allowed = false
	}
	return cur, nil
}

// Leaderboard returns the first limit rows of the round's standings.
// A non-positive limit returns the whole table.
func (s *Service) Leaderboard(ctx context.Context, round, limit int) ([]ranking.Standing, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	results, err := s.store.Results(ctx, round)
	if err != nil {
		return nil, err
	}
	predictions, err := s.store.ListByRound(ctx, round, model.StatusSaved)
	if err != nil {
		return nil, fmt.Errorf("listing predictions: %w", err)
	}

	table := s.aggregator.Standings(results, predictions)
	if limit > 0 && len(table) > limit {
		table = table[:limit]
	}
	return table, nil
}

// Rank returns userID's position among the round's saved predictions. A user
// whose only prediction is a draft is still placed against the saved ones.
func (s *Service) Rank(ctx context.Context, round int, userID string) (ranking.Result, error) {
	if !s.running() {
		return ranking.Result{}, ErrNotStarted
	}
	results, err := s.store.Results(ctx, round)
	if err != nil {
		return ranking.Result{}, err
	}
	predictions, err := s.store.ListByRound(ctx, round, model.StatusSaved)
	if err != nil {
		return ranking.Result{}, fmt.Errorf("listing predictions: %w", err)
	}

	var lookupErr error
	lookup := func(id string) (model.Prediction, bool) {
		p, err := s.store.FindByUser(ctx, id, round)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				lookupErr = err
			}
			return model.Prediction{}, false
		}
		return p, true
	}

	res := s.aggregator.Rank(results, predictions, userID, lookup)
	if lookupErr != nil {
		return ranking.Result{}, fmt.Errorf("looking up %s: %w", userID, lookupErr)
	}
	metrics.RecordRankLookup(res.Ranked)
	return res, nil
}

// CreatePrediction stores a new prediction. Status defaults to saved.
func (s *Service) CreatePrediction(ctx context.Context, in NewPrediction) (model.Prediction, error) {
	if !s.running() {
		return model.Prediction{}, ErrNotStarted
	}
	p := model.Prediction{
		ID:     uuid.NewString(),
		UserID: strings.TrimSpace(in.UserID),
		Round:  in.Round,
		Scores: in.Scores,
		Status: in.Status,
	}
	if p.Status == "" {
		p.Status = model.StatusSaved
	}
	if p.Scores == nil {
		p.Scores = map[model.MatchID]model.Score{}
	}
	if err := validatePrediction(p); err != nil {
		return model.Prediction{}, err
	}
	if err := s.checkDeadline(ctx, p.Round); err != nil {
		return model.Prediction{}, err
	}

	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	if err := s.store.Create(ctx, p); err != nil {
		return model.Prediction{}, err
	}

	metrics.RecordPredictionWrite("create")
	metrics.UpdatePredictionsTotal(s.store.Count(ctx))
	s.logger.Debug(ctx, "prediction created",
		logger.String("id", p.ID),
		logger.String("userID", p.UserID),
		logger.Int("round", p.Round))
	return p, nil
}

// GetPrediction returns a prediction scored against its round's results.
// Without stored results every fixture is unknown and the view is empty.
func (s *Service) GetPrediction(ctx context.Context, id string) (PredictionView, error) {
	if !s.running() {
		return PredictionView{}, ErrNotStarted
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return PredictionView{}, err
	}

	view := PredictionView{Prediction: p, Breakdown: []scoring.MatchPoints{}}
	results, err := s.store.Results(ctx, p.Round)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return view, nil
	case err != nil:
		return PredictionView{}, fmt.Errorf("loading round %d: %w", p.Round, err)
	}

	view.Breakdown = scoring.Breakdown(p, results)
	view.Points = ranking.TallyOne(p, results)
	return view, nil
}

// ListPredictions returns userID's predictions, oldest first.
func (s *Service) ListPredictions(ctx context.Context, userID string) ([]model.Prediction, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidPrediction)
	}
	return s.store.ListByUser(ctx, userID)
}

// UpdatePrediction replaces the scores of prediction id owned by userID.
func (s *Service) UpdatePrediction(ctx context.Context, id, userID string, scores map[model.MatchID]model.Score) (model.Prediction, error) {
	if !s.running() {
		return model.Prediction{}, ErrNotStarted
	}
	current, err := s.owned(ctx, id, userID)
	if err != nil {
		return model.Prediction{}, err
	}

	candidate := current
	candidate.Scores = scores
	if candidate.Scores == nil {
		candidate.Scores = map[model.MatchID]model.Score{}
	}
	if err := validatePrediction(candidate); err != nil {
		return model.Prediction{}, err
	}
	if err := s.checkDeadline(ctx, current.Round); err != nil {
		return model.Prediction{}, err
	}

	updated, err := s.store.UpdateScores(ctx, id, candidate.Scores)
	if err != nil {
		return model.Prediction{}, err
	}
	metrics.RecordPredictionWrite("update")
	return updated, nil
}

// DeletePrediction removes prediction id owned by userID.
func (s *Service) DeletePrediction(ctx context.Context, id, userID string) error {
	if !s.running() {
		return ErrNotStarted
	}
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RecordPredictionWrite("delete")
	metrics.UpdatePredictionsTotal(s.store.Count(ctx))
	return nil
}

func (s *Service) owned(ctx context.Context, id, userID string) (model.Prediction, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Prediction{}, err
	}
	if p.UserID != strings.TrimSpace(userID) {
		return model.Prediction{}, fmt.Errorf("prediction %s: %w", id, ErrForbidden)
	}
	return p, nil
}

func validatePrediction(p model.Prediction) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidPrediction)
	}
	if p.Round < 1 {
		return fmt.Errorf("%w: round must be positive", ErrInvalidPrediction)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPrediction, p.Status)
	}
	if err := p.ValidateScores(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrediction, err)
	}
	return nil
}

// checkDeadline fails once the round's earliest kickoff has been reached.
// Rounds without stored results or kickoff times have no deadline.
func (s *Service) checkDeadline(ctx context.Context, round int) error {
	if !s.enforceDeadline {
		return nil
	}
	results, err := s.store.Results(ctx, round)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading round %d: %w", round, err)
	}
	deadline, ok := results.Deadline()
	if ok && !s.now().Before(deadline) {
		return fmt.Errorf("round %d closed at %s: %w", round, deadline.Format(time.RFC3339), ErrDeadlinePassed)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"rankOrder":       s.order.String(),
		"enforceDeadline": s.enforceDeadline,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		total := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["busyWorkers"] = s.workerPool.Busy()
		stats["totalPredictions"] = total
		stats["dedupeEntries"] = s.deduper.Size(ctx)

		s.settledMu.Lock()
		stats["settledRounds"] = len(s.settlements)
		s.settledMu.Unlock()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdatePredictionsTotal(total)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// LastSettlement returns the most recent settlement of round, if any.
func (s *Service) LastSettlement(round int) (model.Settlement, bool) {
	s.settledMu.Lock()
	defer s.settledMu.Unlock()
	st, ok := s.settlements[round]
	return st, ok
}

func (s *Service) recordSettlement(st workerpool.Settled) {
	s.settledMu.Lock()
	s.settlements[st.Settlement.Round] = st.Settlement
	s.settledMu.Unlock()
}
