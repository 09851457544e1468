package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/scoreline/internal/domain/model"
)

const defaultRedisPrefix = "scoreline:"

// RedisStore keeps matchdays and predictions in Redis as JSON documents.
//
// Keys, relative to the prefix:
//
//	matchday:{round}           JSON result set
//	rounds                     sorted set of known rounds
//	prediction:{id}            JSON prediction
//	predictions                set of all prediction ids
//	predictions:round:{round}  hash user id -> prediction id
//	predictions:user:{user}    set of prediction ids
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key the store touches.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore wraps client after checking it is reachable.
func NewRedisStore(ctx context.Context, client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	s := &RedisStore{client: client, prefix: defaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (s *RedisStore) matchdayKey(round int) string {
	return s.key("matchday", strconv.Itoa(round))
}

func (s *RedisStore) predictionKey(id string) string {
	return s.key("prediction", id)
}

func (s *RedisStore) roundIndexKey(round int) string {
	return s.key("predictions", "round", strconv.Itoa(round))
}

func (s *RedisStore) userIndexKey(userID string) string {
	return s.key("predictions", "user", userID)
}

// PutResults replaces the result set for rs.Round.
func (s *RedisStore) PutResults(ctx context.Context, rs model.ResultSet) error {
	defer observeUpdate(time.Now())
	if rs.Round < 1 {
		return fmt.Errorf("round %d: %w", rs.Round, ErrInvalidArg)
	}
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = s.now().UTC()
	}
	raw, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encoding matchday %d: %w", rs.Round, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.matchdayKey(rs.Round), raw, 0)
		pipe.ZAdd(ctx, s.key("rounds"), &redis.Z{Score: float64(rs.Round), Member: rs.Round})
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing matchday %d: %w", rs.Round, err)
	}
	return nil
}

// Results returns the result set for round.
func (s *RedisStore) Results(ctx context.Context, round int) (model.ResultSet, error) {
	defer observeQuery(time.Now())
	raw, err := s.client.Get(ctx, s.matchdayKey(round)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ResultSet{}, fmt.Errorf("matchday %d: %w", round, ErrNotFound)
	}
	if err != nil {
		return model.ResultSet{}, fmt.Errorf("loading matchday %d: %w", round, err)
	}
	var rs model.ResultSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return model.ResultSet{}, fmt.Errorf("decoding matchday %d: %w", round, err)
	}
	return rs, nil
}

// Rounds lists known rounds, most recent first.
func (s *RedisStore) Rounds(ctx context.Context) ([]int, error) {
	members, err := s.client.ZRevRange(ctx, s.key("rounds"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	rounds := make([]int, 0, len(members))
	for _, m := range members {
		r, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("parsing round %q: %w", m, err)
		}
		rounds = append(rounds, r)
	}
	return rounds, nil
}

// Create stores p. The user's slot in the round is claimed first so two
// concurrent creates for the same user and round cannot both succeed.
func (s *RedisStore) Create(ctx context.Context, p model.Prediction) error {
	defer observeUpdate(time.Now())
	if p.ID == "" || p.UserID == "" {
		return fmt.Errorf("prediction id and user id are required: %w", ErrInvalidArg)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding prediction: %w", err)
	}

	claimed, err := s.client.HSetNX(ctx, s.roundIndexKey(p.Round), p.UserID, p.ID).Result()
	if err != nil {
		return fmt.Errorf("claiming user %s round %d: %w", p.UserID, p.Round, err)
	}
	if !claimed {
		return fmt.Errorf("user %s round %d: %w", p.UserID, p.Round, ErrConflict)
	}

	stored, err := s.client.SetNX(ctx, s.predictionKey(p.ID), raw, 0).Result()
	if err != nil {
		return errors.Join(fmt.Errorf("storing prediction %s: %w", p.ID, err), s.releaseClaim(ctx, p))
	}
	if !stored {
		return errors.Join(fmt.Errorf("prediction %s: %w", p.ID, ErrConflict), s.releaseClaim(ctx, p))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.key("predictions"), p.ID)
		pipe.SAdd(ctx, s.userIndexKey(p.UserID), p.ID)
		return nil
	})
	if err != nil {
		undo := s.client.Del(context.WithoutCancel(ctx), s.predictionKey(p.ID)).Err()
		if undo != nil {
			undo = fmt.Errorf("removing prediction %s: %w", p.ID, undo)
		}
		return errors.Join(fmt.Errorf("indexing prediction %s: %w", p.ID, err), undo, s.releaseClaim(ctx, p))
	}
	return nil
}

// releaseClaim undoes the round claim taken by Create. It runs even when ctx
// is already cancelled.
func (s *RedisStore) releaseClaim(ctx context.Context, p model.Prediction) error {
	if err := s.client.HDel(context.WithoutCancel(ctx), s.roundIndexKey(p.Round), p.UserID).Err(); err != nil {
		return fmt.Errorf("releasing user %s round %d: %w", p.UserID, p.Round, err)
	}
	return nil
}

// Get returns the prediction with id.
func (s *RedisStore) Get(ctx context.Context, id string) (model.Prediction, error) {
	defer observeQuery(time.Now())
	return s.get(ctx, id)
}

func (s *RedisStore) get(ctx context.Context, id string) (model.Prediction, error) {
	raw, err := s.client.Get(ctx, s.predictionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Prediction{}, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Prediction{}, fmt.Errorf("loading prediction %s: %w", id, err)
	}
	var p model.Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Prediction{}, fmt.Errorf("decoding prediction %s: %w", id, err)
	}
	return p, nil
}

// UpdateScores replaces the scores of prediction id.
func (s *RedisStore) UpdateScores(ctx context.Context, id string, scores map[model.MatchID]model.Score) (model.Prediction, error) {
	defer observeUpdate(time.Now())
	var updated model.Prediction
	key := s.predictionKey(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("prediction %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &updated); err != nil {
			return fmt.Errorf("decoding prediction %s: %w", id, err)
		}
		updated.Scores = scores
		updated.UpdatedAt = s.now().UTC()
		next, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encoding prediction %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Prediction{}, err
		}
		return model.Prediction{}, fmt.Errorf("updating prediction %s: %w", id, err)
	}
	return updated, nil
}

// Delete removes prediction id and its index entries.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	defer observeUpdate(time.Now())
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.predictionKey(id))
		pipe.SRem(ctx, s.key("predictions"), id)
		pipe.SRem(ctx, s.userIndexKey(p.UserID), id)
		pipe.HDel(ctx, s.roundIndexKey(p.Round), p.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting prediction %s: %w", id, err)
	}
	return nil
}

// ListByRound returns the round's predictions with status, oldest first.
func (s *RedisStore) ListByRound(ctx context.Context, round int, status model.PredictionStatus) ([]model.Prediction, error) {
	defer observeQuery(time.Now())
	ids, err := s.client.HVals(ctx, s.roundIndexKey(round)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing round %d: %w", round, err)
	}
	all, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	sortOldestFirst(out)
	return out, nil
}

// FindByUser returns userID's prediction for round.
func (s *RedisStore) FindByUser(ctx context.Context, userID string, round int) (model.Prediction, error) {
	defer observeQuery(time.Now())
	id, err := s.client.HGet(ctx, s.roundIndexKey(round), userID).Result()
	if errors.Is(err, redis.Nil) {
		return model.Prediction{}, fmt.Errorf("user %s round %d: %w", userID, round, ErrNotFound)
	}
	if err != nil {
		return model.Prediction{}, fmt.Errorf("finding user %s round %d: %w", userID, round, err)
	}
	return s.get(ctx, id)
}

// ListByUser returns all of userID's predictions, oldest first.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]model.Prediction, error) {
	defer observeQuery(time.Now())
	ids, err := s.client.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing user %s: %w", userID, err)
	}
	out, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(out)
	return out, nil
}

// Count returns the number of stored predictions, or 0 when Redis fails.
func (s *RedisStore) Count(ctx context.Context) int {
	n, err := s.client.SCard(ctx, s.key("predictions")).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// load fetches ids in one round trip. Ids whose document vanished are skipped.
func (s *RedisStore) load(ctx context.Context, ids []string) ([]model.Prediction, error) {
	out := make([]model.Prediction, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.predictionKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading predictions: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p model.Prediction
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decoding prediction %s: %w", ids[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}
