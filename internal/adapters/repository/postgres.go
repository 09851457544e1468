package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/scoreline/internal/domain/model"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore persists matchdays and predictions in Postgres. Scores and
// fixtures are stored as JSONB.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore opens a connection using dsn, verifies it and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := &PostgresStore{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matchdays (
			round      INT PRIMARY KEY,
			matches    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			round      INT NOT NULL,
			scores     JSONB NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, round)
		)`,
		`CREATE INDEX IF NOT EXISTS predictions_round_status_idx ON predictions (round, status)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// PutResults upserts the result set for rs.Round.
func (s *PostgresStore) PutResults(ctx context.Context, rs model.ResultSet) error {
	defer observeUpdate(time.Now())
	if rs.Round < 1 {
		return fmt.Errorf("round %d: %w", rs.Round, ErrInvalidArg)
	}
	matches, err := json.Marshal(rs.Matches)
	if err != nil {
		return fmt.Errorf("encoding matches: %w", err)
	}
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = s.now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matchdays (round, matches, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (round) DO UPDATE SET matches = EXCLUDED.matches, updated_at = EXCLUDED.updated_at`,
		rs.Round, matches, rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing matchday %d: %w", rs.Round, err)
	}
	return nil
}

// Results returns the result set for round.
func (s *PostgresStore) Results(ctx context.Context, round int) (model.ResultSet, error) {
	defer observeQuery(time.Now())
	var (
		raw []byte
		rs  = model.ResultSet{Round: round}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT matches, updated_at FROM matchdays WHERE round = $1`, round).
		Scan(&raw, &rs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ResultSet{}, fmt.Errorf("matchday %d: %w", round, ErrNotFound)
	}
	if err != nil {
		return model.ResultSet{}, fmt.Errorf("loading matchday %d: %w", round, err)
	}
	if err := json.Unmarshal(raw, &rs.Matches); err != nil {
		return model.ResultSet{}, fmt.Errorf("decoding matchday %d: %w", round, err)
	}
	rs.UpdatedAt = rs.UpdatedAt.UTC()
	return rs, nil
}

// Rounds lists known rounds, most recent first.
func (s *PostgresStore) Rounds(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT round FROM matchdays ORDER BY round DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rounds []int
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// Create inserts p.
func (s *PostgresStore) Create(ctx context.Context, p model.Prediction) error {
	defer observeUpdate(time.Now())
	if p.ID == "" || p.UserID == "" {
		return fmt.Errorf("prediction id and user id are required: %w", ErrInvalidArg)
	}
	scores, err := json.Marshal(p.Scores)
	if err != nil {
		return fmt.Errorf("encoding scores: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, user_id, round, scores, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		p.ID, p.UserID, p.Round, scores, string(p.Status), p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("user %s round %d: %w", p.UserID, p.Round, ErrConflict)
		}
		return fmt.Errorf("inserting prediction: %w", err)
	}
	return nil
}

const predictionColumns = `id, user_id, round, scores, status, created_at, updated_at`

// Get returns the prediction with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (model.Prediction, error) {
	defer observeQuery(time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Prediction{}, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	return p, err
}

// UpdateScores replaces the scores of prediction id.
func (s *PostgresStore) UpdateScores(ctx context.Context, id string, scores map[model.MatchID]model.Score) (model.Prediction, error) {
	defer observeUpdate(time.Now())
	raw, err := json.Marshal(scores)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("encoding scores: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE predictions SET scores = $2, updated_at = $3 WHERE id = $1
		RETURNING `+predictionColumns, id, raw, s.now().UTC())
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Prediction{}, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	return p, err
}

// Delete removes prediction id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	defer observeUpdate(time.Now())
	res, err := s.db.ExecContext(ctx, `DELETE FROM predictions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting prediction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting prediction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListByRound returns the round's predictions with status, oldest first.
func (s *PostgresStore) ListByRound(ctx context.Context, round int, status model.PredictionStatus) ([]model.Prediction, error) {
	defer observeQuery(time.Now())
	return s.list(ctx, `SELECT `+predictionColumns+` FROM predictions
		WHERE round = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at, id`, round, string(status))
}

// FindByUser returns userID's prediction for round.
func (s *PostgresStore) FindByUser(ctx context.Context, userID string, round int) (model.Prediction, error) {
	defer observeQuery(time.Now())
	row := s.db.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = $1 AND round = $2`, userID, round)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Prediction{}, fmt.Errorf("user %s round %d: %w", userID, round, ErrNotFound)
	}
	return p, err
}

// ListByUser returns all of userID's predictions, oldest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]model.Prediction, error) {
	defer observeQuery(time.Now())
	return s.list(ctx, `SELECT `+predictionColumns+` FROM predictions
		WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

// Count returns the number of stored predictions, or 0 when the query fails.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Prediction, 0)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (model.Prediction, error) {
	var (
		p      model.Prediction
		raw    []byte
		status string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Round, &raw, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Prediction{}, err
	}
	p.Status = model.PredictionStatus(status)
	if err := json.Unmarshal(raw, &p.Scores); err != nil {
		return model.Prediction{}, fmt.Errorf("decoding scores of %s: %w", p.ID, err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
