package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
)

// Outcome of a single submission.
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeConflict
	outcomeFailed
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(cfg *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}
}

// Get performs a GET request and decodes a 200 response into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body and decodes the response into out.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusMultipleChoices && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// submitPredictions creates every prediction using cfg.Workers workers.
func submitPredictions(ctx context.Context, cfg *Config, client *HTTPClient, predictions []model.Prediction, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting predictions", logger.Int("count", len(predictions)), logger.Int("workers", cfg.Workers))

	var created, conflict, failed int64

	jobs := make(chan model.Prediction, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				switch submitPrediction(ctx, client, p) {
				case outcomeCreated:
					atomic.AddInt64(&created, 1)
				case outcomeConflict:
					atomic.AddInt64(&conflict, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range predictions {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()
	wg.Wait()

	stats.PredictionsCreated = int(atomic.LoadInt64(&created))
	stats.PredictionsConflict = int(atomic.LoadInt64(&conflict))
	stats.PredictionsFailed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "prediction submission completed",
		logger.Int("created", stats.PredictionsCreated),
		logger.Int("conflict", stats.PredictionsConflict),
		logger.Int("failed", stats.PredictionsFailed))
}

func submitPrediction(ctx context.Context, client *HTTPClient, p model.Prediction) outcome {
	status, err := client.Post(ctx, "/predictions", createPredictionRequest{
		UserID: p.UserID,
		Round:  p.Round,
		Scores: p.Scores,
		Status: p.Status,
	}, nil)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusCreated:
		return outcomeCreated
	case status == http.StatusConflict:
		return outcomeConflict
	default:
		return outcomeFailed
	}
}

// postFeed sends the results update. A duplicate ack counts as success.
func postFeed(ctx context.Context, client *HTTPClient, s Scenario) error {
	var ack ackResponse
	status, err := client.Post(ctx, "/feed/results", s.Feed, &ack)
	if err != nil {
		return fmt.Errorf("posting feed: %w", err)
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return fmt.Errorf("posting feed: unexpected status %d", status)
	}
	logger.Get().Info(ctx, "feed posted", logger.String("eventID", ack.EventID), logger.Bool("duplicate", ack.Duplicate))
	return nil
}

// fetchResults returns the stored result set, or false while none is stored.
func fetchResults(ctx context.Context, client *HTTPClient, round int) (model.ResultSet, bool, error) {
	var rs model.ResultSet
	status, err := client.Get(ctx, "/matchdays/"+strconv.Itoa(round), &rs)
	if err != nil {
		return model.ResultSet{}, false, err
	}
	switch status {
	case http.StatusOK:
		return rs, true, nil
	case http.StatusNotFound:
		return model.ResultSet{}, false, nil
	default:
		return model.ResultSet{}, false, fmt.Errorf("matchday %d: unexpected status %d", round, status)
	}
}

func fetchLeaderboard(ctx context.Context, client *HTTPClient, round, limit int) (leaderboardResponse, error) {
	var lb leaderboardResponse
	path := fmt.Sprintf("/matchdays/%d/leaderboard?limit=%d", round, limit)
	status, err := client.Get(ctx, path, &lb)
	if err != nil {
		return leaderboardResponse{}, err
	}
	if status != http.StatusOK {
		return leaderboardResponse{}, fmt.Errorf("leaderboard: unexpected status %d", status)
	}
	return lb, nil
}

// fetchRanks asks for every user's rank concurrently. Failed lookups are
// left out of the returned map.
func fetchRanks(ctx context.Context, cfg *Config, client *HTTPClient, users []string) map[string]RankRow {
	rows := make(map[string]RankRow, len(users))
	var mu sync.Mutex

	jobs := make(chan string, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				var row RankRow
				path := fmt.Sprintf("/matchdays/%d/rank/%s", cfg.Round, url.PathEscape(userID))
				status, err := client.Get(ctx, path, &row)
				if err != nil || status != http.StatusOK {
					logger.Get().Debug(ctx, "rank lookup failed", logger.String("userID", userID), logger.Int("status", status))
					continue
				}
				mu.Lock()
				rows[userID] = row
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, u := range users {
			select {
			case <-ctx.Done():
				return
			case jobs <- u:
			}
		}
	}()
	wg.Wait()
	return rows
}
