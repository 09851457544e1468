// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/scoreline/pkg/metrics"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PointsDependencies
	FeedDependencies
	MatchdayDependencies
	PredictionDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	pointsHandler     *PointsHandler
	feedHandler       *FeedHandler
	matchdayHandler   *MatchdayHandler
	predictionHandler *PredictionHandler

	maxLimit int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.pointsHandler = NewPointsHandler(deps)
	s.feedHandler = NewFeedHandler(deps)
	s.matchdayHandler = NewMatchdayHandler(deps, s.maxLimit)
	s.predictionHandler = NewPredictionHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	r.HandleFunc("/points", MetricsMiddleware(s.pointsHandler.HandlePostPoints, "points")).Methods(http.MethodPost)
	r.HandleFunc("/feed/results", MetricsMiddleware(s.feedHandler.HandlePostResults, "feed_results")).Methods(http.MethodPost)

	r.HandleFunc("/matchdays/current",
		MetricsMiddleware(s.matchdayHandler.HandleGetCurrent, "matchday_current")).Methods(http.MethodGet)
	r.HandleFunc("/matchdays/{round:[0-9]+}",
		MetricsMiddleware(s.matchdayHandler.HandleGetResults, "matchday")).Methods(http.MethodGet)
	r.HandleFunc("/matchdays/{round:[0-9]+}/leaderboard",
		MetricsMiddleware(s.matchdayHandler.HandleGetLeaderboard, "leaderboard")).Methods(http.MethodGet)
	r.HandleFunc("/matchdays/{round:[0-9]+}/rank/{user_id}",
		MetricsMiddleware(s.matchdayHandler.HandleGetRank, "rank")).Methods(http.MethodGet)

	r.HandleFunc("/predictions", MetricsMiddleware(s.predictionHandler.HandleCreate, "predictions")).Methods(http.MethodPost)
	r.HandleFunc("/predictions", MetricsMiddleware(s.predictionHandler.HandleList, "predictions")).Methods(http.MethodGet)
	r.HandleFunc("/predictions/{id}", MetricsMiddleware(s.predictionHandler.HandleGet, "prediction")).Methods(http.MethodGet)
	r.HandleFunc("/predictions/{id}", MetricsMiddleware(s.predictionHandler.HandleUpdate, "prediction")).Methods(http.MethodPatch)
	r.HandleFunc("/predictions/{id}", MetricsMiddleware(s.predictionHandler.HandleDelete, "prediction")).Methods(http.MethodDelete)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and writes the matching error envelope.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, Wrap(op, err))
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// roundVar parses the {round} path variable.
func roundVar(r *http.Request) (int, error) {
	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil || round < 1 {
		return 0, ErrBadRequest
	}
	return round, nil
}
