package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	service "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
)

// MatchdayDependencies reads stored results and ranks a round.
type MatchdayDependencies interface {
	CurrentRound(ctx context.Context, userID string) (service.CurrentRound, error)
	Results(ctx context.Context, round int) (model.ResultSet, error)
	Leaderboard(ctx context.Context, round, limit int) ([]ranking.Standing, error)
	Rank(ctx context.Context, round int, userID string) (ranking.Result, error)
}

// MatchdayHandler handles matchday, leaderboard and rank requests.
type MatchdayHandler struct {
	deps     MatchdayDependencies
	maxLimit int
}

// NewMatchdayHandler creates a new matchday handler.
func NewMatchdayHandler(deps MatchdayDependencies, maxLimit int) *MatchdayHandler {
	return &MatchdayHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type leaderboardResponse struct {
	Round     int                `json:"round"`
	Standings []ranking.Standing `json:"standings"`
}

// currentRoundResponse reports the prediction fields as null when the user
// has no prediction for the round.
type currentRoundResponse struct {
	Round            int                     `json:"round"`
	Matches          []model.MatchResult     `json:"matches"`
	PredictionID     *string                 `json:"prediction_id"`
	PredictionStatus *model.PredictionStatus `json:"prediction_status"`
	Allowed          bool                    `json:"allowed"`
}

// rankResponse reports rank as null when the user has no prediction.
type rankResponse struct {
	Round        int    `json:"round"`
	UserID       string `json:"user_id"`
	Rank         *int   `json:"rank"`
	Points       int    `json:"points"`
	Participants int    `json:"participants"`
}

// HandleGetCurrent handles GET /matchdays/current?user_id= requests.
func (h *MatchdayHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_current_matchday"
	cur, err := h.deps.CurrentRound(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}

	resp := currentRoundResponse{
		Round:   cur.Results.Round,
		Matches: cur.Results.Matches,
		Allowed: cur.Allowed,
	}
	if resp.Matches == nil {
		resp.Matches = []model.MatchResult{}
	}
	if p := cur.Prediction; p != nil {
		resp.PredictionID = &p.ID
		resp.PredictionStatus = &p.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetResults handles GET /matchdays/{round} requests.
func (h *MatchdayHandler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_matchday"
	round, err := roundVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}
	rs, err := h.deps.Results(r.Context(), round)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// HandleGetLeaderboard handles GET /matchdays/{round}/leaderboard?limit=N
// requests. Without a limit the configured maximum applies.
func (h *MatchdayHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	round, err := roundVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}

	n := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	table, err := h.deps.Leaderboard(r.Context(), round, n)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if table == nil {
		table = []ranking.Standing{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Round: round, Standings: table})
}

// HandleGetRank handles GET /matchdays/{round}/rank/{user_id} requests.
func (h *MatchdayHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	round, err := roundVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}
	userID := mux.Vars(r)["user_id"]

	res, err := h.deps.Rank(r.Context(), round, userID)
	if err != nil {
		writeFailure(w, op, err)
		return
	}

	resp := rankResponse{
		Round:        round,
		UserID:       userID,
		Points:       res.Points,
		Participants: res.Participants,
	}
	if res.Ranked {
		rank := res.Rank
		resp.Rank = &rank
	}
	writeJSON(w, http.StatusOK, resp)
}
