package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	service "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/scoring"
)

// PredictionDependencies manages user predictions.
type PredictionDependencies interface {
	CreatePrediction(ctx context.Context, in service.NewPrediction) (model.Prediction, error)
	GetPrediction(ctx context.Context, id string) (service.PredictionView, error)
	ListPredictions(ctx context.Context, userID string) ([]model.Prediction, error)
	UpdatePrediction(ctx context.Context, id, userID string, scores map[model.MatchID]model.Score) (model.Prediction, error)
	DeletePrediction(ctx context.Context, id, userID string) error
}

// PredictionHandler handles prediction CRUD requests.
type PredictionHandler struct {
	deps PredictionDependencies
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(deps PredictionDependencies) *PredictionHandler {
	return &PredictionHandler{deps: deps}
}

type createPredictionRequest struct {
	UserID string                        `json:"user_id"`
	Round  int                           `json:"round"`
	Scores map[model.MatchID]model.Score `json:"scores"`
	Status model.PredictionStatus        `json:"status,omitempty"`
}

type updatePredictionRequest struct {
	UserID string                        `json:"user_id"`
	Scores map[model.MatchID]model.Score `json:"scores"`
}

type predictionResponse struct {
	model.Prediction
	Points    int                   `json:"points"`
	Breakdown []scoring.MatchPoints `json:"breakdown"`
}

// HandleCreate handles POST /predictions requests.
func (h *PredictionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_prediction"
	var req createPredictionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	p, err := h.deps.CreatePrediction(r.Context(), service.NewPrediction{
		UserID: req.UserID,
		Round:  req.Round,
		Scores: req.Scores,
		Status: req.Status,
	})
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /predictions?user_id= requests.
func (h *PredictionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_predictions"
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	list, err := h.deps.ListPredictions(r.Context(), userID)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if list == nil {
		list = []model.Prediction{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /predictions/{id} requests.
func (h *PredictionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_prediction"
	view, err := h.deps.GetPrediction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{
		Prediction: view.Prediction,
		Points:     view.Points,
		Breakdown:  view.Breakdown,
	})
}

// HandleUpdate handles PATCH /predictions/{id} requests.
func (h *PredictionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_prediction"
	var req updatePredictionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	p, err := h.deps.UpdatePrediction(r.Context(), mux.Vars(r)["id"], req.UserID, req.Scores)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /predictions/{id}?user_id= requests.
func (h *PredictionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_prediction"
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.DeletePrediction(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
