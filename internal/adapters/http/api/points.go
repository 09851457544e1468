package api

import (
	"net/http"

	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/scoring"
)

// PointsDependencies scores a single prediction.
type PointsDependencies interface {
	Points(predicted, actual model.Score) (scoring.Tier, error)
}

// PointsHandler handles one-off scoring requests.
type PointsHandler struct {
	deps PointsDependencies
}

// NewPointsHandler creates a new points handler.
func NewPointsHandler(deps PointsDependencies) *PointsHandler {
	return &PointsHandler{deps: deps}
}

type pointsRequest struct {
	Predicted *model.Score `json:"predicted"`
	Actual    *model.Score `json:"actual"`
}

type pointsResponse struct {
	Points int    `json:"points"`
	Tier   string `json:"tier"`
}

// HandlePostPoints handles POST /points requests.
func (h *PointsHandler) HandlePostPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_points"
	var req pointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Predicted == nil || req.Actual == nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	tier, err := h.deps.Points(*req.Predicted, *req.Actual)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{Points: tier.Points(), Tier: tier.String()})
}
