package api

import (
	"context"
	"net/http"

	"github.com/okian/scoreline/internal/adapters/feed"
	service "github.com/okian/scoreline/internal/app"
)

// FeedDependencies accepts results feed updates for asynchronous settlement.
type FeedDependencies interface {
	IngestFeed(ctx context.Context, u feed.Update) (service.IngestResult, error)
}

// FeedHandler handles results feed requests.
type FeedHandler struct {
	deps FeedDependencies
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(deps FeedDependencies) *FeedHandler {
	return &FeedHandler{deps: deps}
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostResults handles POST /feed/results requests. Accepted updates
// answer 202, repeated event ids answer 200.
func (h *FeedHandler) HandlePostResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_feed_results"
	u, err := feed.Decode(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.IngestFeed(r.Context(), u)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", EventID: res.EventID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: res.EventID})
}
