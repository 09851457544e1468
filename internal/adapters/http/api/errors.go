package api

import (
	"errors"
	"net/http"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/adapters/repository"
	service "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/domain/model"
)

// ErrBadRequest is the kind of errors caused by a malformed request.
var ErrBadRequest = errors.New("bad request")

// Error ties a failure to the handler operation that produced it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attributes err to op.
func Wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// WrapKind attributes err to op and classifies it as kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// statusFor maps domain and service errors onto an HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidPrediction),
		errors.Is(err, service.ErrInvalidFeed),
		errors.Is(err, feed.ErrInvalidPayload),
		errors.Is(err, model.ErrNegativeGoals),
		errors.Is(err, repository.ErrInvalidArg):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrDeadlinePassed):
		return http.StatusForbidden, "deadline_passed"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
