package api

import (
	"errors"
	"net/http"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/internal/store"
)

var (
	// ErrBadRequest marks malformed client input.
	ErrBadRequest = errors.New("bad request")
)

type errorBody struct {
	OK      bool         `json:"ok"`
	Message string       `json:"message"`
	Issues  []core.Issue `json:"issues,omitempty"`
}

// statusFor maps simulator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConfigInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, store.ErrEmpty),
		errors.Is(err, core.ErrUnresolvedWaypoint):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the body for err, carrying validation issues when
// the error has them.
func errorResponse(err error) errorBody {
	body := errorBody{Message: err.Error()}
	var cerr *core.ConfigError
	if errors.As(err, &cerr) {
		body.Issues = cerr.Result.Issues
	}
	if statusFor(err) == http.StatusInternalServerError {
		body.Message = http.StatusText(http.StatusInternalServerError)
	}
	return body
}
