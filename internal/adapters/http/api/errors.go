package api

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

// ErrBadRequest marks malformed or invalid request bodies.
var ErrBadRequest = errors.New("bad request")

// statusFor maps an error kind to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrResolution):
		return http.StatusUnprocessableEntity, "resolution_error"
	case errors.Is(err, model.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, model.ErrFetch):
		return http.StatusBadGateway, "fetch_error"
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusInternalServerError, "configuration_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
