package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/types"
)

const maxQueryBody = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// QueryAnswerer runs one query.
type QueryAnswerer interface {
	Answer(ctx context.Context, req types.QueryRequest) (types.Result, error)
}

// QueryHandler handles POST /query.
type QueryHandler struct {
	deps QueryAnswerer
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(deps QueryAnswerer) *QueryHandler {
	return &QueryHandler{deps: deps}
}

// HandleQuery decodes a QueryRequest and writes the Result.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req types.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		status, code := statusFor(errors.Mark(errors.Wrap(err, "decode query"), ErrBadRequest))
		writeError(w, status, code, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		status, code := statusFor(errors.Mark(err, ErrBadRequest))
		writeError(w, status, code, err)
		return
	}

	res, err := h.deps.Answer(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
