package model

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Completer is the minimal contract of the remote semantic parser: given a
// fixed instruction and the user input, return a JSON document.
//
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}

// ParsedParameters is the structured reading of a query. Remote replies
// may leave any field out; missing fields lower the parse confidence.
type ParsedParameters struct {
	Action    string   `json:"action"`
	Entity    string   `json:"entity"`
	Params    Params   `json:"parameters"`
	Reasoning []string `json:"reasoning"`
}

// MappingReply is the remote reply shape shared by endpoint mapping and the
// legacy resolver.
type MappingReply struct {
	Endpoint       Endpoint `json:"endpoint" validate:"required"`
	ModifiedParams Params   `json:"modified_params"`
	Reasoning      []string `json:"reasoning"`
}

var replyValidator = validator.New()

// DecodeReply extracts the JSON object from a remote reply, tolerating code
// fences and surrounding prose, decodes it into v and validates it.
// Any failure is a resolution error.
func DecodeReply(raw string, v any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return ResolutionErrorf("empty reply from remote parser")
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ResolutionErrorf("no JSON object in remote reply: %s", truncate(s, 100))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return WrapResolution(err, "decode remote reply")
	}
	if err := replyValidator.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return WrapResolution(err, "remote reply incomplete")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
