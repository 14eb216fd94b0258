// Package llm implements the remote semantic parser on top of langchaingo.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
)

// ErrEmptyCompletion is returned when the model produced no choices.
var ErrEmptyCompletion = errors.New("empty completion")

// Completer sends an instruction and an input to a chat model in JSON mode.
type Completer struct {
	model       llms.Model
	timeout     time.Duration
	temperature float64
	logger      logger.Logger
}

// Option configures a Completer.
type Option func(*Completer)

// WithTimeout bounds each Complete call.
func WithTimeout(d time.Duration) Option { return func(c *Completer) { c.timeout = d } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option { return func(c *Completer) { c.temperature = t } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(c *Completer) { c.logger = l } }

// New wraps an existing model.
func New(model llms.Model, opts ...Option) *Completer {
	c := &Completer{model: model, timeout: 20 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.NewNop()
	}
	return c
}

// NewOpenAI builds a Completer against an OpenAI-compatible endpoint.
func NewOpenAI(baseURL, model, token string, opts ...Option) (*Completer, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithToken(token),
		openai.WithResponseFormat(openai.ResponseFormatJSON),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create openai client")
	}
	return New(llm, opts...), nil
}

// Complete returns the raw model reply for input under instruction.
func (c *Completer) Complete(ctx context.Context, instruction, input string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, instruction),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", errors.Wrap(err, "generate content")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	c.logger.Debug(ctx, "remote parse completed",
		logger.Duration("latency", time.Since(start)),
		logger.Int("reply_bytes", len(out)),
	)
	return out, nil
}
