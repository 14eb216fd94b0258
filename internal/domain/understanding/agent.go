// Package understanding is the fast-path query reader: ordered pattern
// templates first, one remote structured-output call otherwise.
package understanding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/cache"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/entity"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// TemplateConfidence is the confidence of every template match.
const TemplateConfidence = 0.9

const parseInstruction = `You read questions about Formula 1 statistics.
Respond with ONLY a JSON object of the form
{"action": "<performance|compare|qualifying|results|standings|schedule|laps|pitstops|sprint>",
 "entity": "<driver|drivers|constructor|constructors|race|season>",
 "parameters": {"season": ..., "driver": ..., "constructor": ..., "circuit": ..., "round": ...},
 "reasoning": ["..."]}.
Use lists for several drivers, constructors or seasons. Omit unknown parameters.`

var optionalSlots = []string{
	model.ParamSeason, model.ParamDriver, model.ParamConstructor, model.ParamCircuit, model.ParamRound,
}

// Result is one parse of a query.
type Result struct {
	Parsed     model.ParsedParameters
	Confidence float64
	Trace      []string
	// Template names the matching template; empty for remote parses.
	Template string
}

func (r Result) clone() Result {
	out := r
	out.Parsed.Params = r.Parsed.Params.Clone()
	out.Trace = append([]string(nil), r.Trace...)
	return out
}

// Agent parses queries. Parse results are memoized by exact query text.
type Agent struct {
	completer  model.Completer
	normalizer *entity.Normalizer
	memo       *cache.Manager[Result]
	now        func() time.Time
	logger     logger.Logger
	metrics    *metrics.Manager
}

// Option configures an Agent.
type Option func(*agentConfig)

type agentConfig struct {
	completer    model.Completer
	normalizer   *entity.Normalizer
	memoCapacity int
	now          func() time.Time
	logger       logger.Logger
	metrics      *metrics.Manager
}

// WithCompleter enables the remote parse for queries no template matches.
func WithCompleter(c model.Completer) Option { return func(o *agentConfig) { o.completer = c } }

// WithNormalizer sets the entity normalizer used to classify subjects.
func WithNormalizer(n *entity.Normalizer) Option { return func(o *agentConfig) { o.normalizer = n } }

// WithMemoCapacity bounds the memo.
func WithMemoCapacity(n int) Option { return func(o *agentConfig) { o.memoCapacity = n } }

// WithClock injects the clock used for "since year" expansion.
func WithClock(now func() time.Time) Option { return func(o *agentConfig) { o.now = now } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(o *agentConfig) { o.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Manager) Option { return func(o *agentConfig) { o.metrics = m } }

// New creates an Agent.
func New(opts ...Option) *Agent {
	cfg := agentConfig{memoCapacity: 512, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.normalizer == nil {
		cfg.normalizer = entity.New(nil)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewNop()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Agent{
		completer:  cfg.completer,
		normalizer: cfg.normalizer,
		memo: cache.New[Result](
			cache.WithCapacity(cfg.memoCapacity),
			cache.WithName("understanding"),
			cache.WithMetrics(cfg.metrics),
		),
		now:     cfg.now,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
}

// Parse reads query into structured parameters.
func (a *Agent) Parse(ctx context.Context, query string) (Result, error) {
	if r, ok := a.memo.Get(query); ok {
		r = r.clone()
		r.Trace = append(r.Trace, "memoized parse")
		return r, nil
	}

	r, err := a.parse(ctx, query)
	if err != nil {
		return Result{}, err
	}
	a.memo.Set(query, r.clone())
	return r, nil
}

func (a *Agent) parse(ctx context.Context, query string) (Result, error) {
	if t, groups := match(query); t != nil {
		parsed := t.build(a, groups)
		return Result{
			Parsed:     parsed,
			Confidence: TemplateConfidence,
			Template:   t.name,
			Trace:      []string{fmt.Sprintf("template %s matched: action=%s entity=%s", t.name, parsed.Action, parsed.Entity)},
		}, nil
	}

	if a.completer == nil {
		return Result{}, model.ResolutionErrorf("no template matched %q and remote parsing is disabled", query)
	}

	a.metrics.RecordRemoteParse("understanding")
	raw, err := a.completer.Complete(ctx, parseInstruction, query)
	if err != nil {
		a.logger.Warn(ctx, "remote parse failed", logger.Error(err))
		return Result{}, model.WrapResolution(err, "remote parse")
	}

	var parsed model.ParsedParameters
	if err := model.DecodeReply(raw, &parsed); err != nil {
		a.logger.Warn(ctx, "remote parse reply rejected", logger.Error(err))
		return Result{}, err
	}
	parsed.Action = strings.ToLower(strings.TrimSpace(parsed.Action))
	parsed.Entity = strings.ToLower(strings.TrimSpace(parsed.Entity))
	if parsed.Action == "" && parsed.Entity == "" && len(parsed.Params) == 0 {
		return Result{}, model.ResolutionErrorf("remote parse of %q returned no action, entity or parameters", query)
	}

	trace := []string{fmt.Sprintf("remote parse: action=%s entity=%s", parsed.Action, parsed.Entity)}
	trace = append(trace, parsed.Reasoning...)
	return Result{Parsed: parsed, Confidence: RemoteConfidence(parsed), Trace: trace}, nil
}

// RemoteConfidence scores a remote parse: 0.6 for the presence of action,
// entity and parameters plus 0.4 for populated optional slots.
func RemoteConfidence(p model.ParsedParameters) float64 {
	present := 0
	if p.Action != "" {
		present++
	}
	if p.Entity != "" {
		present++
	}
	if len(p.Params) > 0 {
		present++
	}
	populated := 0
	for _, k := range optionalSlots {
		if p.Params.Populated(k) {
			populated++
		}
	}
	return 0.6*float64(present)/3 + 0.4*float64(populated)/float64(len(optionalSlots))
}
