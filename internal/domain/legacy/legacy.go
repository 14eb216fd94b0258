// Package legacy is the baseline resolution strategy: a single remote call
// that maps the raw query straight to an endpoint and parameters.
package legacy

import (
	"context"
	"fmt"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/endpoint"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

const instruction = `You translate Formula 1 statistics questions into one data request.
Choose exactly one endpoint from this catalog:
%s
Respond with ONLY a JSON object of the form
{"endpoint": "<endpoint>", "modified_params": {"season": ..., "driver": ..., "constructor": ..., "circuit": ..., "round": ...}, "reasoning": ["..."]}.
Use lists for several drivers, constructors or seasons.`

var optionalSlots = []string{
	model.ParamSeason, model.ParamDriver, model.ParamConstructor, model.ParamCircuit, model.ParamRound,
}

// Resolver is the legacy strategy.
type Resolver struct {
	completer model.Completer
	mapper    *endpoint.Mapper
	logger    logger.Logger
	metrics   *metrics.Manager
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMapper sets the mapper whose catalog and transforms are reused.
func WithMapper(m *endpoint.Mapper) Option { return func(r *Resolver) { r.mapper = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(r *Resolver) { r.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Manager) Option { return func(r *Resolver) { r.metrics = m } }

// New creates a Resolver on its own Completer. A nil completer makes every
// Resolve fail with a resolution error.
func New(completer model.Completer, opts ...Option) *Resolver {
	r := &Resolver{completer: completer}
	for _, opt := range opts {
		opt(r)
	}
	if r.mapper == nil {
		r.mapper = endpoint.NewMapper()
	}
	if r.logger == nil {
		r.logger = logger.NewNop()
	}
	return r
}

// Resolve issues one remote call and validates the reply against the catalog.
func (r *Resolver) Resolve(ctx context.Context, query string) (model.Candidate, error) {
	if r.completer == nil {
		return model.Candidate{}, model.ResolutionErrorf("legacy resolver has no remote parser")
	}

	r.metrics.RecordRemoteParse("legacy")
	raw, err := r.completer.Complete(ctx, fmt.Sprintf(instruction, r.mapper.Catalog().Describe()), query)
	if err != nil {
		r.logger.Warn(ctx, "legacy remote call failed", logger.Error(err))
		return model.Candidate{}, model.WrapResolution(err, "legacy remote call")
	}

	var reply model.MappingReply
	if err := model.DecodeReply(raw, &reply); err != nil {
		return model.Candidate{}, err
	}

	def, ok := r.mapper.Catalog().Lookup(reply.Endpoint)
	if !ok {
		return model.Candidate{}, model.ResolutionErrorf("legacy reply names unknown endpoint %q", reply.Endpoint)
	}

	req, dropped := r.mapper.Build(def, reply.ModifiedParams)
	trace := []string{fmt.Sprintf("legacy remote resolution -> %s", def.Endpoint)}
	trace = append(trace, reply.Reasoning...)
	if len(dropped) > 0 {
		trace = append(trace, fmt.Sprintf("dropped unrecognized params %v", dropped))
	}

	return model.Candidate{
		Requirements: req,
		Confidence:   Confidence(reply),
		Trace:        trace,
	}, nil
}

// Confidence scores a legacy reply: 0.6 for the presence of endpoint and
// params plus 0.4 for populated optional slots.
func Confidence(reply model.MappingReply) float64 {
	present := 0
	if reply.Endpoint != "" {
		present++
	}
	if len(reply.ModifiedParams) > 0 {
		present++
	}
	populated := 0
	for _, k := range optionalSlots {
		if reply.ModifiedParams.Populated(k) {
			populated++
		}
	}
	return 0.6*float64(present)/2 + 0.4*float64(populated)/float64(len(optionalSlots))
}
