// Package resolver runs the fast-path and fallback strategies side by side
// and arbitrates a single ResolutionOutcome.
package resolver

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/endpoint"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/understanding"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// Strategy produces a candidate resolution for a query.
type Strategy interface {
	Resolve(ctx context.Context, query string) (model.Candidate, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, query string) (model.Candidate, error)

// Resolve calls f.
func (f StrategyFunc) Resolve(ctx context.Context, query string) (model.Candidate, error) {
	return f(ctx, query)
}

// FastPath chains the understanding agent and the endpoint mapper.
type FastPath struct {
	agent  *understanding.Agent
	mapper *endpoint.Mapper
}

// NewFastPath creates the fast-path strategy.
func NewFastPath(agent *understanding.Agent, mapper *endpoint.Mapper) *FastPath {
	return &FastPath{agent: agent, mapper: mapper}
}

// Resolve parses then maps the query.
func (f *FastPath) Resolve(ctx context.Context, query string) (model.Candidate, error) {
	parsed, err := f.agent.Parse(ctx, query)
	if err != nil {
		return model.Candidate{}, err
	}
	req, mapTrace, err := f.mapper.Map(ctx, parsed.Parsed)
	if err != nil {
		return model.Candidate{}, err
	}
	return model.Candidate{
		Requirements: req,
		Confidence:   parsed.Confidence,
		Trace:        append(parsed.Trace, mapTrace...),
	}, nil
}

// ResolveOption configures one Resolve call.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	includeFastPath bool
}

// IncludeFastPath controls whether the fast path runs and takes part in
// arbitration. It defaults to true.
func IncludeFastPath(include bool) ResolveOption {
	return func(o *resolveOptions) { o.includeFastPath = include }
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(r *Resolver) { r.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Manager) Option { return func(r *Resolver) { r.metrics = m } }

// WithClock injects the clock used to measure strategy latency.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// Resolver arbitrates between a fast path and a fallback strategy.
type Resolver struct {
	fast     Strategy
	fallback Strategy
	now      func() time.Time
	logger   logger.Logger
	metrics  *metrics.Manager
}

// New creates a Resolver. Either strategy may be nil.
func New(fast, fallback Strategy, opts ...Option) *Resolver {
	r := &Resolver{fast: fast, fallback: fallback, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.NewNop()
	}
	return r
}

// Resolve runs both strategies concurrently and arbitrates the outcomes.
func (r *Resolver) Resolve(ctx context.Context, query string, opts ...ResolveOption) (model.ResolutionOutcome, error) {
	o := resolveOptions{includeFastPath: true}
	for _, opt := range opts {
		opt(&o)
	}

	st := newState()
	var fastOut, fallbackOut *model.ResolutionOutcome

	var g errgroup.Group
	if o.includeFastPath && r.fast != nil {
		st.start(strategyFast)
		g.Go(func() error {
			fastOut = r.run(ctx, query, r.fast, model.SourceFastPath, metrics.StrategyFastPath)
			return nil
		})
	} else {
		st.skip(strategyFast)
	}
	if r.fallback != nil {
		st.start(strategyFallback)
		g.Go(func() error {
			fallbackOut = r.run(ctx, query, r.fallback, model.SourceFallback, metrics.StrategyFallback)
			return nil
		})
	} else {
		st.skip(strategyFallback)
	}
	_ = g.Wait()

	st.finish(strategyFast, fastOut != nil)
	st.finish(strategyFallback, fallbackOut != nil)

	winner, reason, err := Arbitrate(fastOut, fallbackOut)
	st.arbitrate()
	if err != nil {
		r.metrics.RecordResolutionFailure()
		r.logger.Warn(ctx, "query could not be resolved", logger.String("query", query), logger.Strings("phases", st.log))
		return model.ResolutionOutcome{}, err
	}

	r.metrics.RecordResolution(string(winner.Source()))
	trace := append(winner.Trace(), st.log...)
	trace = append(trace, "arbitration: "+reason)
	r.logger.Debug(ctx, "query resolved",
		logger.String("source", string(winner.Source())),
		logger.String("endpoint", string(winner.Requirements().Endpoint)),
		logger.Float64("confidence", winner.Confidence()),
	)
	return model.NewOutcome(winner.Requirements(), winner.Confidence(), winner.Source(), winner.Latency(), trace), nil
}

func (r *Resolver) run(ctx context.Context, query string, s Strategy, source model.Source, label string) *model.ResolutionOutcome {
	start := r.now()
	cand, err := s.Resolve(ctx, query)
	latency := r.now().Sub(start)
	r.metrics.ObserveStrategyLatency(label, latency.Seconds())
	if err != nil {
		r.metrics.RecordStrategyFailure(label)
		r.logger.Warn(ctx, "resolution strategy failed", logger.String("strategy", label), logger.Error(err))
		return nil
	}
	out := model.NewOutcome(cand.Requirements, cand.Confidence, source, latency, cand.Trace)
	return &out
}

type strategyID int

const (
	strategyFast strategyID = iota
	strategyFallback
)

func (s strategyID) String() string {
	if s == strategyFast {
		return "fast path"
	}
	return "fallback"
}

type phase int

const (
	phaseSkipped phase = iota
	phasePending
	phaseDone
	phaseFailed
)

// state tracks strategy phases until arbitration. Only the calling
// goroutine touches it.
type state struct {
	phases [2]phase
	log    []string
}

func newState() *state { return &state{} }

func (s *state) start(id strategyID) {
	s.phases[id] = phasePending
	s.log = append(s.log, fmt.Sprintf("%s pending", id))
}

func (s *state) skip(id strategyID) {
	s.phases[id] = phaseSkipped
	s.log = append(s.log, fmt.Sprintf("%s skipped", id))
}

func (s *state) finish(id strategyID, ok bool) {
	if s.phases[id] != phasePending {
		return
	}
	if ok {
		s.phases[id] = phaseDone
		s.log = append(s.log, fmt.Sprintf("%s done", id))
		return
	}
	s.phases[id] = phaseFailed
	s.log = append(s.log, fmt.Sprintf("%s failed", id))
}

func (s *state) arbitrate() {
	s.log = append(s.log, "arbitrated")
}
