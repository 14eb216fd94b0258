// Package service wires the query pipeline: resolution, planning, fetching,
// normalization and validation.
package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/adapters/llm"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/adapters/upstream"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/config"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/cache"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/endpoint"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/entity"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/legacy"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/normalize"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/planner"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/resolver"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/types"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/understanding"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/validate"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// ErrNotStarted is returned by Query before Start.
var ErrNotStarted = errors.New("service not started")

// Result is the outcome of one query.
type Result = types.Result

// Plan outcome labels.
const (
	planFetched = "fetched"
	planCached  = "cached"
	planEmpty   = "empty"
	planFailed  = "failed"
)

// Service answers natural-language queries with canonical tables.
type Service struct {
	mu sync.RWMutex

	cfg config.Config

	// Injected collaborators
	completer  model.Completer
	httpClient *http.Client
	sleeper    upstream.Sleeper
	now        func() time.Time

	// Pipeline components, built by Start
	resolver   *resolver.Resolver
	planner    *planner.Planner
	fetcher    *upstream.Fetcher
	payloads   *cache.Manager[model.Payload]
	normalizer *normalize.Normalizer
	limiter    *rate.Limiter

	started bool

	logger  logger.Logger
	metrics *metrics.Manager
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration; defaults come from config.New.
func WithConfig(cfg config.Config) Option { return func(s *Service) { s.cfg = cfg } }

// WithCompleter sets the remote semantic parser. Without one, a langchaingo
// completer is built when an API key is configured.
func WithCompleter(c model.Completer) Option { return func(s *Service) { s.completer = c } }

// WithHTTPClient sets the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.httpClient = c } }

// WithSleeper replaces the fetch backoff sleeper.
func WithSleeper(fn upstream.Sleeper) Option { return func(s *Service) { s.sleeper = fn } }

// WithClock sets the clock used for latencies and template years.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink shared by every component.
func WithMetrics(m *metrics.Manager) Option { return func(s *Service) { s.metrics = m } }

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: *config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	return s
}

// Start builds the pipeline components. It is idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return errors.Mark(err, model.ErrConfiguration)
	}

	completer := s.completer
	if completer == nil && cfg.RemoteParsingEnabled() {
		c, err := llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey,
			llm.WithTimeout(cfg.LLMTimeout()),
			llm.WithLogger(s.logger.Named("llm")),
		)
		if err != nil {
			return errors.Wrap(err, "build remote parser")
		}
		completer = c
	}

	entities := entity.New(nil)
	catalog := endpoint.Default()
	mapper := endpoint.NewMapper(
		endpoint.WithCatalog(catalog),
		endpoint.WithNormalizer(entities),
		endpoint.WithCompleter(completer),
		endpoint.WithLogger(s.logger.Named("mapper")),
		endpoint.WithMetrics(s.metrics),
	)
	agent := understanding.New(
		understanding.WithCompleter(completer),
		understanding.WithNormalizer(entities),
		understanding.WithMemoCapacity(cfg.MemoCapacity),
		understanding.WithClock(s.now),
		understanding.WithLogger(s.logger.Named("understanding")),
		understanding.WithMetrics(s.metrics),
	)

	var fallback resolver.Strategy
	if completer != nil {
		fallback = legacy.New(completer,
			legacy.WithMapper(mapper),
			legacy.WithLogger(s.logger.Named("legacy")),
			legacy.WithMetrics(s.metrics),
		)
	} else {
		s.logger.Warn(ctx, "remote parsing disabled, fallback strategy unavailable")
	}
	s.resolver = resolver.New(resolver.NewFastPath(agent, mapper), fallback,
		resolver.WithLogger(s.logger.Named("resolver")),
		resolver.WithMetrics(s.metrics),
		resolver.WithClock(s.now),
	)

	s.planner = planner.New(cfg.APIBaseURL,
		planner.WithCatalog(catalog),
		planner.WithPageLimit(cfg.PageLimit),
	)

	fetchOpts := []upstream.Option{
		upstream.WithTimeout(cfg.RequestTimeout()),
		upstream.WithMaxAttempts(cfg.MaxAttempts),
		upstream.WithBackoffBase(cfg.BackoffBase()),
		upstream.WithEmptyRetries(cfg.EmptyRetries, cfg.EmptyBackoff()),
		upstream.WithLogger(s.logger.Named("upstream")),
		upstream.WithMetrics(s.metrics),
	}
	if s.httpClient != nil {
		fetchOpts = append(fetchOpts, upstream.WithHTTPClient(s.httpClient))
	}
	if s.sleeper != nil {
		fetchOpts = append(fetchOpts, upstream.WithSleeper(s.sleeper))
	}
	s.fetcher = upstream.New(fetchOpts...)

	s.payloads = cache.New[model.Payload](
		cache.WithName("payloads"),
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithCapacity(cfg.CacheCapacity),
		cache.WithClock(s.now),
		cache.WithMetrics(s.metrics),
	)
	s.normalizer = normalize.New(
		normalize.WithEntities(entities),
		normalize.WithLogger(s.logger.Named("normalize")),
		normalize.WithMetrics(s.metrics),
	)
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst)

	s.started = true
	s.logger.Info(ctx, "query service started",
		logger.String("api_base_url", cfg.APIBaseURL),
		logger.Bool("remote_parsing", completer != nil),
		logger.Int("plan_concurrency", cfg.PlanConcurrency),
		logger.Int("cache_capacity", cfg.CacheCapacity),
	)
	return nil
}

// Stop releases the pipeline components.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "query service stopped")
}

// QueryOption adjusts a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	includeFastPath bool
}

// IncludeFastPath toggles the template fast path for one query.
func IncludeFastPath(include bool) QueryOption {
	return func(o *queryOptions) { o.includeFastPath = include }
}

// Query resolves q, fetches every plan and returns the canonical table.
// The query fails only when resolution fails, no plan can be built, or
// every plan fails.
func (s *Service) Query(ctx context.Context, q string, opts ...QueryOption) (Result, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return Result{}, ErrNotStarted
	}

	o := queryOptions{includeFastPath: true}
	for _, opt := range opts {
		opt(&o)
	}

	start := s.now()
	requestID := uuid.NewString()
	log := s.logger.With(logger.String("request_id", requestID))
	defer func() { s.metrics.ObserveQueryDuration(s.now().Sub(start).Seconds()) }()

	outcome, err := s.resolver.Resolve(ctx, q, resolver.IncludeFastPath(o.includeFastPath))
	if err != nil {
		log.Warn(ctx, "resolution failed", logger.String("query", q), logger.Error(err))
		return Result{}, err
	}
	req := outcome.Requirements()

	plans, err := s.planner.Plan(req)
	if err != nil {
		log.Error(ctx, "planning failed", logger.String("endpoint", string(req.Endpoint)), logger.Error(err))
		return Result{}, err
	}
	family := plans[0].Family

	slots, reports, firstErr := s.execute(ctx, log, plans)
	failed := 0
	allCached := true
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
		allCached = allCached && r.CacheHit
	}
	if failed == len(plans) {
		log.Error(ctx, "every plan failed", logger.Int("plans", len(plans)), logger.Error(firstErr))
		return Result{}, errors.Wrapf(firstErr, "all %d request plans failed", len(plans))
	}

	var table model.Table
	cols := normalize.Columns(family)
	for _, rows := range slots {
		table.Append(cols, rows...)
	}
	table = filterRequested(table, req.Params)

	ok, missing := validate.Validate(table, family)
	if !ok {
		s.metrics.RecordValidationFailure(family.String())
		log.Warn(ctx, "table missing required columns",
			logger.String("family", family.String()),
			logger.Strings("missing", missing),
		)
		if s.cfg.StrictValidation {
			return Result{}, model.ValidationError(family, missing)
		}
	}

	trace := outcome.Trace()
	if failed > 0 {
		trace = append(trace, "plans partially failed")
	}
	log.Info(ctx, "query answered",
		logger.String("endpoint", string(req.Endpoint)),
		logger.String("source", string(outcome.Source())),
		logger.Int("plans", len(plans)),
		logger.Int("failed_plans", failed),
		logger.Int("rows", table.Len()),
	)

	return Result{
		RequestID: requestID,
		Table:     table,
		Provenance: types.Provenance{
			Endpoint:   req.Endpoint,
			Params:     req.Params,
			Confidence: outcome.Confidence(),
			Source:     outcome.Source(),
			CacheHit:   allCached,
			Plans:      reports,
		},
		Validation: types.Validation{OK: ok, Missing: missing},
		Trace:      trace,
	}, nil
}

// execute runs plans concurrently into index-addressed slots.
func (s *Service) execute(ctx context.Context, log logger.Logger, plans []model.RequestPlan) ([][]model.Row, []types.PlanReport, error) {
	slots := make([][]model.Row, len(plans))
	reports := make([]types.PlanReport, len(plans))
	errs := make([]error, len(plans))

	var g errgroup.Group
	g.SetLimit(s.cfg.PlanConcurrency)
	for i, plan := range plans {
		g.Go(func() error {
			rows, report, err := s.runPlan(ctx, plan)
			slots[i], reports[i], errs[i] = rows, report, err
			if err != nil {
				log.Warn(ctx, "plan failed", logger.Int("plan", plan.Index), logger.String("url", plan.URL), logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	var first error
	for _, err := range errs {
		if err != nil {
			first = err
			break
		}
	}
	return slots, reports, first
}

func (s *Service) runPlan(ctx context.Context, plan model.RequestPlan) ([]model.Row, types.PlanReport, error) {
	report := types.PlanReport{Index: plan.Index, URL: plan.URL}
	fail := func(err error) ([]model.Row, types.PlanReport, error) {
		s.metrics.RecordPlan(planFailed)
		report.Error = err.Error()
		return nil, report, err
	}

	key := cache.Key(string(plan.Endpoint), plan.Params)
	payload, hit := s.payloads.Get(key)
	if hit {
		report.CacheHit = true
	} else {
		if err := s.limiter.Wait(ctx); err != nil {
			return fail(model.FetchError(err, plan.URL, 0, 0))
		}
		var err error
		payload, err = s.fetcher.Fetch(ctx, plan.URL)
		if err != nil {
			return fail(err)
		}
	}

	rows, err := s.normalizer.Rows(ctx, payload, plan.Family)
	if err != nil {
		// Undecodable bodies count as upstream failures.
		return fail(errors.Mark(errors.Wrapf(err, "normalize %s", plan.URL), model.ErrFetch))
	}
	if !hit && !payload.Empty {
		s.payloads.Set(key, payload)
	}
	report.Empty = payload.Empty
	report.Rows = len(rows)
	switch {
	case hit:
		s.metrics.RecordPlan(planCached)
	case payload.Empty:
		s.metrics.RecordPlan(planEmpty)
	default:
		s.metrics.RecordPlan(planFetched)
	}
	return rows, report, nil
}

// filterRequested keeps rows whose driver and constructor are among the
// requested ids, when those were requested and the table carries them.
func filterRequested(t model.Table, params model.Params) model.Table {
	for _, key := range []string{model.ParamDriver, model.ParamConstructor} {
		wanted := params[key].Values()
		if len(wanted) == 0 || !t.HasColumn(key) {
			continue
		}
		set := make(map[string]struct{}, len(wanted))
		for _, w := range wanted {
			set[w] = struct{}{}
		}
		t = t.Filter(func(r model.Row) bool {
			id, _ := r[key].(string)
			_, ok := set[id]
			return ok
		})
	}
	return t
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"api_base_url":     s.cfg.APIBaseURL,
		"plan_concurrency": s.cfg.PlanConcurrency,
		"cache_capacity":   s.cfg.CacheCapacity,
		"strict":           s.cfg.StrictValidation,
	}
	if s.started {
		stats["cache_entries"] = s.payloads.Len()
		stats["rate_limit_rps"] = float64(s.limiter.Limit())
	}
	return stats
}

// Answer runs a QueryRequest from a transport.
func (s *Service) Answer(ctx context.Context, req types.QueryRequest) (Result, error) {
	return s.Query(ctx, req.Query, IncludeFastPath(req.FastPath()))
}
