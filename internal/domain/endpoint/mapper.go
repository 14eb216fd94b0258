package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/entity"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

const mappingInstruction = `You map a structured Formula 1 question to one data endpoint.
Choose exactly one endpoint from this catalog:
%s
Respond with ONLY a JSON object of the form
{"endpoint": "<endpoint>", "modified_params": {"season": ..., "driver": ..., "constructor": ..., "circuit": ..., "round": ...}, "reasoning": ["..."]}.
Use canonical upstream ids for drivers, constructors and circuits.`

// route is one row of the static (action, entity) table.
type route struct {
	endpoint model.Endpoint
}

var routes = map[string]route{
	key("performance", "driver"):      {Drivers},
	key("compare", "drivers"):          {Drivers},
	key("compare", "constructors"):     {Constructors},
	key("performance", "constructor"): {Constructors},
	key("qualifying", "driver"):        {Qualifying},
	key("qualifying", "race"):          {Qualifying},
	key("results", "race"):             {Results},
	key("results", "season"):           {Results},
	key("standings", "driver"):         {DriverStandings},
	key("standings", "constructor"):    {ConstructorStandings},
	key("schedule", "season"):          {Races},
	key("laps", "driver"):              {Laps},
	key("pitstops", "race"):            {PitStops},
	key("sprint", "driver"):            {Sprint},
}

var synonyms = map[string]string{
	"year":         model.ParamSeason,
	"years":        model.ParamSeason,
	"seasons":      model.ParamSeason,
	"drivers":      model.ParamDriver,
	"team":         model.ParamConstructor,
	"teams":        model.ParamConstructor,
	"constructors": model.ParamConstructor,
	"track":        model.ParamCircuit,
	"race":         model.ParamCircuit,
	"circuits":     model.ParamCircuit,
}

func key(action, ent string) string {
	return strings.ToLower(strings.TrimSpace(action)) + "/" + strings.ToLower(strings.TrimSpace(ent))
}

// Mapper turns ParsedParameters into a RequirementsSpec.
type Mapper struct {
	catalog    *Catalog
	normalizer *entity.Normalizer
	completer  model.Completer
	logger     logger.Logger
	metrics    *metrics.Manager
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithCatalog sets the endpoint catalog.
func WithCatalog(c *Catalog) Option { return func(m *Mapper) { m.catalog = c } }

// WithNormalizer sets the entity normalizer.
func WithNormalizer(n *entity.Normalizer) Option { return func(m *Mapper) { m.normalizer = n } }

// WithCompleter enables the remote mapping fallback.
func WithCompleter(c model.Completer) Option { return func(m *Mapper) { m.completer = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(m *Mapper) { m.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(mm *metrics.Manager) Option { return func(m *Mapper) { m.metrics = mm } }

// NewMapper creates a Mapper.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{}
	for _, opt := range opts {
		opt(m)
	}
	if m.catalog == nil {
		m.catalog = Default()
	}
	if m.normalizer == nil {
		m.normalizer = entity.New(nil)
	}
	if m.logger == nil {
		m.logger = logger.NewNop()
	}
	return m
}

// Catalog returns the mapper's catalog.
func (m *Mapper) Catalog() *Catalog { return m.catalog }

// Map resolves parsed parameters to an endpoint and sanitized params.
func (m *Mapper) Map(ctx context.Context, parsed model.ParsedParameters) (model.RequirementsSpec, []string, error) {
	var trace []string

	ep, ok := m.staticRoute(parsed.Action, parsed.Entity)
	params := parsed.Params
	if ok {
		trace = append(trace, fmt.Sprintf("static route %s/%s -> %s", parsed.Action, parsed.Entity, ep))
	} else {
		reply, err := m.remoteRoute(ctx, parsed)
		if err != nil {
			return model.RequirementsSpec{}, trace, err
		}
		ep = reply.Endpoint
		if reply.ModifiedParams != nil {
			params = reply.ModifiedParams
		}
		trace = append(trace, fmt.Sprintf("remote route %s/%s -> %s", parsed.Action, parsed.Entity, ep))
		trace = append(trace, reply.Reasoning...)
	}

	def, ok := m.catalog.Lookup(ep)
	if !ok {
		return model.RequirementsSpec{}, trace, model.ResolutionErrorf("endpoint %q is not in the catalog", ep)
	}

	req, dropped := m.Build(def, params)
	if len(dropped) > 0 {
		trace = append(trace, fmt.Sprintf("dropped unrecognized params %v", dropped))
	}
	return req, trace, nil
}

// Build applies the parameter transform to params and sanitizes them for
// the definition's family.
func (m *Mapper) Build(def Definition, params model.Params) (model.RequirementsSpec, []string) {
	clean, dropped := Sanitize(def.Family, m.Transform(params))
	return model.RequirementsSpec{Endpoint: def.Endpoint, Params: clean}, dropped
}

// Transform renames synonym keys and canonicalizes entity values.
func (m *Mapper) Transform(params model.Params) model.Params {
	out := make(model.Params, len(params))
	// canonical keys first so they win over synonyms
	for _, k := range params.Keys() {
		if _, syn := synonyms[strings.ToLower(k)]; !syn {
			out[strings.ToLower(k)] = params[k]
		}
	}
	for _, k := range params.Keys() {
		canon, syn := synonyms[strings.ToLower(k)]
		if !syn {
			continue
		}
		if existing, ok := out[canon]; ok && !existing.Empty() {
			continue
		}
		out[canon] = params[k]
	}

	if v, ok := out[model.ParamDriver]; ok {
		out[model.ParamDriver] = v.Map(m.normalizer.Driver)
	}
	if v, ok := out[model.ParamConstructor]; ok {
		out[model.ParamConstructor] = v.Map(m.normalizer.Constructor)
	}
	if v, ok := out[model.ParamCircuit]; ok {
		out[model.ParamCircuit] = v.Map(m.normalizer.Circuit)
	}
	if v, ok := out[model.ParamSeason]; ok {
		out[model.ParamSeason] = v.Map(func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
	}
	return out
}

func (m *Mapper) staticRoute(action, ent string) (model.Endpoint, bool) {
	r, ok := routes[key(action, ent)]
	if !ok {
		return "", false
	}
	if _, registered := m.catalog.Lookup(r.endpoint); !registered {
		return "", false
	}
	return r.endpoint, true
}

func (m *Mapper) remoteRoute(ctx context.Context, parsed model.ParsedParameters) (model.MappingReply, error) {
	if m.completer == nil {
		return model.MappingReply{}, model.ResolutionErrorf("no route for %s/%s and remote mapping is disabled", parsed.Action, parsed.Entity)
	}
	input, err := json.Marshal(parsed)
	if err != nil {
		return model.MappingReply{}, model.WrapResolution(err, "encode parsed parameters")
	}

	m.metrics.RecordRemoteParse("mapper")
	raw, err := m.completer.Complete(ctx, fmt.Sprintf(mappingInstruction, m.catalog.Describe()), string(input))
	if err != nil {
		m.logger.Warn(ctx, "remote endpoint mapping failed", logger.Error(err))
		return model.MappingReply{}, model.WrapResolution(err, "remote endpoint mapping")
	}

	var reply model.MappingReply
	if err := model.DecodeReply(raw, &reply); err != nil {
		return model.MappingReply{}, err
	}
	return reply, nil
}
