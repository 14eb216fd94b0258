// Package planner expands a RequirementsSpec into concrete request plans and
// builds upstream URLs.
package planner

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/endpoint"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

// DefaultSeason is used when no season is requested.
const DefaultSeason = "current"

// Planner builds request plans against one upstream base URL.
type Planner struct {
	baseURL   string
	catalog   *endpoint.Catalog
	pageLimit int
}

// Option configures a Planner.
type Option func(*Planner)

// WithCatalog sets the endpoint catalog.
func WithCatalog(c *endpoint.Catalog) Option { return func(p *Planner) { p.catalog = c } }

// WithPageLimit sets the default limit query parameter.
func WithPageLimit(n int) Option { return func(p *Planner) { p.pageLimit = n } }

// New creates a Planner for baseURL, e.g. "https://api.jolpi.ca/ergast".
func New(baseURL string, opts ...Option) *Planner {
	p := &Planner{baseURL: strings.TrimRight(baseURL, "/"), pageLimit: 100}
	for _, opt := range opts {
		opt(p)
	}
	if p.catalog == nil {
		p.catalog = endpoint.Default()
	}
	return p
}

// Plan expands list-valued season, driver and constructor params into their
// cartesian product, season-major then driver then constructor. Other
// list-valued params are held at their first value.
func (p *Planner) Plan(req model.RequirementsSpec) ([]model.RequestPlan, error) {
	def, err := p.definition(req.Endpoint)
	if err != nil {
		return nil, err
	}

	seasons := valuesOr(req.Params, model.ParamSeason, DefaultSeason)
	drivers := valuesOr(req.Params, model.ParamDriver, "")
	constructors := valuesOr(req.Params, model.ParamConstructor, "")

	base := make(map[string]string, len(req.Params)+2)
	for _, k := range req.Params.Keys() {
		switch k {
		case model.ParamSeason, model.ParamDriver, model.ParamConstructor:
			continue
		}
		if v := req.Params[k].First(); v != "" {
			base[k] = v
		}
	}
	if _, ok := base[model.ParamLimit]; !ok {
		base[model.ParamLimit] = strconv.Itoa(p.pageLimit)
	}

	plans := make([]model.RequestPlan, 0, len(seasons)*len(drivers)*len(constructors))
	for _, s := range seasons {
		for _, d := range drivers {
			for _, k := range constructors {
				scalars := make(map[string]string, len(base)+3)
				for bk, bv := range base {
					scalars[bk] = bv
				}
				scalars[model.ParamSeason] = s
				if d != "" {
					scalars[model.ParamDriver] = d
				}
				if k != "" {
					scalars[model.ParamConstructor] = k
				}
				u, err := p.buildURL(def, scalars)
				if err != nil {
					return nil, err
				}
				plans = append(plans, model.RequestPlan{
					Index:    len(plans),
					Endpoint: def.Endpoint,
					Family:   def.Family,
					URL:      u,
					Params:   scalars,
				})
			}
		}
	}
	return plans, nil
}

// BuildURL renders the upstream URL for req's endpoint with scalar params.
func (p *Planner) BuildURL(req model.RequirementsSpec, scalars map[string]string) (string, error) {
	def, err := p.definition(req.Endpoint)
	if err != nil {
		return "", err
	}
	return p.buildURL(def, scalars)
}

func (p *Planner) definition(ep model.Endpoint) (endpoint.Definition, error) {
	def, ok := p.catalog.Lookup(ep)
	if !ok || def.Resource == "" {
		return endpoint.Definition{}, model.ConfigurationErrorf("no URL template registered for endpoint %q", ep)
	}
	return def, nil
}

func (p *Planner) buildURL(def endpoint.Definition, scalars map[string]string) (string, error) {
	season := scalars[model.ParamSeason]
	if season == "" {
		season = DefaultSeason
	}

	var b strings.Builder
	b.WriteString(p.baseURL)
	b.WriteString("/f1/")
	b.WriteString(url.PathEscape(season))
	segment := func(prefix, key string) {
		if v := scalars[key]; v != "" {
			b.WriteString(prefix)
			b.WriteString(url.PathEscape(v))
		}
	}
	segment("/", model.ParamRound)
	segment("/circuits/", model.ParamCircuit)
	segment("/drivers/", model.ParamDriver)
	segment("/constructors/", model.ParamConstructor)
	b.WriteString("/")
	b.WriteString(def.Resource)
	b.WriteString(".json")

	q := url.Values{}
	limit := scalars[model.ParamLimit]
	if limit == "" {
		limit = strconv.Itoa(p.pageLimit)
	}
	q.Set(model.ParamLimit, limit)
	offset := scalars[model.ParamOffset]
	if offset == "" {
		offset = "0"
	}
	q.Set(model.ParamOffset, offset)
	b.WriteString("?")
	b.WriteString(q.Encode())

	u := b.String()
	if _, err := url.Parse(u); err != nil {
		return "", model.ConfigurationErrorf("invalid URL %q: %v", u, err)
	}
	return u, nil
}

func valuesOr(params model.Params, key, def string) []string {
	if vals := params[key].Values(); len(vals) > 0 {
		return vals
	}
	return []string{def}
}
