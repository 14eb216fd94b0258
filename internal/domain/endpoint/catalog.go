// Package endpoint owns the catalog of supported endpoints and the mapping
// from parsed query parameters to a RequirementsSpec.
package endpoint

import (
	"sort"
	"strings"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

// Definition describes one catalog endpoint.
type Definition struct {
	Endpoint model.Endpoint
	Family   model.Family
	// Resource is the last path segment of the upstream URL, without ".json".
	// An empty resource means no URL template is registered.
	Resource    string
	Description string
}

// Well-known endpoints.
const (
	Results              model.Endpoint = "/api/f1/results"
	Drivers              model.Endpoint = "/api/f1/drivers"
	Constructors         model.Endpoint = "/api/f1/constructors"
	Qualifying           model.Endpoint = "/api/f1/qualifying"
	Sprint               model.Endpoint = "/api/f1/sprint"
	Laps                 model.Endpoint = "/api/f1/laps"
	PitStops             model.Endpoint = "/api/f1/pitstops"
	DriverStandings      model.Endpoint = "/api/f1/driverStandings"
	ConstructorStandings model.Endpoint = "/api/f1/constructorStandings"
	Races                model.Endpoint = "/api/f1/races"
)

var allKeys = []string{
	model.ParamSeason, model.ParamRound, model.ParamDriver, model.ParamConstructor,
	model.ParamCircuit, model.ParamLimit, model.ParamOffset,
}

var recognized = map[model.Family][]string{
	model.FamilyResults:              allKeys,
	model.FamilyQualifying:           allKeys,
	model.FamilySprint:               allKeys,
	model.FamilyLaps:                 {model.ParamSeason, model.ParamRound, model.ParamDriver, model.ParamLimit, model.ParamOffset},
	model.FamilyPitStops:             {model.ParamSeason, model.ParamRound, model.ParamDriver, model.ParamLimit, model.ParamOffset},
	model.FamilyDriverStandings:      {model.ParamSeason, model.ParamRound, model.ParamDriver, model.ParamLimit, model.ParamOffset},
	model.FamilyConstructorStandings: {model.ParamSeason, model.ParamRound, model.ParamConstructor, model.ParamLimit, model.ParamOffset},
	model.FamilySchedule:             {model.ParamSeason, model.ParamRound, model.ParamCircuit, model.ParamLimit, model.ParamOffset},
}

// Catalog is an immutable set of endpoint definitions.
type Catalog struct {
	defs  map[model.Endpoint]Definition
	order []model.Endpoint
}

// NewCatalog builds a catalog; later definitions replace earlier ones.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{defs: make(map[model.Endpoint]Definition, len(defs))}
	for _, d := range defs {
		if _, ok := c.defs[d.Endpoint]; !ok {
			c.order = append(c.order, d.Endpoint)
		}
		c.defs[d.Endpoint] = d
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return NewCatalog(
		Definition{Drivers, model.FamilyResults, "results", "race results for one or more drivers"},
		Definition{Constructors, model.FamilyResults, "results", "race results for one or more constructors"},
		Definition{Results, model.FamilyResults, "results", "race results by season, round or circuit"},
		Definition{Qualifying, model.FamilyQualifying, "qualifying", "qualifying sessions, Q1 to Q3 times and grid order"},
		Definition{Sprint, model.FamilySprint, "sprint", "sprint race results"},
		Definition{Laps, model.FamilyLaps, "laps", "lap-by-lap timings for a race"},
		Definition{PitStops, model.FamilyPitStops, "pitstops", "pit stops for a race"},
		Definition{DriverStandings, model.FamilyDriverStandings, "driverStandings", "driver championship standings"},
		Definition{ConstructorStandings, model.FamilyConstructorStandings, "constructorStandings", "constructor championship standings"},
		Definition{Races, model.FamilySchedule, "races", "race calendar with circuits and dates"},
	)
}

// Lookup returns the definition of ep.
func (c *Catalog) Lookup(ep model.Endpoint) (Definition, bool) {
	d, ok := c.defs[ep]
	return d, ok
}

// All returns the definitions in registration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, ep := range c.order {
		out = append(out, c.defs[ep])
	}
	return out
}

// Describe renders the catalog for a remote parser instruction.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for _, d := range c.All() {
		b.WriteString("- ")
		b.WriteString(string(d.Endpoint))
		b.WriteString(": ")
		b.WriteString(d.Description)
		b.WriteString(" (params: ")
		b.WriteString(strings.Join(Recognized(d.Family), ", "))
		b.WriteString(")\n")
	}
	return b.String()
}

// Recognized returns a copy of the parameter keys a family accepts.
func Recognized(f model.Family) []string {
	return append([]string(nil), recognized[f]...)
}

// Sanitize keeps only keys recognized by the family and drops empty values.
// The dropped keys are returned sorted.
func Sanitize(f model.Family, params model.Params) (model.Params, []string) {
	allowed := make(map[string]struct{}, len(recognized[f]))
	for _, k := range recognized[f] {
		allowed[k] = struct{}{}
	}
	out := make(model.Params, len(params))
	var dropped []string
	for k, v := range params {
		if _, ok := allowed[k]; !ok {
			dropped = append(dropped, k)
			continue
		}
		if v.Empty() {
			continue
		}
		out[k] = v
	}
	sort.Strings(dropped)
	return out, dropped
}
