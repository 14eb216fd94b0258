package model

import (
	"time"
)

// Endpoint identifies an entry of the endpoint catalog, e.g. "/api/f1/drivers".
type Endpoint string

// Family is the closed set of upstream response shapes.
type Family int

// Endpoint families.
const (
	FamilyUnknown Family = iota
	FamilyResults
	FamilyQualifying
	FamilySprint
	FamilyLaps
	FamilyPitStops
	FamilyDriverStandings
	FamilyConstructorStandings
	FamilySchedule
)

var familyNames = map[Family]string{
	FamilyUnknown:              "unknown",
	FamilyResults:              "results",
	FamilyQualifying:           "qualifying",
	FamilySprint:               "sprint",
	FamilyLaps:                 "laps",
	FamilyPitStops:             "pitstops",
	FamilyDriverStandings:      "driver_standings",
	FamilyConstructorStandings: "constructor_standings",
	FamilySchedule:             "schedule",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return "unknown"
}

// Parameter keys understood somewhere in the catalog.
const (
	ParamSeason      = "season"
	ParamRound       = "round"
	ParamDriver      = "driver"
	ParamConstructor = "constructor"
	ParamCircuit     = "circuit"
	ParamLimit       = "limit"
	ParamOffset      = "offset"
)

// RequirementsSpec describes the data to fetch: an endpoint and its params.
type RequirementsSpec struct {
	Endpoint Endpoint `json:"endpoint"`
	Params   Params   `json:"params"`
}

// Source tags which strategy produced an outcome.
type Source string

// Strategy sources.
const (
	SourceFastPath Source = "fast-path"
	SourceFallback Source = "fallback"
)

// ResolutionOutcome is the immutable result of one resolution strategy.
type ResolutionOutcome struct {
	requirements RequirementsSpec
	confidence   float64
	source       Source
	latency      time.Duration
	trace        []string
}

// NewOutcome builds an outcome. Confidence is clamped to [0,1]; params and
// trace are copied so later mutation by the caller cannot leak in.
func NewOutcome(req RequirementsSpec, confidence float64, source Source, latency time.Duration, trace []string) ResolutionOutcome {
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	tr := make([]string, len(trace))
	copy(tr, trace)
	return ResolutionOutcome{
		requirements: RequirementsSpec{Endpoint: req.Endpoint, Params: req.Params.Clone()},
		confidence:   confidence,
		source:       source,
		latency:      latency,
		trace:        tr,
	}
}

// Requirements returns a copy of the resolved requirements.
func (o ResolutionOutcome) Requirements() RequirementsSpec {
	return RequirementsSpec{Endpoint: o.requirements.Endpoint, Params: o.requirements.Params.Clone()}
}

func (o ResolutionOutcome) Confidence() float64    { return o.confidence }
func (o ResolutionOutcome) Source() Source         { return o.source }
func (o ResolutionOutcome) Latency() time.Duration { return o.latency }

// Trace returns a copy of the ordered reasoning trace.
func (o ResolutionOutcome) Trace() []string {
	tr := make([]string, len(o.trace))
	copy(tr, o.trace)
	return tr
}

// RequestPlan is one concrete fetch derived from a RequirementsSpec.
type RequestPlan struct {
	Index    int               `json:"index"`
	Endpoint Endpoint          `json:"endpoint"`
	Family   Family            `json:"-"`
	URL      string            `json:"url"`
	Params   map[string]string `json:"params"`
}

// Payload is the addressed sub-table of one upstream response.
type Payload struct {
	// Table is the sub-table key, e.g. "RaceTable".
	Table string
	// Raw holds the sub-table JSON.
	Raw []byte
	// Total is the upstream "total" count when reported.
	Total int
	// Empty is set when the response lacked the wrapper or sub-table.
	Empty bool
}

// Candidate is what a resolution strategy returns before the resolver stamps
// it with source and latency.
type Candidate struct {
	Requirements RequirementsSpec
	Confidence   float64
	Trace        []string
}
