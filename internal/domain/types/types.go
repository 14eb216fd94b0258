// Package types contains the result shapes shared by the service and its
// transports.
package types

import (
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

// Result is the outcome of one query.
type Result struct {
	RequestID  string      `json:"request_id"`
	Table      model.Table `json:"table"`
	Provenance Provenance  `json:"provenance"`
	Validation Validation  `json:"validation"`
	Trace      []string    `json:"trace,omitempty"`
}

// Provenance records how the table was produced.
type Provenance struct {
	Endpoint   model.Endpoint `json:"endpoint"`
	Params     model.Params   `json:"params"`
	Confidence float64        `json:"confidence"`
	Source     model.Source   `json:"source"`
	CacheHit   bool           `json:"cache_hit"`
	Plans      []PlanReport   `json:"plans"`
}

// PlanReport describes the execution of one request plan.
type PlanReport struct {
	Index    int    `json:"index"`
	URL      string `json:"url"`
	CacheHit bool   `json:"cache_hit"`
	Empty    bool   `json:"empty"`
	Rows     int    `json:"rows"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the plan produced an error.
func (p PlanReport) Failed() bool { return p.Error != "" }

// Validation carries the result of column validation.
type Validation struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
}

// QueryRequest is the inbound query shape.
type QueryRequest struct {
	Query           string `json:"query" validate:"required,max=512"`
	IncludeFastPath *bool  `json:"include_fast_path,omitempty"`
}

// FastPath returns the effective fast-path flag, true when unset.
func (q QueryRequest) FastPath() bool {
	return q.IncludeFastPath == nil || *q.IncludeFastPath
}
