// Package normalize flattens upstream sub-tables into canonical rows.
package normalize

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/entity"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// ErrMalformedPayload is returned when a sub-table cannot be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

var raceContext = []string{"season", "round", "race_name", "circuit", "circuit_name", "date"}

// columns lists the preferred column order per family.
var columns = map[model.Family][]string{
	model.FamilyResults: append(append([]string{}, raceContext...),
		"driver", "driver_code", "driver_name", "constructor", "constructor_name", "number",
		"position", "position_text", "points", "grid", "laps", "status", "time_seconds", "fastest_lap_seconds"),
	model.FamilyQualifying: append(append([]string{}, raceContext...),
		"driver", "driver_name", "constructor", "position",
		"q1", "q2", "q3", "q1_seconds", "q2_seconds", "q3_seconds"),
	model.FamilyLaps:     append(append([]string{}, raceContext...), "driver", "lap", "position", "time", "time_seconds"),
	model.FamilyPitStops: append(append([]string{}, raceContext...), "driver", "stop", "lap", "time", "duration_seconds"),
	model.FamilyDriverStandings: {
		"season", "round", "driver", "driver_name", "constructor", "position", "points", "wins",
	},
	model.FamilyConstructorStandings: {
		"season", "round", "constructor", "constructor_name", "position", "points", "wins",
	},
	model.FamilySchedule: append(append([]string{}, raceContext...), "locality", "country"),
}

func init() {
	columns[model.FamilySprint] = columns[model.FamilyResults]
}

// Columns returns the preferred column order for f.
func Columns(f model.Family) []string {
	return append([]string(nil), columns[f]...)
}

// Normalizer converts payloads into rows.
type Normalizer struct {
	entities *entity.Normalizer
	logger   logger.Logger
	metrics  *metrics.Manager
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithEntities sets the entity normalizer applied to ids.
func WithEntities(e *entity.Normalizer) Option { return func(n *Normalizer) { n.entities = e } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(n *Normalizer) { n.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Manager) Option { return func(n *Normalizer) { n.metrics = m } }

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	if n.entities == nil {
		n.entities = entity.New(nil)
	}
	if n.logger == nil {
		n.logger = logger.NewNop()
	}
	return n
}

// Rows extracts the canonical rows of p for family f. An empty payload
// yields no rows.
func (n *Normalizer) Rows(ctx context.Context, p model.Payload, f model.Family) ([]model.Row, error) {
	if p.Empty || len(p.Raw) == 0 {
		return nil, nil
	}

	var (
		rows []model.Row
		err  error
	)
	switch f {
	case model.FamilyResults:
		rows, err = n.raceRows(p.Raw, func(r race) []model.Row { return n.results(r, r.Results) })
	case model.FamilySprint:
		rows, err = n.raceRows(p.Raw, func(r race) []model.Row { return n.results(r, r.SprintResults) })
	case model.FamilyQualifying:
		rows, err = n.raceRows(p.Raw, n.qualifying)
	case model.FamilyLaps:
		rows, err = n.raceRows(p.Raw, n.laps)
	case model.FamilyPitStops:
		rows, err = n.raceRows(p.Raw, n.pitStops)
	case model.FamilySchedule:
		rows, err = n.raceRows(p.Raw, func(r race) []model.Row {
			row := n.header(r)
			row["locality"] = r.Circuit.Location.Locality.String()
			row["country"] = r.Circuit.Location.Country.String()
			return []model.Row{row}
		})
	case model.FamilyDriverStandings:
		rows, err = n.standingsRows(p.Raw, n.driverStandings)
	case model.FamilyConstructorStandings:
		rows, err = n.standingsRows(p.Raw, n.constructorStandings)
	default:
		return nil, errors.Newf("no row extractor for family %s", f)
	}
	if err != nil {
		return nil, err
	}

	n.metrics.RecordRows(f.String(), len(rows))
	n.logger.Debug(ctx, "normalized payload",
		logger.String("table", p.Table),
		logger.String("family", f.String()),
		logger.Int("rows", len(rows)),
	)
	return rows, nil
}

// Table builds a canonical table of rows for family f.
func Table(f model.Family, rows []model.Row) model.Table {
	var t model.Table
	t.Append(columns[f], rows...)
	return t
}

func (n *Normalizer) raceRows(raw json.RawMessage, leaf func(race) []model.Row) ([]model.Row, error) {
	var rt raceTable
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode race table"), ErrMalformedPayload)
	}
	var rows []model.Row
	for _, r := range rt.Races {
		rows = append(rows, leaf(r)...)
	}
	return rows, nil
}

func (n *Normalizer) standingsRows(raw json.RawMessage, leaf func(standingsList) []model.Row) ([]model.Row, error) {
	var st standingsTable
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode standings table"), ErrMalformedPayload)
	}
	var rows []model.Row
	for _, l := range st.StandingsLists {
		rows = append(rows, leaf(l)...)
	}
	return rows, nil
}

func (n *Normalizer) header(r race) model.Row {
	return model.Row{
		"season":       r.Season.String(),
		"round":        r.Round.String(),
		"race_name":    r.RaceName.String(),
		"circuit":      n.id(n.entities.Circuit, r.Circuit.CircuitID),
		"circuit_name": r.Circuit.CircuitName.String(),
		"date":         r.Date.String(),
	}
}

func (n *Normalizer) results(r race, results []result) []model.Row {
	rows := make([]model.Row, 0, len(results))
	for _, res := range results {
		row := n.header(r)
		row["driver"] = n.id(n.entities.Driver, res.Driver.DriverID)
		row["driver_code"] = res.Driver.Code.String()
		row["driver_name"] = fullName(res.Driver)
		row["constructor"] = n.id(n.entities.Constructor, res.Constructor.ConstructorID)
		row["constructor_name"] = res.Constructor.Name.String()
		row["number"] = res.Number.String()
		row["position"] = integer(res.Position)
		row["position_text"] = res.PositionText.String()
		row["points"] = float(res.Points)
		row["grid"] = integer(res.Grid)
		row["laps"] = integer(res.Laps)
		row["status"] = res.Status.String()
		row["time_seconds"] = nil
		if res.Time != nil {
			if ms, ok := float(res.Time.Millis).(float64); ok {
				row["time_seconds"] = ms / 1000
			}
		}
		row["fastest_lap_seconds"] = nil
		if res.FastestLap != nil {
			row["fastest_lap_seconds"] = timing(res.FastestLap.Time.Time)
		}
		rows = append(rows, row)
	}
	return rows
}

func (n *Normalizer) qualifying(r race) []model.Row {
	rows := make([]model.Row, 0, len(r.QualifyingResults))
	for _, q := range r.QualifyingResults {
		row := n.header(r)
		row["driver"] = n.id(n.entities.Driver, q.Driver.DriverID)
		row["driver_name"] = fullName(q.Driver)
		row["constructor"] = n.id(n.entities.Constructor, q.Constructor.ConstructorID)
		row["position"] = integer(q.Position)
		row["q1"], row["q1_seconds"] = q.Q1.String(), timing(q.Q1)
		row["q2"], row["q2_seconds"] = q.Q2.String(), timing(q.Q2)
		row["q3"], row["q3_seconds"] = q.Q3.String(), timing(q.Q3)
		rows = append(rows, row)
	}
	return rows
}

func (n *Normalizer) laps(r race) []model.Row {
	var rows []model.Row
	for _, l := range r.Laps {
		for _, t := range l.Timings {
			row := n.header(r)
			row["driver"] = n.id(n.entities.Driver, t.DriverID)
			row["lap"] = integer(l.Number)
			row["position"] = integer(t.Position)
			row["time"] = t.Time.String()
			row["time_seconds"] = timing(t.Time)
			rows = append(rows, row)
		}
	}
	return rows
}

func (n *Normalizer) pitStops(r race) []model.Row {
	rows := make([]model.Row, 0, len(r.PitStops))
	for _, p := range r.PitStops {
		row := n.header(r)
		row["driver"] = n.id(n.entities.Driver, p.DriverID)
		row["stop"] = integer(p.Stop)
		row["lap"] = integer(p.Lap)
		row["time"] = p.Time.String()
		row["duration_seconds"] = timing(p.Duration)
		rows = append(rows, row)
	}
	return rows
}

func (n *Normalizer) driverStandings(l standingsList) []model.Row {
	rows := make([]model.Row, 0, len(l.DriverStandings))
	for _, s := range l.DriverStandings {
		var team any
		if len(s.Constructors) > 0 {
			team = n.id(n.entities.Constructor, s.Constructors[len(s.Constructors)-1].ConstructorID)
		}
		rows = append(rows, model.Row{
			"season":      l.Season.String(),
			"round":       l.Round.String(),
			"driver":      n.id(n.entities.Driver, s.Driver.DriverID),
			"driver_name": fullName(s.Driver),
			"constructor": team,
			"position":    integer(s.Position),
			"points":      float(s.Points),
			"wins":        integer(s.Wins),
		})
	}
	return rows
}

func (n *Normalizer) constructorStandings(l standingsList) []model.Row {
	rows := make([]model.Row, 0, len(l.ConstructorStandings))
	for _, s := range l.ConstructorStandings {
		rows = append(rows, model.Row{
			"season":           l.Season.String(),
			"round":            l.Round.String(),
			"constructor":      n.id(n.entities.Constructor, s.Constructor.ConstructorID),
			"constructor_name": s.Constructor.Name.String(),
			"position":         integer(s.Position),
			"points":           float(s.Points),
			"wins":             integer(s.Wins),
		})
	}
	return rows
}

func (n *Normalizer) id(canon func(string) string, raw scalar) any {
	if strings.TrimSpace(raw.String()) == "" {
		return nil
	}
	return canon(raw.String())
}

func fullName(d driver) string {
	return strings.TrimSpace(d.GivenName.String() + " " + d.FamilyName.String())
}

// ParseTiming converts "M:SS.mmm" (or "H:MM:SS.mmm") to seconds, falling
// back to a bare float. ok is false when s is neither.
func ParseTiming(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil
	}

	parts := strings.Split(s, ":")
	var total float64
	for i, part := range parts {
		if i == len(parts)-1 {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil || v < 0 || v >= 60 {
				return 0, false
			}
			total = total*60 + v
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + float64(v)
	}
	return total, true
}

func timing(s scalar) any {
	if v, ok := ParseTiming(s.String()); ok {
		return v
	}
	return nil
}

func integer(s scalar) any {
	v, err := strconv.Atoi(strings.TrimSpace(s.String()))
	if err != nil {
		return nil
	}
	return v
}

func float(s scalar) any {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.String()), 64)
	if err != nil {
		return nil
	}
	return v
}
