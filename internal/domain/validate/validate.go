// Package validate checks canonical tables for the columns each family
// requires.
package validate

import (
	"sort"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

var required = map[model.Family][]string{
	model.FamilyResults:              {"season", "round", "driver", "position", "points"},
	model.FamilySprint:               {"season", "round", "driver", "position", "points"},
	model.FamilyQualifying:           {"season", "round", "driver", "position"},
	model.FamilyLaps:                 {"season", "round", "driver", "lap", "position", "time_seconds"},
	model.FamilyPitStops:             {"season", "round", "driver", "stop", "lap", "duration_seconds"},
	model.FamilyDriverStandings:      {"season", "round", "driver", "position", "points", "wins"},
	model.FamilyConstructorStandings: {"season", "round", "constructor", "position", "points", "wins"},
	model.FamilySchedule:             {"season", "round", "race_name", "circuit", "date"},
}

// Required returns the required columns of f.
func Required(f model.Family) []string {
	return append([]string(nil), required[f]...)
}

// Validate reports whether t carries every column f requires. An empty
// table is valid. missing is sorted.
func Validate(t model.Table, f model.Family) (ok bool, missing []string) {
	if t.Len() == 0 {
		return true, nil
	}
	for _, c := range required[f] {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return len(missing) == 0, missing
}
