package normalize

import (
	"bytes"
	"encoding/json"
)

// Upstream wire shapes. Leaves are usually JSON strings, but some mirrors
// send bare numbers, so every leaf decodes through scalar.

// scalar is a leaf value kept as its text form. It accepts a string, a
// number, a boolean or null. Objects and arrays decode as empty.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = scalar(v)
	case b[0] == '{', b[0] == '[':
		*s = ""
	default:
		*s = scalar(b)
	}
	return nil
}

func (s scalar) String() string { return string(s) }

type raceTable struct {
	Races []race `json:"Races"`
}

type standingsTable struct {
	StandingsLists []standingsList `json:"StandingsLists"`
}

type race struct {
	Season   scalar `json:"season"`
	Round    scalar `json:"round"`
	RaceName scalar `json:"raceName"`
	Date     scalar `json:"date"`
	Circuit  struct {
		CircuitID   scalar `json:"circuitId"`
		CircuitName scalar `json:"circuitName"`
		Location    struct {
			Locality scalar `json:"locality"`
			Country  scalar `json:"country"`
		} `json:"Location"`
	} `json:"Circuit"`

	Results           []result     `json:"Results"`
	SprintResults     []result     `json:"SprintResults"`
	QualifyingResults []qualifying `json:"QualifyingResults"`
	Laps              []lap        `json:"Laps"`
	PitStops          []pitStop    `json:"PitStops"`
}

type driver struct {
	DriverID   scalar `json:"driverId"`
	Code       scalar `json:"code"`
	GivenName  scalar `json:"givenName"`
	FamilyName scalar `json:"familyName"`
}

type constructor struct {
	ConstructorID scalar `json:"constructorId"`
	Name          scalar `json:"name"`
}

type result struct {
	Number       scalar      `json:"number"`
	Position     scalar      `json:"position"`
	PositionText scalar      `json:"positionText"`
	Points       scalar      `json:"points"`
	Driver       driver      `json:"Driver"`
	Constructor  constructor `json:"Constructor"`
	Grid         scalar      `json:"grid"`
	Laps         scalar      `json:"laps"`
	Status       scalar      `json:"status"`
	Time         *struct {
		Millis scalar `json:"millis"`
		Time   scalar `json:"time"`
	} `json:"Time"`
	FastestLap *struct {
		Time struct {
			Time scalar `json:"time"`
		} `json:"Time"`
	} `json:"FastestLap"`
}

type qualifying struct {
	Number      scalar      `json:"number"`
	Position    scalar      `json:"position"`
	Driver      driver      `json:"Driver"`
	Constructor constructor `json:"Constructor"`
	Q1          scalar      `json:"Q1"`
	Q2          scalar      `json:"Q2"`
	Q3          scalar      `json:"Q3"`
}

type lap struct {
	Number  scalar `json:"number"`
	Timings []struct {
		DriverID scalar `json:"driverId"`
		Position scalar `json:"position"`
		Time     scalar `json:"time"`
	} `json:"Timings"`
}

type pitStop struct {
	DriverID scalar `json:"driverId"`
	Lap      scalar `json:"lap"`
	Stop     scalar `json:"stop"`
	Time     scalar `json:"time"`
	Duration scalar `json:"duration"`
}

type standingsList struct {
	Season          scalar `json:"season"`
	Round           scalar `json:"round"`
	DriverStandings []struct {
		Position     scalar        `json:"position"`
		PositionText scalar        `json:"positionText"`
		Points       scalar        `json:"points"`
		Wins         scalar        `json:"wins"`
		Driver       driver        `json:"Driver"`
		Constructors []constructor `json:"Constructors"`
	} `json:"DriverStandings"`
	ConstructorStandings []struct {
		Position     scalar      `json:"position"`
		PositionText scalar      `json:"positionText"`
		Points       scalar      `json:"points"`
		Wins         scalar      `json:"wins"`
		Constructor  constructor `json:"Constructor"`
	} `json:"ConstructorStandings"`
}
