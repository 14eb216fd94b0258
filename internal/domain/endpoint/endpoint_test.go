package endpoint_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/endpoint"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(context.Context, string, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestSanitize(t *testing.T) {
	Convey("Given params with keys outside the family", t, func() {
		params := model.Params{
			"season":      model.Scalar("2023"),
			"constructor": model.Scalar("ferrari"),
			"weather":     model.Scalar("rain"),
			"round":       model.Scalar(""),
		}

		Convey("When sanitizing for driver standings", func() {
			out, dropped := endpoint.Sanitize(model.FamilyDriverStandings, params)

			Convey("Then only recognized non-empty keys survive", func() {
				So(out.Keys(), ShouldResemble, []string{"season"})
				So(dropped, ShouldResemble, []string{"constructor", "weather"})
			})
		})
	})
}

func TestRecognized(t *testing.T) {
	Convey("Given the keys recognized for results", t, func() {
		keys := endpoint.Recognized(model.FamilyResults)
		So(keys, ShouldContain, "season")

		Convey("When the caller overwrites the returned slice", func() {
			for i := range keys {
				keys[i] = "tampered"
			}

			Convey("Then families sharing the key set are unaffected", func() {
				So(endpoint.Recognized(model.FamilyResults), ShouldContain, "season")
				So(endpoint.Recognized(model.FamilyQualifying), ShouldNotContain, "tampered")
				out, _ := endpoint.Sanitize(model.FamilySprint, model.Params{"season": model.Scalar("2023")})
				So(out.Keys(), ShouldResemble, []string{"season"})
			})
		})
	})
}

func TestCatalog(t *testing.T) {
	Convey("Given the default catalog", t, func() {
		c := endpoint.Default()

		Convey("Then driver comparisons use the results family", func() {
			d, ok := c.Lookup(endpoint.Drivers)
			So(ok, ShouldBeTrue)
			So(d.Family, ShouldEqual, model.FamilyResults)
			So(d.Resource, ShouldEqual, "results")
		})

		Convey("Then Describe lists every endpoint", func() {
			desc := c.Describe()
			for _, d := range c.All() {
				So(desc, ShouldContainSubstring, string(d.Endpoint))
			}
		})
	})
}

func TestMapper(t *testing.T) {
	Convey("Given a mapper without a remote parser", t, func() {
		m := endpoint.NewMapper()
		ctx := context.Background()

		Convey("When mapping a driver comparison", func() {
			req, trace, err := m.Map(ctx, model.ParsedParameters{
				Action: "compare",
				Entity: "drivers",
				Params: model.Params{
					"drivers": model.List("Verstappen", "Hamilton"),
					"year":    model.Scalar("2023"),
				},
			})

			Convey("Then the static route and transforms apply", func() {
				So(err, ShouldBeNil)
				So(req.Endpoint, ShouldEqual, endpoint.Drivers)
				So(req.Params["driver"].Values(), ShouldResemble, []string{"max_verstappen", "hamilton"})
				So(req.Params["season"].First(), ShouldEqual, "2023")
				So(trace, ShouldNotBeEmpty)
			})
		})

		Convey("When mapping standings with a team synonym", func() {
			req, _, err := m.Map(ctx, model.ParsedParameters{
				Action: "standings",
				Entity: "constructor",
				Params: model.Params{"team": model.Scalar("Scuderia Ferrari"), "driver": model.Scalar("ham")},
			})

			Convey("Then the team is canonical and the driver is dropped", func() {
				So(err, ShouldBeNil)
				So(req.Endpoint, ShouldEqual, endpoint.ConstructorStandings)
				So(req.Params["constructor"].First(), ShouldEqual, "ferrari")
				_, hasDriver := req.Params["driver"]
				So(hasDriver, ShouldBeFalse)
			})
		})

		Convey("When no static route exists", func() {
			_, _, err := m.Map(ctx, model.ParsedParameters{Action: "weather", Entity: "race"})

			Convey("Then it is a resolution error", func() {
				So(errors.Is(err, model.ErrResolution), ShouldBeTrue)
			})
		})
	})

	Convey("Given a mapper with a remote parser", t, func() {
		ctx := context.Background()

		Convey("When the remote picks a catalog endpoint", func() {
			stub := &stubCompleter{reply: "```json\n{\"endpoint\": \"/api/f1/pitstops\", \"modified_params\": {\"season\": 2021, \"round\": 5}, \"reasoning\": [\"pit stops asked\"]}\n```"}
			m := endpoint.NewMapper(endpoint.WithCompleter(stub))
			req, trace, err := m.Map(ctx, model.ParsedParameters{Action: "strategy", Entity: "race"})

			Convey("Then its params are transformed and kept", func() {
				So(err, ShouldBeNil)
				So(stub.calls, ShouldEqual, 1)
				So(req.Endpoint, ShouldEqual, endpoint.PitStops)
				So(req.Params["season"].First(), ShouldEqual, "2021")
				So(req.Params["round"].First(), ShouldEqual, "5")
				So(trace, ShouldContain, "pit stops asked")
			})
		})

		Convey("When the remote names an unknown endpoint", func() {
			m := endpoint.NewMapper(endpoint.WithCompleter(&stubCompleter{reply: `{"endpoint": "/api/f1/weather"}`}))
			_, _, err := m.Map(ctx, model.ParsedParameters{Action: "weather", Entity: "race"})
			So(errors.Is(err, model.ErrResolution), ShouldBeTrue)
		})

		Convey("When the remote reply has no endpoint", func() {
			m := endpoint.NewMapper(endpoint.WithCompleter(&stubCompleter{reply: `{"reasoning": []}`}))
			_, _, err := m.Map(ctx, model.ParsedParameters{Action: "weather", Entity: "race"})
			So(errors.Is(err, model.ErrResolution), ShouldBeTrue)
		})

		Convey("When the remote call fails", func() {
			m := endpoint.NewMapper(endpoint.WithCompleter(&stubCompleter{err: errors.New("timeout")}))
			_, _, err := m.Map(ctx, model.ParsedParameters{Action: "weather", Entity: "race"})
			So(errors.Is(err, model.ErrResolution), ShouldBeTrue)
		})

		Convey("When a static route exists", func() {
			stub := &stubCompleter{}
			m := endpoint.NewMapper(endpoint.WithCompleter(stub))
			_, _, err := m.Map(ctx, model.ParsedParameters{Action: "results", Entity: "race"})
			So(err, ShouldBeNil)
			So(stub.calls, ShouldEqual, 0)
		})
	})
}
