package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

func TestValueJSON(t *testing.T) {
	Convey("Given parameter values in JSON", t, func() {
		Convey("When decoding a mixed object", func() {
			var p model.Params
			err := json.Unmarshal([]byte(`{"season": 2023, "driver": ["VER", "Hamilton"], "round": "5", "sprint": true, "circuit": null}`), &p)

			Convey("Then numbers render without exponent and lists keep order", func() {
				So(err, ShouldBeNil)
				So(p["season"].First(), ShouldEqual, "2023")
				So(p["season"].IsList(), ShouldBeFalse)
				So(p["driver"].Values(), ShouldResemble, []string{"VER", "Hamilton"})
				So(p["driver"].IsList(), ShouldBeTrue)
				So(p["round"].First(), ShouldEqual, "5")
				So(p["sprint"].First(), ShouldEqual, "true")
				So(p.Populated("circuit"), ShouldBeFalse)
			})
		})

		Convey("When decoding a large float", func() {
			var v model.Value
			So(json.Unmarshal([]byte(`1.5e3`), &v), ShouldBeNil)
			So(v.First(), ShouldEqual, "1500")
		})

		Convey("When decoding an object as a value", func() {
			var v model.Value
			So(json.Unmarshal([]byte(`{"a":1}`), &v), ShouldNotBeNil)
		})

		Convey("When encoding", func() {
			b, err := json.Marshal(model.Params{"driver": model.List("a", "b"), "season": model.Scalar("2021")})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"driver":["a","b"],"season":"2021"}`)
		})
	})
}

func TestOutcomeImmutability(t *testing.T) {
	Convey("Given an outcome built from mutable inputs", t, func() {
		params := model.Params{"season": model.Scalar("2023")}
		trace := []string{"matched"}
		o := model.NewOutcome(model.RequirementsSpec{Endpoint: "/api/f1/results", Params: params}, 1.7, model.SourceFastPath, time.Millisecond, trace)

		params["season"] = model.Scalar("1999")
		trace[0] = "changed"

		Convey("Then the outcome is unaffected and confidence is clamped", func() {
			So(o.Requirements().Params["season"].First(), ShouldEqual, "2023")
			So(o.Trace(), ShouldResemble, []string{"matched"})
			So(o.Confidence(), ShouldEqual, 1)
			So(o.Source(), ShouldEqual, model.SourceFastPath)
		})
	})
}

func TestTableAppend(t *testing.T) {
	Convey("Given an empty table", t, func() {
		var tbl model.Table

		Convey("When appending rows with overlapping keys", func() {
			tbl.Append([]string{"season", "driver"}, model.Row{"season": 2023, "driver": "hamilton"})
			tbl.Append([]string{"season", "driver", "points"}, model.Row{"season": 2023, "driver": "max_verstappen", "points": 25.0, "extra": nil})

			Convey("Then columns are the ordered union", func() {
				So(tbl.Columns, ShouldResemble, []string{"season", "driver", "points", "extra"})
				So(tbl.Len(), ShouldEqual, 2)
				So(tbl.HasColumn("points"), ShouldBeTrue)
			})

			Convey("Then Filter keeps the columns", func() {
				f := tbl.Filter(func(r model.Row) bool { return r["driver"] == "hamilton" })
				So(f.Len(), ShouldEqual, 1)
				So(f.Columns, ShouldResemble, tbl.Columns)
			})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given constructed pipeline errors", t, func() {
		res := model.ResolutionErrorf("no template for %q", "x")
		cfg := model.ConfigurationErrorf("no url for %s", "/api/f1/x")
		fetch := model.FetchError(errors.New("boom"), "http://x", 3, 503)
		val := model.ValidationError(model.FamilyResults, []string{"points"})

		Convey("Then each is classified by kind", func() {
			So(errors.Is(res, model.ErrResolution), ShouldBeTrue)
			So(errors.Is(cfg, model.ErrConfiguration), ShouldBeTrue)
			So(errors.Is(fetch, model.ErrFetch), ShouldBeTrue)
			So(errors.Is(val, model.ErrValidation), ShouldBeTrue)
			So(model.Kind(errors.Wrap(fetch, "plan 0")), ShouldEqual, model.ErrFetch)
			So(model.Kind(errors.New("other")), ShouldBeNil)
			So(model.WrapResolution(nil, "x"), ShouldBeNil)
		})

		Convey("Then fetch errors mention the url", func() {
			So(fetch.Error(), ShouldContainSubstring, "http://x")
			So(errors.FlattenDetails(fetch), ShouldContainSubstring, "last_status=503")
		})
	})
}
