package types_test

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	types "github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/types"
)

func TestQueryRequest(t *testing.T) {
	Convey("Given query requests", t, func() {
		Convey("When the fast-path flag is omitted", func() {
			var q types.QueryRequest
			So(json.Unmarshal([]byte(`{"query":"results 2023"}`), &q), ShouldBeNil)
			So(q.FastPath(), ShouldBeTrue)
		})

		Convey("When the fast-path flag is false", func() {
			var q types.QueryRequest
			So(json.Unmarshal([]byte(`{"query":"q","include_fast_path":false}`), &q), ShouldBeNil)
			So(q.FastPath(), ShouldBeFalse)
		})
	})
}

func TestResultShape(t *testing.T) {
	Convey("Given a result with a list-valued param", t, func() {
		res := types.Result{
			RequestID: "abc",
			Provenance: types.Provenance{
				Endpoint: "/api/f1/drivers",
				Params:   model.Params{"season": model.List("2022", "2023"), "driver": model.Scalar("hamilton")},
				Source:   model.SourceFastPath,
				Plans:    []types.PlanReport{{Index: 0, Error: "boom"}},
			},
			Validation: types.Validation{OK: true},
		}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(res)
			So(err, ShouldBeNil)
			var doc map[string]any
			So(json.Unmarshal(raw, &doc), ShouldBeNil)

			Convey("Then params keep their list or scalar form", func() {
				params := doc["provenance"].(map[string]any)["params"].(map[string]any)
				So(params["season"], ShouldResemble, []any{"2022", "2023"})
				So(params["driver"], ShouldEqual, "hamilton")
				So(doc["provenance"].(map[string]any)["source"], ShouldEqual, "fast-path")
				So(res.Provenance.Plans[0].Failed(), ShouldBeTrue)
			})
		})
	})
}
