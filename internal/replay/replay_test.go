package replay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/types"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/replay"
)

func fakeServer(healthy bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var req types.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Query, "weather") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"resolution_error","message":"no template matched"}`))
			return
		}
		var tbl model.Table
		tbl.Append(nil, model.Row{"season": "2023"}, model.Row{"season": "2023"})
		_ = json.NewEncoder(w).Encode(types.Result{
			RequestID:  "r",
			Table:      tbl,
			Provenance: types.Provenance{Source: model.SourceFastPath},
		})
	})
	return httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	Convey("Given a healthy target", t, func() {
		srv := fakeServer(true)
		defer srv.Close()

		Convey("When a batch of queries is replayed", func() {
			rep, err := replay.Run(context.Background(), replay.Config{
				BaseURL: srv.URL + "/",
				Queries: []string{"Verstappen results 2023", "what is the weather", "Hamilton wins since 2020"},
				Workers: 2,
			}, nil)

			Convey("Then outcomes keep input order with statuses counted", func() {
				So(err, ShouldBeNil)
				So(len(rep.Outcomes), ShouldEqual, 3)
				So(rep.Outcomes[0].Rows, ShouldEqual, 2)
				So(rep.Outcomes[0].Source, ShouldEqual, "fast-path")
				So(rep.Outcomes[1].Status, ShouldEqual, http.StatusUnprocessableEntity)
				So(rep.Outcomes[1].Err, ShouldEqual, "no template matched")
				So(rep.ByStatus[http.StatusOK], ShouldEqual, 2)
				So(rep.P95, ShouldBeGreaterThanOrEqualTo, rep.P50)
			})
		})
	})

	Convey("Given an unhealthy target", t, func() {
		srv := fakeServer(false)
		defer srv.Close()

		_, err := replay.Run(context.Background(), replay.Config{BaseURL: srv.URL, Queries: []string{"q"}}, nil)
		So(errors.Is(err, replay.ErrUnhealthy), ShouldBeTrue)
	})
}

func TestReadQueries(t *testing.T) {
	Convey("Given a query file", t, func() {
		qs, err := replay.ReadQueries(strings.NewReader("# comment\nVerstappen results 2023\n\n  Compare Ferrari and McLaren points in 2024  \n"))
		So(err, ShouldBeNil)
		So(qs, ShouldResemble, []string{"Verstappen results 2023", "Compare Ferrari and McLaren points in 2024"})
	})
}
