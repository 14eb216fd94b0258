package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/xbarat/grounding-llm-prototypes-sub000/internal/app"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/config"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/endpoint"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

const compareQuery = "Compare Verstappen and Hamilton's wins in 2023"

var names = map[string][2]string{
	"max_verstappen": {"Max", "Verstappen"},
	"hamilton":       {"Lewis", "Hamilton"},
}

// fakeErgast serves per-driver results and counts hits per path. Drivers in
// failing answer 503; drivers in garbled get a race table that cannot be
// decoded.
type fakeErgast struct {
	mu      sync.Mutex
	hits    map[string]int
	failing map[string]bool
	garbled map[string]bool
}

func (f *fakeErgast) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.mu.Unlock()

	_, rest, ok := strings.Cut(r.URL.Path, "/drivers/")
	if !ok {
		_, _ = w.Write([]byte(`{"MRData":{"total":"0"}}`))
		return
	}
	id, _, _ := strings.Cut(rest, "/")
	if f.failing[id] {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if f.garbled[id] {
		_, _ = w.Write([]byte(`{"MRData":{"total":"1","RaceTable":{"Races":"unavailable"}}}`))
		return
	}
	n := names[id]
	_, _ = fmt.Fprintf(w, `{"MRData":{"total":"1","RaceTable":{"Races":[{"season":"2023","round":"1","raceName":"Bahrain Grand Prix","date":"2023-03-05",
		"Circuit":{"circuitId":"bahrain","circuitName":"Bahrain International Circuit"},
		"Results":[{"number":"1","position":"1","positionText":"1","points":"25",
		  "Driver":{"driverId":%q,"givenName":%q,"familyName":%q},
		  "Constructor":{"constructorId":"red_bull","name":"Red Bull"},"grid":"1","laps":"57","status":"Finished"}]}]}}}`,
		id, n[0], n[1])
}

func (f *fakeErgast) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func noSleep(context.Context, time.Duration) error { return nil }

func newService(ctx context.Context, baseURL string, mutate func(*config.Config), opts ...service.Option) *service.Service {
	cfg := config.New()
	cfg.APIBaseURL = baseURL
	cfg.RateLimitRPS = 1000
	cfg.RateBurst = 100
	cfg.LLMAPIKey = ""
	if mutate != nil {
		mutate(cfg)
	}
	svc := service.New(append([]service.Option{
		service.WithConfig(*cfg),
		service.WithSleeper(noSleep),
		service.WithMetrics(metrics.NewManager()),
	}, opts...)...)
	So(svc.Start(ctx), ShouldBeNil)
	return svc
}

func TestQuery(t *testing.T) {
	Convey("Given a service against a fake upstream", t, func() {
		ctx := context.Background()
		fake := &fakeErgast{hits: map[string]int{}, failing: map[string]bool{}, garbled: map[string]bool{}}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		svc := newService(ctx, srv.URL, nil)
		defer svc.Stop()

		Convey("When a comparison query is answered", func() {
			res, err := svc.Query(ctx, compareQuery)

			Convey("Then both plans are fetched and concatenated in plan order", func() {
				So(err, ShouldBeNil)
				So(res.RequestID, ShouldNotBeEmpty)
				So(res.Provenance.Endpoint, ShouldEqual, endpoint.Drivers)
				So(res.Provenance.Source, ShouldEqual, model.SourceFastPath)
				So(res.Provenance.Confidence, ShouldEqual, 0.9)
				So(res.Provenance.CacheHit, ShouldBeFalse)
				So(len(res.Provenance.Plans), ShouldEqual, 2)
				So(res.Table.Len(), ShouldEqual, 2)
				So(res.Table.Rows[0]["driver"], ShouldEqual, "max_verstappen")
				So(res.Table.Rows[1]["driver"], ShouldEqual, "hamilton")
				So(res.Table.Rows[1]["driver_name"], ShouldEqual, "Lewis Hamilton")
				So(res.Validation.OK, ShouldBeTrue)
			})

			Convey("Then a repeat is served from the cache", func() {
				again, err := svc.Query(ctx, compareQuery)
				So(err, ShouldBeNil)
				So(again.Provenance.CacheHit, ShouldBeTrue)
				So(again.RequestID, ShouldNotEqual, res.RequestID)
				So(fake.count("/f1/2023/drivers/hamilton/results.json"), ShouldEqual, 1)
				So(again.Table.Rows, ShouldResemble, res.Table.Rows)
			})
		})

		Convey("When one plan keeps failing", func() {
			fake.failing["hamilton"] = true
			res, err := svc.Query(ctx, compareQuery)

			Convey("Then the surviving plan is returned with a failed report", func() {
				So(err, ShouldBeNil)
				So(res.Table.Len(), ShouldEqual, 1)
				So(res.Provenance.Plans[0].Failed(), ShouldBeFalse)
				So(res.Provenance.Plans[1].Failed(), ShouldBeTrue)
				So(fake.count("/f1/2023/drivers/hamilton/results.json"), ShouldEqual, 3)
				So(res.Trace, ShouldContain, "plans partially failed")
			})
		})

		Convey("When every plan fails", func() {
			fake.failing["hamilton"] = true
			fake.failing["max_verstappen"] = true
			_, err := svc.Query(ctx, compareQuery)
			So(errors.Is(err, model.ErrFetch), ShouldBeTrue)
		})

		Convey("When every payload is undecodable", func() {
			fake.garbled["hamilton"] = true
			fake.garbled["max_verstappen"] = true
			_, err := svc.Query(ctx, compareQuery)

			Convey("Then the failure carries the fetch kind and nothing is cached", func() {
				So(errors.Is(err, model.ErrFetch), ShouldBeTrue)
				So(svc.GetStats()["cache_entries"], ShouldEqual, 0)
			})
		})

		Convey("When the query matches no template and remote parsing is off", func() {
			_, err := svc.Query(ctx, "tell me something interesting")
			So(errors.Is(err, model.ErrResolution), ShouldBeTrue)
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats, ShouldContainKey, "cache_entries")
		})
	})

	Convey("Given a service with a remote parser", t, func() {
		ctx := context.Background()
		fake := &fakeErgast{hits: map[string]int{}, failing: map[string]bool{}, garbled: map[string]bool{}}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		remote := completerFunc(func(_ context.Context, _, _ string) (string, error) {
			return `{"endpoint":"/api/f1/drivers","modified_params":{"season":"2023","driver":["hamilton"]}}`, nil
		})
		svc := newService(ctx, srv.URL, nil, service.WithCompleter(remote))
		defer svc.Stop()

		Convey("When the fast path is excluded", func() {
			res, err := svc.Query(ctx, compareQuery, service.IncludeFastPath(false))

			Convey("Then the fallback outcome drives the fetch", func() {
				So(err, ShouldBeNil)
				So(res.Provenance.Source, ShouldEqual, model.SourceFallback)
				So(res.Table.Len(), ShouldEqual, 1)
				So(res.Table.Rows[0]["driver"], ShouldEqual, "hamilton")
			})
		})
	})

	Convey("Given a service with an invalid configuration", t, func() {
		ctx := context.Background()

		Convey("When the configuration is zero-valued", func() {
			err := service.New(service.WithConfig(config.Config{})).Start(ctx)

			Convey("Then Start rejects it as a configuration error", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
				So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
			})
		})

		Convey("When plan concurrency is zero", func() {
			cfg := config.New()
			cfg.PlanConcurrency = 0
			svc := service.New(service.WithConfig(*cfg))
			So(svc.Start(ctx), ShouldNotBeNil)

			Convey("Then queries are refused instead of blocking", func() {
				_, err := svc.Query(ctx, compareQuery)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When the rate burst is zero", func() {
			cfg := config.New()
			cfg.RateBurst = 0
			So(service.New(service.WithConfig(*cfg)).Start(ctx), ShouldNotBeNil)
		})
	})

	Convey("Given a service that was never started", t, func() {
		_, err := service.New().Query(context.Background(), compareQuery)
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}

type completerFunc func(ctx context.Context, instruction, input string) (string, error)

func (f completerFunc) Complete(ctx context.Context, instruction, input string) (string, error) {
	return f(ctx, instruction, input)
}
