// Package replay fires a batch of queries at a running server and reports
// status counts and latencies.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/types"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
)

// ErrUnhealthy is returned when the target fails its health check.
var ErrUnhealthy = errors.New("target unhealthy")

// Config holds replay settings.
type Config struct {
	BaseURL         string
	Queries         []string
	Workers         int
	Timeout         time.Duration
	IncludeFastPath bool
}

// Outcome is the result of one replayed query.
type Outcome struct {
	Query     string        `json:"query"`
	Status    int           `json:"status"`
	Latency   time.Duration `json:"latency"`
	Rows      int           `json:"rows"`
	Source    string        `json:"source,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// Report summarizes a replay.
type Report struct {
	Outcomes []Outcome     `json:"outcomes"`
	ByStatus map[int]int   `json:"by_status"`
	Duration time.Duration `json:"duration"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
}

// Run checks the target health, then replays every query with at most
// cfg.Workers in flight. Outcomes keep the input order.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Report, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	client := &http.Client{Timeout: cfg.Timeout}

	if err := checkHealth(ctx, client, base); err != nil {
		return Report{}, err
	}
	log.Info(ctx, "replaying queries",
		logger.String("base_url", base),
		logger.Int("queries", len(cfg.Queries)),
		logger.Int("workers", cfg.Workers),
	)

	start := time.Now()
	outcomes := make([]Outcome, len(cfg.Queries))
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, q := range cfg.Queries {
		g.Go(func() error {
			outcomes[i] = send(ctx, client, base, q, cfg.IncludeFastPath)
			log.Debug(ctx, "query replayed",
				logger.String("query", q),
				logger.Int("status", outcomes[i].Status),
				logger.Duration("latency", outcomes[i].Latency),
			)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(outcomes, time.Since(start)), nil
}

func checkHealth(ctx context.Context, client *http.Client, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz", nil)
	if err != nil {
		return errors.Wrap(err, "build health request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "health check"), ErrUnhealthy)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Mark(errors.Newf("health check returned %d", resp.StatusCode), ErrUnhealthy)
	}
	return nil
}

func send(ctx context.Context, client *http.Client, base, q string, fastPath bool) Outcome {
	out := Outcome{Query: q}
	body, err := json.Marshal(types.QueryRequest{Query: q, IncludeFastPath: &fastPath})
	if err != nil {
		out.Err = err.Error()
		return out
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/query", bytes.NewReader(body))
	if err != nil {
		out.Err = err.Error()
		return out
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	out.Latency = time.Since(start)
	if err != nil {
		out.Err = err.Error()
		return out
	}
	defer func() { _ = resp.Body.Close() }()
	out.Status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		out.Err = err.Error()
		return out
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		out.Err = e.Message
		return out
	}
	var res types.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		out.Err = err.Error()
		return out
	}
	out.Rows = res.Table.Len()
	out.Source = string(res.Provenance.Source)
	out.RequestID = res.RequestID
	return out
}

func summarize(outcomes []Outcome, d time.Duration) Report {
	r := Report{Outcomes: outcomes, ByStatus: map[int]int{}, Duration: d}
	lat := make([]time.Duration, 0, len(outcomes))
	for _, o := range outcomes {
		r.ByStatus[o.Status]++
		if o.Status != 0 {
			lat = append(lat, o.Latency)
		}
	}
	if len(lat) == 0 {
		return r
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	r.P50 = lat[(len(lat)-1)*50/100]
	r.P95 = lat[(len(lat)-1)*95/100]
	return r
}

// ReadQueries reads one query per line, skipping blanks and # comments.
func ReadQueries(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read queries")
	}
	return out, nil
}
