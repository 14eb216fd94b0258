// Package upstream fetches payloads from the statistics API with bounded
// retries, exponential backoff and response shape checks.
package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

const (
	rootKey     = "MRData"
	tableSuffix = "Table"

	maxBodyBytes = 16 << 20
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetcher executes GET requests against the upstream API.
type Fetcher struct {
	client       *http.Client
	maxAttempts  int
	backoffBase  time.Duration
	emptyRetries int
	emptyBackoff time.Duration
	sleep        Sleeper
	userAgent    string
	logger       logger.Logger
	metrics      *metrics.Manager
}

// New creates a Fetcher. Defaults: 3 attempts, 1s backoff base, one empty
// retry after 1s, a 10s client timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{Timeout: 10 * time.Second},
		maxAttempts:  3,
		backoffBase:  time.Second,
		emptyRetries: 1,
		emptyBackoff: time.Second,
		sleep:        ContextSleep,
		userAgent:    "grid/1.0",
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.maxAttempts < 1 {
		f.maxAttempts = 1
	}
	if f.emptyRetries < 0 {
		f.emptyRetries = 0
	}
	if f.logger == nil {
		f.logger = logger.NewNop()
	}
	return f
}

// Fetch returns the addressed sub-table of the response at url. A response
// without the root wrapper or sub-table is retried under the empty budget
// and then returned as an empty Payload with a nil error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (model.Payload, error) {
	for emptyLeft := f.emptyRetries; ; emptyLeft-- {
		body, err := f.fetchBody(ctx, url)
		if err != nil {
			f.metrics.RecordFetchFailure()
			return model.Payload{}, err
		}

		payload, ok := extract(body)
		if ok {
			return payload, nil
		}
		if emptyLeft <= 0 {
			f.logger.Info(ctx, "upstream response has no sub-table, treating as empty", logger.String("url", url))
			return model.Payload{Empty: true}, nil
		}

		f.logger.Debug(ctx, "empty upstream response, retrying", logger.String("url", url), logger.Int("empty_retries_left", emptyLeft))
		if err := f.wait(ctx, f.emptyBackoff); err != nil {
			return model.Payload{}, model.FetchError(err, url, 0, http.StatusOK)
		}
	}
}

// fetchBody runs the transport retry loop and returns a 200 body.
func (f *Fetcher) fetchBody(ctx context.Context, url string) ([]byte, error) {
	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		body, status, retryAfter, err := f.do(ctx, url)
		if err == nil {
			f.metrics.RecordFetchAttempt("ok")
			return body, nil
		}
		lastErr, lastStatus = err, status
		f.metrics.RecordFetchAttempt(outcome(status))

		if ctx.Err() != nil {
			return nil, model.FetchError(lastErr, url, attempt+1, lastStatus)
		}
		if attempt == f.maxAttempts-1 {
			break
		}

		wait := f.backoffBase * (1 << uint(attempt))
		if retryAfter > wait {
			wait = retryAfter
		}
		f.logger.Warn(ctx, "upstream attempt failed, backing off",
			logger.String("url", url),
			logger.Int("attempt", attempt+1),
			logger.Int("status", status),
			logger.Duration("backoff", wait),
			logger.Error(err),
		)
		if err := f.wait(ctx, wait); err != nil {
			return nil, model.FetchError(err, url, attempt+1, lastStatus)
		}
	}
	return nil, model.FetchError(lastErr, url, f.maxAttempts, lastStatus)
}

func (f *Fetcher) wait(ctx context.Context, d time.Duration) error {
	f.metrics.RecordBackoff(d.Seconds())
	return f.sleep(ctx, d)
}

// do performs one attempt. A non-nil error means the attempt failed; status
// is 0 for transport errors.
func (f *Fetcher) do(ctx context.Context, url string) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "transport")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, resp.StatusCode, retryAfter, errors.Newf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, 0, errors.Wrap(err, "read body")
	}
	if !json.Valid(body) {
		return nil, resp.StatusCode, 0, errors.New("response body is not JSON")
	}
	return body, resp.StatusCode, 0, nil
}

// extract finds MRData and its sub-table. ok is false when either is missing.
func extract(body []byte) (model.Payload, bool) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return model.Payload{}, false
	}
	raw, ok := root[rootKey]
	if !ok {
		return model.Payload{}, false
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.Payload{}, false
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasSuffix(k, tableSuffix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return model.Payload{}, false
	}
	sort.Strings(keys)

	p := model.Payload{Table: keys[0], Raw: data[keys[0]]}
	if t, ok := data["total"]; ok {
		var s string
		if json.Unmarshal(t, &s) == nil {
			p.Total, _ = strconv.Atoi(s)
		} else {
			_ = json.Unmarshal(t, &p.Total)
		}
	}
	return p, true
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func outcome(status int) string {
	switch {
	case status == 0:
		return "transport_error"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	case status == http.StatusOK:
		return "bad_body"
	default:
		return "client_error"
	}
}
