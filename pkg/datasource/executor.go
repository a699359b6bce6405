package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/common/config"
	"github.com/prometheus/common/version"
	"github.com/sony/gobreaker/v2"

	"github.com/grafana/sqlite-datasource/pkg/macros"
	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

const orgIDHeader = "X-Grafana-Org-Id"

var userAgent = fmt.Sprintf("sqlite-datasource/%s", version.Version)

// Query is a single query target sent to the backend.
type Query struct {
	RefID        string `json:"refId"`
	RawQueryText string `json:"rawQueryText"`
	QueryText    string `json:"queryText"`
}

// QueryRequest is the body sent to the query endpoint. From and To are epoch
// milliseconds and are omitted without a time range.
type QueryRequest struct {
	Queries []Query `json:"queries"`
	From    string  `json:"from,omitempty"`
	To      string  `json:"to,omitempty"`
}

// NewQueryRequest builds the request for a single query.
func NewQueryRequest(q Query, tr *macros.TimeRange) QueryRequest {
	req := QueryRequest{Queries: []Query{q}}
	if tr != nil {
		req.From = strconv.FormatInt(tr.From.UnixMilli(), 10)
		req.To = strconv.FormatInt(tr.To.UnixMilli(), 10)
	}
	return req
}

// StatusError is a non-2xx answer of the query endpoint without an error payload.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error response from server: %s (%d)", e.Body, e.Code)
}

// Retryable reports whether the request may succeed when sent again.
func (e *StatusError) Retryable() bool {
	return e.Code/100 == 5 || e.Code == http.StatusTooManyRequests
}

// Executor sends queries to the backend and returns its raw response.
type Executor interface {
	Execute(ctx context.Context, req QueryRequest) (*metricfind.Response, error)
}

// HTTPExecutor posts queries to an HTTP query endpoint.
type HTTPExecutor struct {
	cfg      ClientConfig
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[*metricfind.Response]
	logger   log.Logger
}

// NewHTTPExecutor makes a new HTTPExecutor.
func NewHTTPExecutor(cfg ClientConfig, logger log.Logger) (*HTTPExecutor, error) {
	if cfg.URL.URL == nil {
		return nil, errors.New("no query endpoint URL configured")
	}

	clientConfig := cfg.Client
	if cfg.Username != "" && clientConfig.BasicAuth == nil {
		clientConfig.BasicAuth = &config.BasicAuth{
			Username: cfg.Username,
			Password: config.Secret(cfg.Password.String()),
		}
	}

	client, err := config.NewClientFromConfig(clientConfig, "sqlite-datasource")
	if err != nil {
		return nil, errors.Wrap(err, "creating http client")
	}
	client.Timeout = cfg.Timeout

	e := &HTTPExecutor{
		cfg:      cfg,
		endpoint: buildURL(cfg.URL.URL, cfg.QueryPath),
		client:   client,
		logger:   logger,
	}
	if cfg.Breaker.Enabled {
		e.breaker = newBreaker(e.endpoint, cfg.Breaker, logger)
	}
	return e, nil
}

func newBreaker(name string, cfg BreakerConfig, logger log.Logger) *gobreaker.CircuitBreaker[*metricfind.Response] {
	return gobreaker.NewCircuitBreaker[*metricfind.Response](gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.ConsecutiveFailures)
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			// the endpoint answered; the request itself was rejected
			var statusErr *StatusError
			return errors.As(err, &statusErr) && !statusErr.Retryable()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level.Warn(logger).Log("msg", "circuit breaker changed state", "endpoint", name, "from", from, "to", to)
		},
	})
}

func buildURL(base *url.URL, p string) string {
	u := *base
	u.Path = path.Join(u.Path, p)
	return u.String()
}

// Execute posts req, retrying transport failures and 5xx answers with backoff.
// An error payload in the response is not an error of Execute. With the
// circuit breaker open, Execute fails without contacting the endpoint.
func (e *HTTPExecutor) Execute(ctx context.Context, req QueryRequest) (*metricfind.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding query request")
	}

	if e.breaker == nil {
		return e.execute(ctx, body)
	}
	return e.breaker.Execute(func() (*metricfind.Response, error) {
		return e.execute(ctx, body)
	})
}

func (e *HTTPExecutor) execute(ctx context.Context, body []byte) (*metricfind.Response, error) {
	var lastErr error
	boff := backoff.New(ctx, e.cfg.BackoffConfig)
	for boff.Ongoing() {
		resp, retry, err := e.do(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		level.Warn(e.logger).Log("msg", "query request failed, retrying", "endpoint", e.endpoint, "retries", boff.NumRetries(), "err", err)
		boff.Wait()
	}

	if lastErr == nil {
		lastErr = boff.Err()
	}
	return nil, lastErr
}

func (e *HTTPExecutor) do(ctx context.Context, body []byte) (resp *metricfind.Response, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if e.cfg.OrgID != "" {
		req.Header.Set(orgIDHeader, e.cfg.OrgID)
	}

	httpResp, err := e.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			level.Warn(e.logger).Log("msg", "error closing body", "err", err)
		}
	}()

	buf, err := readLimited(httpResp.Body, int64(e.cfg.MaxResponseSize))
	if err != nil {
		return nil, false, err
	}

	if httpResp.StatusCode/100 != 2 {
		// error payloads are surfaced as backend errors
		if parsed, perr := metricfind.ParseResponse(buf); perr == nil && parsed != nil && parsed.Error != nil {
			return parsed, false, nil
		}
		statusErr := &StatusError{Code: httpResp.StatusCode, Body: strings.TrimSpace(string(buf))}
		return nil, statusErr.Retryable(), statusErr
	}

	resp, err = metricfind.ParseResponse(buf)
	return resp, false, err
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	buf, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > limit {
		return nil, fmt.Errorf("response body exceeds the limit of %s", datasize.ByteSize(limit).HumanReadable())
	}
	return buf, nil
}
