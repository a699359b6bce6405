package datasource

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/sqlite-datasource/pkg/macros"
	"github.com/grafana/sqlite-datasource/pkg/metricfind"
	"github.com/grafana/sqlite-datasource/pkg/templating"
)

const (
	metricFindRefID  = "metricFindQuery"
	healthCheckRefID = "healthCheck"
	healthCheckQuery = "SELECT 1"
)

// VariableSource provides the current variable snapshot of the host.
type VariableSource interface {
	Index() templating.Index
}

// StaticVariables is a VariableSource over a fixed index.
type StaticVariables templating.Index

// Index implements VariableSource.
func (s StaticVariables) Index() templating.Index {
	return templating.Index(s)
}

// FindOptions are the per call inputs of MetricFindQuery.
type FindOptions struct {
	ScopedVars templating.ScopedVars
	// Range, when set, expands time variables and macros and is sent along
	// with the query.
	Range *macros.TimeRange
}

// HealthStatus is the outcome of CheckHealth.
type HealthStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// DataSource turns raw query text into executable queries and resolves
// variable option queries.
type DataSource struct {
	cfg          Config
	vars         VariableSource
	executor     Executor
	interpolator *templating.Interpolator
	cache        *expirable.LRU[string, []metricfind.OptionPair]
	metrics      *Metrics
	logger       log.Logger
}

// New makes a new DataSource.
func New(cfg Config, vars VariableSource, executor Executor, interpolator *templating.Interpolator, logger log.Logger, reg prometheus.Registerer) *DataSource {
	if interpolator == nil {
		interpolator = templating.NewInterpolator()
	}

	ds := &DataSource{
		cfg:          cfg,
		vars:         vars,
		executor:     executor,
		interpolator: interpolator,
		metrics:      NewMetrics(reg),
		logger:       logger,
	}
	if cfg.CacheSize > 0 {
		ds.cache = expirable.NewLRU[string, []metricfind.OptionPair](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return ds
}

// ApplyTemplateVariables sets the query text to the raw query text with all
// template variables replaced.
func (d *DataSource) ApplyTemplateVariables(q Query, scopedVars templating.ScopedVars) Query {
	q.QueryText = d.Interpolate(q.RawQueryText, scopedVars, templating.Identity())
	return q
}

// Interpolate replaces the template variables in text against the current
// variables. format applies to placeholders without an explicit specifier.
func (d *DataSource) Interpolate(text string, scopedVars templating.ScopedVars, format templating.Format) string {
	d.metrics.interpolated.Inc()
	return d.interpolator.InterpolateWithFormat(text, d.vars.Index(), scopedVars, format)
}

// BuildQuery applies template variables and, when tr is set, the time range
// variables and macros.
func (d *DataSource) BuildQuery(q Query, scopedVars templating.ScopedVars, tr *macros.TimeRange) (Query, macros.Result, error) {
	q = d.ApplyTemplateVariables(q, scopedVars)
	if tr == nil {
		return q, macros.Result{Query: q.QueryText}, nil
	}

	res, err := macros.Apply(macros.ReplaceTimeVariables(q.QueryText, *tr), *tr)
	if err != nil {
		return q, macros.Result{}, errors.Wrap(err, "applying macros")
	}
	q.QueryText = res.Query
	return q, res, nil
}

// MetricFindQuery resolves the options of a query variable. An empty query
// returns no options without contacting the backend.
func (d *DataSource) MetricFindQuery(ctx context.Context, query string, opts FindOptions) ([]metricfind.OptionPair, error) {
	if query == "" {
		d.metrics.findQueries.WithLabelValues(statusEmptyQuery).Inc()
		return []metricfind.OptionPair{}, nil
	}

	q, _, err := d.BuildQuery(Query{
		RefID:        metricFindRefID,
		RawQueryText: query,
		QueryText:    query,
	}, opts.ScopedVars, opts.Range)
	if err != nil {
		d.metrics.findQueries.WithLabelValues(statusInvalidQuery).Inc()
		return nil, err
	}

	cacheKey := optionsCacheKey(q.QueryText, opts.Range)
	if d.cache != nil {
		if options, ok := d.cache.Get(cacheKey); ok {
			d.metrics.findQueries.WithLabelValues(statusCached).Inc()
			return slices.Clone(options), nil
		}
	}

	start := time.Now()
	resp, err := d.executor.Execute(ctx, NewQueryRequest(q, opts.Range))
	d.metrics.findDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		d.metrics.findQueries.WithLabelValues(statusTransportError).Inc()
		level.Error(d.logger).Log("msg", "variable query failed", "query", q.QueryText, "err", err)
		return nil, errors.Wrap(err, "executing variable query")
	}

	options, err := metricfind.Decode(resp)
	if err != nil {
		d.metrics.findQueries.WithLabelValues(decodeStatus(err)).Inc()
		level.Warn(d.logger).Log("msg", "could not decode variable query result", "query", q.QueryText, "err", err)
		return nil, err
	}

	d.metrics.findQueries.WithLabelValues(statusSuccess).Inc()
	level.Debug(d.logger).Log("msg", "resolved variable options", "query", q.QueryText, "options", len(options))
	if d.cache != nil {
		d.cache.Add(cacheKey, slices.Clone(options))
	}
	return options, nil
}

// optionsCacheKey keys cached options by the final query text and, when
// given, the time range sent along with it.
func optionsCacheKey(query string, tr *macros.TimeRange) string {
	h := xxhash.New()
	_, _ = h.WriteString(query)
	if tr != nil {
		_, _ = h.WriteString("\x00" + strconv.FormatInt(tr.From.UnixMilli(), 10) + "-" + strconv.FormatInt(tr.To.UnixMilli(), 10))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// PurgeCache drops all cached option lists.
func (d *DataSource) PurgeCache() {
	if d.cache != nil {
		d.cache.Purge()
	}
}

// CheckHealth verifies the backend answers a trivial query.
func (d *DataSource) CheckHealth(ctx context.Context) HealthStatus {
	resp, err := d.executor.Execute(ctx, NewQueryRequest(Query{
		RefID:        healthCheckRefID,
		RawQueryText: healthCheckQuery,
		QueryText:    healthCheckQuery,
	}, nil))
	if err == nil && resp == nil {
		err = metricfind.ErrNoResponse
	}
	if err == nil && resp.Error != nil {
		err = &metricfind.BackendError{Message: resp.Error.Message}
	}
	if err != nil {
		level.Warn(d.logger).Log("msg", "health check failed", "err", err)
		return HealthStatus{Message: fmt.Sprintf("error checking db: %s", err)}
	}
	return HealthStatus{OK: true, Message: "Data source is working"}
}

// Variables returns the current variable snapshot.
func (d *DataSource) Variables() templating.Index {
	return d.vars.Index()
}
