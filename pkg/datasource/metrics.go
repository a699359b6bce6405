package datasource

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

const (
	statusSuccess           = "success"
	statusEmptyQuery        = "empty_query"
	statusCached            = "cached"
	statusInvalidQuery      = "invalid_query"
	statusTransportError    = "transport_error"
	statusNoResponse        = "no_response"
	statusBackendError      = "backend_error"
	statusMissingTextValue  = "missing_text_value_columns"
	statusTooManyFields     = "too_many_fields"
	statusUnknownDecodeFail = "decode_error"
)

// Metrics instruments variable option queries.
type Metrics struct {
	findQueries  *prometheus.CounterVec
	findDuration prometheus.Histogram
	interpolated prometheus.Counter
}

// NewMetrics registers the data source metrics with r.
func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		findQueries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite_datasource_metric_find_queries_total",
			Help: "Total number of variable option queries by outcome.",
		}, []string{"status"}),
		findDuration: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Name:    "sqlite_datasource_metric_find_duration_seconds",
			Help:    "Time taken to resolve variable option queries against the backend.",
			Buckets: prometheus.DefBuckets,
		}),
		interpolated: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "sqlite_datasource_interpolated_queries_total",
			Help: "Total number of queries that had template variables applied.",
		}),
	}
}

func decodeStatus(err error) string {
	var (
		backendErr *metricfind.BackendError
		missing    *metricfind.MissingTextValueColumnsError
		tooMany    *metricfind.TooManyFieldsError
	)
	switch {
	case errors.Is(err, metricfind.ErrNoResponse):
		return statusNoResponse
	case errors.As(err, &backendErr):
		return statusBackendError
	case errors.As(err, &missing):
		return statusMissingTextValue
	case errors.As(err, &tooMany):
		return statusTooManyFields
	}
	return statusUnknownDecodeFail
}
