package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"

	"github.com/grafana/sqlite-datasource/pkg/datasource"
	util_log "github.com/grafana/sqlite-datasource/pkg/util/log"
)

// Server exposes a DataSource over HTTP.
type Server struct {
	cfg    Config
	ds     *datasource.DataSource
	logger log.Logger

	router          *mux.Router
	requestDuration *prometheus.HistogramVec
	ready           atomic.Bool
}

// New makes a new Server. gatherer backs the /metrics endpoint and logLevel,
// when set, is exposed at /log_level.
func New(cfg Config, ds *datasource.DataSource, logLevel *dslog.Level, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		ds:     ds,
		logger: logger,
		router: mux.NewRouter(),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sqlite_datasource_request_duration_seconds",
			Help:    "Time (in seconds) spent serving HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}

	s.handle("interpolate", "/api/interpolate", s.interpolateHandler, http.MethodPost)
	s.handle("metric_find", "/api/metric-find", s.metricFindHandler, http.MethodPost)
	s.handle("variables", "/api/variables", s.variablesHandler, http.MethodGet)
	s.handle("health", "/api/health", s.healthHandler, http.MethodGet)
	s.handle("ready", "/ready", s.readyHandler, http.MethodGet)
	if logLevel != nil {
		s.handle("log_level", "/log_level", util_log.LevelHandler(logLevel), http.MethodGet, http.MethodPost)
	}
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) handle(route, path string, h http.HandlerFunc, methods ...string) {
	instrumented := promhttp.InstrumentHandlerDuration(
		s.requestDuration.MustCurryWith(prometheus.Labels{"route": route}),
		gziphandler.GzipHandler(s.limitBody(h)),
	)
	s.router.Handle(path, instrumented).Methods(methods...)
}

func (s *Server) limitBody(h http.Handler) http.Handler {
	if s.cfg.MaxRequestBodySize == 0 {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxRequestBodySize))
		h.ServeHTTP(w, r)
	})
}

// Handle registers an additional instrumented endpoint.
func (s *Server) Handle(route, path string, h http.HandlerFunc, methods ...string) {
	s.handle(route, path, h, methods...)
}

// Handler returns the HTTP handler of all endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady marks the server ready or not ready for traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.HTTPListenAddress, strconv.Itoa(s.cfg.HTTPListenPort))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return s.Serve(ctx, lis)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "server listening on addresses", "http", lis.Addr().String())
		errs <- srv.Serve(lis)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.SetReady(false)
	timeout := s.cfg.GracefulShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
