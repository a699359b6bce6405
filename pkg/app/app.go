package app

import (
	"context"
	"errors"
	"net/http"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"

	"github.com/grafana/sqlite-datasource/pkg/datasource"
	"github.com/grafana/sqlite-datasource/pkg/server"
	"github.com/grafana/sqlite-datasource/pkg/templating"
	"github.com/grafana/sqlite-datasource/pkg/varstore"
)

// App is the root datastructure of the data source service.
type App struct {
	Cfg Config

	Registry   *prometheus.Registry
	Store      *varstore.Store
	Executor   datasource.Executor
	DataSource *datasource.DataSource
	Server     *server.Server

	logger log.Logger
}

// New makes a new App. A nil executor uses an HTTPExecutor built from the
// datasource client config.
func New(cfg Config, executor datasource.Executor, logger log.Logger) (*App, error) {
	a := &App{
		Cfg:      cfg,
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("sqlite_datasource"),
	)

	a.Store = varstore.New(logger, a.Registry)
	if cfg.VariablesFile != "" {
		if err := a.Store.LoadFile(cfg.VariablesFile); err != nil {
			return nil, err
		}
	}

	if executor == nil {
		httpExecutor, err := datasource.NewHTTPExecutor(cfg.DataSource.Client, logger)
		if err != nil {
			return nil, err
		}
		executor = httpExecutor
	}
	a.Executor = executor

	opts := make([]templating.InterpolatorOption, 0, len(cfg.SystemValues))
	for key, value := range cfg.SystemValues {
		opts = append(opts, templating.WithSystemValue(key, value))
	}

	a.DataSource = datasource.New(cfg.DataSource, a.Store, executor, templating.NewInterpolator(opts...), logger, a.Registry)
	a.Server = server.New(cfg.Server, a.DataSource, &a.Cfg.LogLevel, a.Registry, a.Registry, logger)
	a.Server.Handle("config", "/config", configHandler(&a.Cfg, NewDefaultConfig(), "system_values"), http.MethodGet)
	return a, nil
}

// Run serves requests and watches the variables file until ctx is done or
// the process receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	g.Add(func() error {
		a.Server.SetReady(true)
		return a.Server.Run(ctx)
	}, func(error) {
		cancel()
	})

	if a.Cfg.WatchVariables && a.Cfg.VariablesFile != "" {
		g.Add(func() error {
			return a.Store.Watch(ctx, a.Cfg.VariablesFile)
		}, func(error) {
			cancel()
		})
	}

	updates, unsubscribe := a.Store.Subscribe()
	g.Add(func() error {
		return a.purgeOnReload(ctx, updates)
	}, func(error) {
		unsubscribe()
	})

	level.Info(a.logger).Log("msg", "sqlite data source started")
	err := g.Run()

	var sigErr run.SignalError
	switch {
	case errors.As(err, &sigErr):
		level.Info(a.logger).Log("msg", "received signal, shutting down", "signal", sigErr.Signal)
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

// purgeOnReload drops cached variable options whenever a new variable
// snapshot is installed, since option queries may reference the variables.
func (a *App) purgeOnReload(ctx context.Context, updates <-chan templating.Index) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case idx, ok := <-updates:
			if !ok {
				return nil
			}
			a.DataSource.PurgeCache()
			level.Debug(a.logger).Log("msg", "variables changed, purged option cache", "variables", idx.Len())
		}
	}
}
