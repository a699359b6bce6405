package app

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/grafana/sqlite-datasource/pkg/cfg"
	"github.com/grafana/sqlite-datasource/pkg/datasource"
	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

type fakeExecutor struct{}

func (fakeExecutor) Execute(_ context.Context, req datasource.QueryRequest) (*metricfind.Response, error) {
	return &metricfind.Response{Data: []metricfind.Frame{{Fields: []metricfind.Field{
		{Name: "query", Values: []any{req.Queries[0].QueryText}},
	}}}}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadConfig(t *testing.T, args ...string) Config {
	t.Helper()
	var c Config
	require.NoError(t, cfg.DefaultUnmarshal(&c, args, flag.NewFlagSet("test", flag.ContinueOnError)))
	return c
}

func TestConfig_Load(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "variables:\n  - name: table\n    current: metrics\n")
	t.Setenv("TEST_SQLITE_URL", "http://grafana:3000")
	config := writeFile(t, "config.yaml", `
log_level: debug
variables_file: `+vars+`
system_values:
  $__host: grafana.local
server:
  http_listen_port: 9000
datasource:
  cache_size: 10
  client:
    url: ${TEST_SQLITE_URL}
    max_response_size: 2MB
`)

	c := loadConfig(t, "-config.file="+config, "-config.expand-env", "-server.http-listen-port=9001")
	require.NoError(t, c.Validate())

	assert.Equal(t, "debug", c.LogLevel.String())
	assert.Equal(t, vars, c.VariablesFile)
	assert.True(t, c.WatchVariables)
	assert.Equal(t, map[string]string{"$__host": "grafana.local"}, c.SystemValues)
	assert.Equal(t, 9001, c.Server.HTTPListenPort)
	assert.Equal(t, 10, c.DataSource.CacheSize)
	assert.Equal(t, time.Minute, c.DataSource.CacheTTL)
	assert.Equal(t, "http://grafana:3000", c.DataSource.Client.URL.String())
	assert.Equal(t, "/api/ds/query", c.DataSource.Client.QueryPath)
	assert.Equal(t, 2<<20, c.DataSource.Client.MaxResponseSize.Val())
}

func TestConfig_ValidateRequiresURL(t *testing.T) {
	c := loadConfig(t)
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client.url is required")
}

func TestApp(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "variables:\n  - name: host\n    current: $__host\n  - name: table\n    current: metrics\n")
	c := loadConfig(t, "-variables.file="+vars, "-datasource.client.url=http://localhost")
	c.SystemValues = map[string]string{"$__host": "grafana.local"}

	a, err := New(c, fakeExecutor{}, log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, a.Store.Index().Len())

	options, err := a.DataSource.MetricFindQuery(context.Background(), "SELECT * FROM $table WHERE h = '$host'", datasource.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []metricfind.OptionPair{{Text: "SELECT * FROM metrics WHERE h = 'grafana.local'"}}, options)

	req := httptest.NewRequest(http.MethodGet, "/config?mode=diff", nil)
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "variables_file: "+vars)
	assert.NotContains(t, rec.Body.String(), "cache_ttl")

	rec = httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "sqlite_datasource_variables 2")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "variables: []\n")
	c := loadConfig(t, "-variables.file="+vars, "-datasource.client.url=http://localhost", "-server.http-listen-address=127.0.0.1", "-server.http-listen-port=0")

	a, err := New(c, fakeExecutor{}, log.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- a.Run(ctx)
	}()

	// the variables file is watched while running
	require.Eventually(t, func() bool {
		if err := os.WriteFile(vars, []byte("variables:\n  - name: a\n    current: b\n"), 0o600); err != nil {
			return false
		}
		return a.Store.Index().Len() == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

type countingExecutor struct {
	calls atomic.Int32
}

func (e *countingExecutor) Execute(ctx context.Context, req datasource.QueryRequest) (*metricfind.Response, error) {
	e.calls.Inc()
	return fakeExecutor{}.Execute(ctx, req)
}

func TestApp_ReloadPurgesOptionCache(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "variables:\n  - name: table\n    current: metrics\n")
	c := loadConfig(t, "-variables.file="+vars, "-datasource.client.url=http://localhost", "-datasource.cache-size=10",
		"-server.http-listen-address=127.0.0.1", "-server.http-listen-port=0", "-variables.watch=false")

	exec := &countingExecutor{}
	a, err := New(c, exec, log.NewNopLogger())
	require.NoError(t, err)

	find := func() {
		_, err := a.DataSource.MetricFindQuery(context.Background(), "SELECT name FROM tables", datasource.FindOptions{})
		require.NoError(t, err)
	}
	find()
	find()
	require.Equal(t, int32(1), exec.calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- a.Run(ctx)
	}()

	// the query text does not change, only the reload invalidates the cached options
	require.Eventually(t, func() bool {
		a.Store.Update(nil)
		_, err := a.DataSource.MetricFindQuery(context.Background(), "SELECT name FROM tables", datasource.FindOptions{})
		return err == nil && exec.calls.Load() > 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestNew_InvalidVariablesFile(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "variables: [{name: a}, {name: a}]\n")
	c := loadConfig(t, "-variables.file="+vars)
	_, err := New(c, fakeExecutor{}, log.NewNopLogger())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "duplicate variable"))
}

func TestNew_DefaultExecutorNeedsURL(t *testing.T) {
	_, err := New(loadConfig(t), nil, log.NewNopLogger())
	require.Error(t, err)
}
