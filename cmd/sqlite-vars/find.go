package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/sqlite-datasource/pkg/datasource"
	"github.com/grafana/sqlite-datasource/pkg/macros"
	"github.com/grafana/sqlite-datasource/pkg/output"
	"github.com/grafana/sqlite-datasource/pkg/templating"
	util_flagext "github.com/grafana/sqlite-datasource/pkg/util/flagext"
)

// findCommand resolves the options of a variable query against a data source.
type findCommand struct {
	opts *globalOptions

	query      string
	client     datasource.ClientConfig
	url        string
	password   string
	scopedVars map[string]string
	from, to   string
}

func addFindCommand(app *kingpin.Application, opts *globalOptions) {
	cmd := &findCommand{opts: opts}
	c := app.Command("find", "Run a variable query and print the resulting options.")
	c.Arg("query", "Variable query.").Required().StringVar(&cmd.query)
	c.Flag("addr", "Base URL of the Grafana instance or query endpoint.").Envar("SQLITE_VARS_ADDR").Required().StringVar(&cmd.url)
	c.Flag("query-path", "Path of the query endpoint.").Default("/api/ds/query").StringVar(&cmd.client.QueryPath)
	c.Flag("org-id", "Organization ID sent with the request.").Envar("SQLITE_VARS_ORG_ID").StringVar(&cmd.client.OrgID)
	c.Flag("username", "Username for HTTP basic auth.").Envar("SQLITE_VARS_USERNAME").StringVar(&cmd.client.Username)
	c.Flag("password", "Password for HTTP basic auth.").Envar("SQLITE_VARS_PASSWORD").StringVar(&cmd.password)
	c.Flag("timeout", "Request timeout.").Default("30s").DurationVar(&cmd.client.Timeout)
	c.Flag("retries", "Number of attempts for failed requests.").Default("3").IntVar(&cmd.client.BackoffConfig.MaxRetries)
	c.Flag("var", "Scoped variable overriding the variables file.").PlaceHolder("NAME=VALUE").StringMapVar(&cmd.scopedVars)
	c.Flag("from", "Start of the time range, RFC3339 or epoch milliseconds.").StringVar(&cmd.from)
	c.Flag("to", "End of the time range, RFC3339 or epoch milliseconds.").Default("now").StringVar(&cmd.to)
	c.Action(cmd.run)
}

func (cmd *findCommand) run(_ *kingpin.ParseContext) error {
	logger := cmd.opts.logger()

	if err := cmd.client.URL.Set(cmd.url); err != nil {
		return err
	}
	if err := cmd.client.Password.Set(cmd.password); err != nil {
		return err
	}
	cmd.client.MaxResponseSize = util_flagext.ByteSize(10 << 20)
	cmd.client.BackoffConfig.MinBackoff = 100 * time.Millisecond
	cmd.client.BackoffConfig.MaxBackoff = 5 * time.Second

	exec, err := datasource.NewHTTPExecutor(cmd.client, logger)
	if err != nil {
		return err
	}

	tr, err := parseRange(cmd.from, cmd.to)
	if err != nil {
		return err
	}

	ds := datasource.New(datasource.Config{}, datasource.StaticVariables(cmd.opts.index()), exec, cmd.opts.interpolator(), logger, prometheus.NewRegistry())
	options, err := ds.MetricFindQuery(context.Background(), cmd.query, datasource.FindOptions{
		ScopedVars: toScopedVars(cmd.scopedVars),
		Range:      tr,
	})
	if err != nil {
		return err
	}

	return output.WriteOptions(os.Stdout, cmd.opts.optionOutput(), options)
}

func toScopedVars(vars map[string]string) templating.ScopedVars {
	if len(vars) == 0 {
		return nil
	}
	scoped := make(templating.ScopedVars, len(vars))
	for name, value := range vars {
		scoped[name] = templating.ScopedVar{Text: value, Value: value}
	}
	return scoped
}

// parseRange returns nil when from is empty.
func parseRange(from, to string) (*macros.TimeRange, error) {
	if from == "" {
		return nil, nil
	}
	start, err := parseTime(from)
	if err != nil {
		return nil, err
	}
	end, err := parseTime(to)
	if err != nil {
		return nil, err
	}
	return &macros.TimeRange{From: start, To: end}, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "now" {
		return time.Now(), nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, value)
}
