package main

import (
	"context"
	"flag"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"

	"github.com/grafana/sqlite-datasource/pkg/app"
	"github.com/grafana/sqlite-datasource/pkg/cfg"
	util_log "github.com/grafana/sqlite-datasource/pkg/util/log"
)

// serveCommand runs the resource server in the foreground.
type serveCommand struct {
	opts *globalOptions
	args []string
}

func addServeCommand(kapp *kingpin.Application, opts *globalOptions) {
	cmd := &serveCommand{opts: opts}
	c := kapp.Command("serve", "Serve the HTTP API. Arguments after -- are server flags, e.g. -- -config.file=config.yaml.")
	c.Arg("flags", "Server flags.").StringsVar(&cmd.args)
	c.Action(cmd.run)
}

func (cmd *serveCommand) run(_ *kingpin.ParseContext) error {
	var config app.Config
	args := cmd.args
	if cmd.opts.variablesFile != "" {
		args = append([]string{"-variables.file=" + cmd.opts.variablesFile}, args...)
	}
	if err := cfg.DefaultUnmarshal(&config, args, flag.NewFlagSet("serve", flag.ContinueOnError)); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.SystemValues == nil {
		config.SystemValues = cmd.opts.systemValues
	}

	util_log.InitLogger(config.LogLevel)
	a, err := app.New(config, nil, util_log.Logger)
	if err != nil {
		return err
	}

	level.Info(util_log.Logger).Log("msg", "Starting sqlite data source", "version", version.Info())
	return a.Run(context.Background())
}
