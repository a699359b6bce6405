package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	"gopkg.in/yaml.v2"

	"github.com/grafana/sqlite-datasource/pkg/app"
	"github.com/grafana/sqlite-datasource/pkg/cfg"
	util_log "github.com/grafana/sqlite-datasource/pkg/util/log"
)

func main() {
	var config app.Config

	if err := cfg.DefaultUnmarshal(&config, os.Args[1:], flag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if config.PrintVersion {
		fmt.Println(version.Print("sqlite-datasource"))
		os.Exit(0)
	}

	// Init the logger which will honor the log level set in the config
	util_log.InitLogger(config.LogLevel)

	// Validate the config once both the config file has been loaded
	// and CLI flags parsed.
	if err := config.Validate(); err != nil {
		level.Error(util_log.Logger).Log("msg", "validating config", "err", err.Error())
		os.Exit(1)
	}

	if config.VerifyConfig {
		level.Info(util_log.Logger).Log("msg", "config is valid")
		os.Exit(0)
	}

	if config.PrintConfig {
		if err := printConfig(&config); err != nil {
			level.Error(util_log.Logger).Log("msg", "failed to print config to stderr", "err", err.Error())
		}
	}

	a, err := app.New(config, nil, util_log.Logger)
	util_log.CheckFatal("initialising sqlite data source", err)

	level.Info(util_log.Logger).Log("msg", "Starting sqlite data source", "version", version.Info())

	err = a.Run(context.Background())
	util_log.CheckFatal("running sqlite data source", err)
}

func printConfig(config *app.Config) error {
	lc, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "---\n# sqlite data source config\n%s\n", string(lc))
	return nil
}
