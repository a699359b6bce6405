package app

import (
	"flag"

	"github.com/grafana/dskit/flagext"
	dslog "github.com/grafana/dskit/log"
	"github.com/pkg/errors"

	"github.com/grafana/sqlite-datasource/pkg/datasource"
	"github.com/grafana/sqlite-datasource/pkg/server"
	util_flagext "github.com/grafana/sqlite-datasource/pkg/util/flagext"
)

// Config is the root config of the data source service.
type Config struct {
	ConfigFile   util_flagext.ConfigFiles `yaml:"-"`
	ExpandEnv    bool                     `yaml:"-"`
	PrintVersion bool                     `yaml:"-"`
	VerifyConfig bool                     `yaml:"-"`
	PrintConfig  bool                     `yaml:"-"`

	LogLevel dslog.Level `yaml:"log_level"`

	// VariablesFile holds the dashboard variables. WatchVariables reloads it
	// whenever it changes.
	VariablesFile  string `yaml:"variables_file"`
	WatchVariables bool   `yaml:"watch_variables"`
	// SystemValues maps a variable's current value to the value substituted
	// for it, e.g. a host provided placeholder.
	SystemValues map[string]string `yaml:"system_values"`

	Server     server.Config     `yaml:"server"`
	DataSource datasource.Config `yaml:"datasource"`
}

// RegisterFlags registers flags.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.Var(&c.ConfigFile, "config.file", "yaml file(s) to load")
	f.BoolVar(&c.ExpandEnv, "config.expand-env", false, "Expands ${var} in config according to the values of the environment variables.")
	f.BoolVar(&c.PrintVersion, "version", false, "Print this builds version information")
	f.BoolVar(&c.VerifyConfig, "verify-config", false, "Verify config file and exits")
	f.BoolVar(&c.PrintConfig, "print-config-stderr", false, "Dump the entire config object to stderr")

	c.LogLevel.RegisterFlags(f)
	f.StringVar(&c.VariablesFile, "variables.file", "", "YAML file with the dashboard variables.")
	f.BoolVar(&c.WatchVariables, "variables.watch", true, "Reload the variables file when it changes.")

	c.Server.RegisterFlags(f)
	c.DataSource.RegisterFlags(f)
}

// Clone takes advantage of pass-by-value semantics to return a distinct *Config.
// This is primarily used to parse a different flag set without mutating the original *Config.
func (c *Config) Clone() flagext.Registerer {
	return func(c Config) *Config {
		return &c
	}(*c)
}

// Validate the config and returns an error if the validation
// doesn't pass
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return errors.Wrap(err, "invalid server config")
	}
	if err := c.DataSource.Validate(); err != nil {
		return errors.Wrap(err, "invalid datasource config")
	}
	if c.WatchVariables && c.VariablesFile == "" {
		c.WatchVariables = false
	}
	return nil
}

// NewDefaultConfig returns the config with every flag at its default value.
func NewDefaultConfig() *Config {
	c := &Config{}
	fs := flag.NewFlagSet("defaults", flag.ContinueOnError)
	c.RegisterFlags(fs)
	return c
}
