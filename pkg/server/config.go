package server

import (
	"flag"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	util_flagext "github.com/grafana/sqlite-datasource/pkg/util/flagext"
)

// Config configures the resource server.
type Config struct {
	HTTPListenAddress string `yaml:"http_listen_address"`
	HTTPListenPort    int    `yaml:"http_listen_port"`

	ReadTimeout             time.Duration         `yaml:"read_timeout"`
	WriteTimeout            time.Duration         `yaml:"write_timeout"`
	GracefulShutdownTimeout time.Duration         `yaml:"graceful_shutdown_timeout"`
	MaxRequestBodySize      util_flagext.ByteSize `yaml:"max_request_body_size"`
}

// RegisterFlags registers flags.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.HTTPListenAddress, "server.http-listen-address", "", "HTTP server listen address.")
	f.IntVar(&c.HTTPListenPort, "server.http-listen-port", 8095, "HTTP server listen port.")
	f.DurationVar(&c.ReadTimeout, "server.http-read-timeout", 30*time.Second, "Read timeout for HTTP server.")
	f.DurationVar(&c.WriteTimeout, "server.http-write-timeout", 30*time.Second, "Write timeout for HTTP server.")
	f.DurationVar(&c.GracefulShutdownTimeout, "server.graceful-shutdown-timeout", 30*time.Second, "Timeout for graceful shutdowns.")
	c.MaxRequestBodySize = util_flagext.ByteSize(datasize.MB)
	f.Var(&c.MaxRequestBodySize, "server.max-request-body-size", "Maximum size of a request body.")
}

// Validate validates the config.
func (c *Config) Validate() error {
	if c.HTTPListenPort < 0 || c.HTTPListenPort > 65535 {
		return errors.Errorf("server.http-listen-port out of range: %d", c.HTTPListenPort)
	}
	return nil
}
