package cfg

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"

	util_flagext "github.com/grafana/sqlite-datasource/pkg/util/flagext"
)

// Data is a test config
type Data struct {
	Verbose bool   `yaml:"verbose"`
	Server  Server `yaml:"server"`
	TLS     TLS    `yaml:"tls"`

	ConfigFiles util_flagext.ConfigFiles `yaml:"-"`
	ExpandEnv   bool                     `yaml:"-"`
}

type Server struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type TLS struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// RegisterFlags makes Data implement flagext.Registerer for using flags
func (d *Data) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&d.Verbose, "verbose", false, "")
	fs.IntVar(&d.Server.Port, "server.port", 80, "")
	fs.DurationVar(&d.Server.Timeout, "server.timeout", 60*time.Second, "")

	fs.StringVar(&d.TLS.Cert, "tls.cert", "CERT", "")
	fs.StringVar(&d.TLS.Key, "tls.key", "KEY", "")

	fs.Var(&d.ConfigFiles, "config.file", "")
	fs.BoolVar(&d.ExpandEnv, "config.expand-env", false, "")
}

func (d *Data) Clone() flagext.Registerer {
	return func(d Data) *Data {
		return &d
	}(*d)
}
