package datasource

import (
	"flag"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"github.com/prometheus/common/config"

	util_flagext "github.com/grafana/sqlite-datasource/pkg/util/flagext"
)

// Config configures a DataSource.
type Config struct {
	// CacheSize is the number of option lists kept per final query text and time range. 0 disables caching.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	Client ClientConfig `yaml:"client"`
}

// RegisterFlags registers flags.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&c.CacheSize, "datasource.cache-size", 0, "Number of variable option lists to cache. 0 disables the cache.")
	f.DurationVar(&c.CacheTTL, "datasource.cache-ttl", time.Minute, "How long a cached option list stays valid.")
	c.Client.RegisterFlagsWithPrefix("datasource.", f)
}

// Validate validates the config.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return errors.New("datasource.cache-size must not be negative")
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return errors.New("datasource.cache-ttl must be positive when the cache is enabled")
	}
	return c.Client.Validate()
}

// ClientConfig describes the HTTP connection to the query endpoint.
type ClientConfig struct {
	URL       flagext.URLValue `yaml:"url"`
	QueryPath string           `yaml:"query_path"`
	OrgID     string           `yaml:"org_id"`
	Timeout   time.Duration    `yaml:"timeout"`

	Username string         `yaml:"username"`
	Password flagext.Secret `yaml:"password"`

	MaxResponseSize util_flagext.ByteSize `yaml:"max_response_size"`
	BackoffConfig   backoff.Config        `yaml:"backoff_config"`
	Breaker         BreakerConfig         `yaml:"circuit_breaker"`

	Client config.HTTPClientConfig `yaml:",inline"`
}

// RegisterFlagsWithPrefix registers flags where every name is prefixed by
// prefix. If prefix is a non-empty string, prefix should end with a period.
func (c *ClientConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.Var(&c.URL, prefix+"client.url", "Base URL of the query endpoint.")
	f.StringVar(&c.QueryPath, prefix+"client.query-path", "/api/ds/query", "Path of the query endpoint, relative to the URL.")
	f.StringVar(&c.OrgID, prefix+"client.org-id", "", "Organization ID sent with every request.")
	f.DurationVar(&c.Timeout, prefix+"client.timeout", 30*time.Second, "Maximum time to wait for the query endpoint to respond.")
	f.StringVar(&c.Username, prefix+"client.username", "", "Username for basic authentication.")
	f.Var(&c.Password, prefix+"client.password", "Password for basic authentication.")
	c.MaxResponseSize = util_flagext.ByteSize(10 * datasize.MB)
	f.Var(&c.MaxResponseSize, prefix+"client.max-response-size", "Maximum size of a query response body.")
	c.BackoffConfig.RegisterFlagsWithPrefix(prefix+"client", f)
	c.Breaker.RegisterFlagsWithPrefix(prefix+"client.", f)

	c.Client = config.DefaultHTTPClientConfig
}

// Validate validates the client config.
func (c *ClientConfig) Validate() error {
	if c.URL.URL == nil {
		return errors.New("client.url is required")
	}
	if c.Timeout < 0 {
		return errors.New("client.timeout must not be negative")
	}
	if err := c.Breaker.Validate(); err != nil {
		return err
	}
	return c.Client.Validate()
}

// BreakerConfig configures the circuit breaker in front of the query endpoint.
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint          `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// RegisterFlagsWithPrefix registers flags.
func (c *BreakerConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&c.Enabled, prefix+"circuit-breaker.enabled", false, "Stop sending queries for a while after repeated failures.")
	f.UintVar(&c.ConsecutiveFailures, prefix+"circuit-breaker.consecutive-failures", 5, "Consecutive failed requests that open the circuit breaker.")
	f.DurationVar(&c.OpenTimeout, prefix+"circuit-breaker.open-timeout", 30*time.Second, "How long the circuit breaker stays open before letting a trial request through.")
}

// Validate validates the breaker config.
func (c *BreakerConfig) Validate() error {
	if c.Enabled && c.ConsecutiveFailures == 0 {
		return errors.New("client.circuit-breaker.consecutive-failures must be positive")
	}
	return nil
}
