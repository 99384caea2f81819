// Package config provides YAML configuration file loading and validation.
// It handles environment variable expansion and default values, and rejects
// configurations a backend could not run with.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache kinds.
const (
	CacheNone   = "none"
	CacheLocal  = "local"
	CacheLocked = "locked"
	CacheMulti  = "multi"
)

// Config represents the root configuration structure loaded from YAML.
type Config struct {
	Gateway  Gateway `yaml:"gateway"`
	Network  Network `yaml:"network"`
	Wallet   Wallet  `yaml:"wallet"`
	Cache    Cache   `yaml:"cache"`
	Events   Events  `yaml:"events"`
	LogLevel string  `yaml:"log_level"`
}

// Gateway is the proxy node the Network and Simulation backends talk to.
type Gateway struct {
	URL        string        `yaml:"url"`         // supports ${VAR} env expansion
	Timeout    time.Duration `yaml:"timeout"`     // HTTP request timeout (e.g., "10s")
	MaxRetries int           `yaml:"max_retries"` // GET retries; submissions are never retried
}

// Network holds chain parameters and how submitted transactions are awaited.
type Network struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	GasPrice     uint64        `yaml:"gas_price"`    // 0 uses the network minimum
	ChainRound   time.Duration `yaml:"chain_round"`  // block duration, for caching until the next block
	GenesisTime  int64         `yaml:"genesis_time"` // unix seconds of round 0; 0 reads it and the round from the gateway
}

// Genesis returns the start of round 0.
func (n Network) Genesis() time.Time { return time.Unix(n.GenesisTime, 0) }

// Wallet locates the signing key.
type Wallet struct {
	PEM string `yaml:"pem"`
}

// Cache selects the query cache.
type Cache struct {
	Kind          string        `yaml:"kind"`
	Duration      time.Duration `yaml:"duration"` // 0 caches until the next block
	SweepInterval time.Duration `yaml:"sweep_interval"`
	RedisAddr     string        `yaml:"redis_addr"` // second tier of a multi cache when set
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
}

// Events is the index searched for contract events.
type Events struct {
	URL   string `yaml:"url"`
	Index string `yaml:"index"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Gateway.URL == "" {
		c.Gateway.URL = "https://devnet-gateway.multiversx.com"
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	if c.Network.PollInterval == 0 {
		c.Network.PollInterval = time.Second
	}
	if c.Network.PollTimeout == 0 {
		c.Network.PollTimeout = time.Minute
	}
	if c.Network.ChainRound == 0 {
		c.Network.ChainRound = 6 * time.Second
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = CacheNone
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = 30 * time.Second
	}
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = "novax:"
	}
	if c.Events.Index == "" {
		c.Events.Index = "events"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration after defaults are applied.
// It may emit warnings (to stderr) for suspicious values but does not fail on warnings.
func (c *Config) Validate() error {
	if err := validateURL("gateway.url", c.Gateway.URL); err != nil {
		return err
	}
	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must be > 0")
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway.max_retries must be >= 0")
	}
	if c.Network.PollInterval <= 0 || c.Network.PollTimeout <= 0 {
		return fmt.Errorf("network.poll_interval and network.poll_timeout must be > 0")
	}
	if c.Network.PollInterval > c.Network.PollTimeout {
		return fmt.Errorf("network.poll_interval (%s) exceeds network.poll_timeout (%s)", c.Network.PollInterval, c.Network.PollTimeout)
	}
	if c.Network.ChainRound <= 0 {
		return fmt.Errorf("network.chain_round must be > 0")
	}

	switch c.Cache.Kind {
	case CacheNone, CacheLocal, CacheLocked:
	case CacheMulti:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for cache kind %q", CacheMulti)
		}
	default:
		return fmt.Errorf("cache.kind %q is not one of none, local, locked, multi", c.Cache.Kind)
	}
	if c.Cache.Duration < 0 {
		return fmt.Errorf("cache.duration must be >= 0")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be > 0")
	}

	if c.Events.URL != "" {
		if err := validateURL("events.url", c.Events.URL); err != nil {
			return err
		}
	}

	const low = 500 * time.Millisecond
	if c.Gateway.Timeout > 0 && c.Gateway.Timeout < low {
		fmt.Fprintf(os.Stderr, "Warning: gateway timeout is very low (%s); requests may fail under normal network jitter\n", c.Gateway.Timeout)
	}
	if c.Network.PollTimeout < c.Network.ChainRound {
		fmt.Fprintf(os.Stderr, "Warning: poll timeout (%s) is shorter than a round (%s); transactions will rarely be seen included\n", c.Network.PollTimeout, c.Network.ChainRound)
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", field, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: invalid url (missing scheme or host)", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: invalid url scheme %q (expected http or https)", field, u.Scheme)
	}
	return nil
}

// Load reads and parses a YAML configuration file, expanding environment
// variables, applying defaults and validating the result.
//
// Environment variable expansion:
//
//	Values can use ${VAR} syntax which will be expanded using os.ExpandEnv().
//	Example: pem: ${NOVAX_WALLET_PEM}
//
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(os.ExpandEnv(string(data)))
}

// Parse parses YAML text that has already been expanded.
func Parse(text string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
