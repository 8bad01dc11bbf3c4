// Package application loads service configuration and assembles the
// scanning stack from it. The config file is one YAML document with a
// section per subsystem; a partial file overlays the defaults, and a
// few environment variables override the file for deploy-time
// addresses and secrets.
package application

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tokensentry/tokensentry/internal/infrastructure/db"
	"github.com/tokensentry/tokensentry/internal/infrastructure/httpclient"
	httpapi "github.com/tokensentry/tokensentry/internal/interfaces/http"
	"github.com/tokensentry/tokensentry/internal/risk"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerSection   `yaml:"server"`
	Sources  SourcesSection  `yaml:"sources"`
	Client   ClientSection   `yaml:"client"`
	Cache    CacheSection    `yaml:"cache"`
	Budgets  BudgetsSection  `yaml:"budgets"`
	Database DatabaseSection `yaml:"database"`
	Risk     RiskSection     `yaml:"risk"`
	Log      LogSection      `yaml:"log"`
}

// ServerSection configures the HTTP listener.
type ServerSection struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	ReadTimeoutSeconds    int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds    int    `yaml:"idle_timeout_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// SourcesSection configures the upstream fact sources. RegistryURL is
// optional; without it token names come from the mint account alone.
type SourcesSection struct {
	RPCURL              string  `yaml:"rpc_url"`
	MarketURL           string  `yaml:"market_url"`
	RegistryURL         string  `yaml:"registry_url"`
	HolderPageSize      int     `yaml:"holder_page_size"`
	FetchTimeoutSeconds int     `yaml:"fetch_timeout_seconds"`
	RateLimitRPS        float64 `yaml:"rate_limit_rps"`
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
}

// ClientSection configures the shared outbound HTTP pool.
type ClientSection struct {
	MaxConcurrency int    `yaml:"max_concurrency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	BackoffBaseMS  int    `yaml:"backoff_base_ms"`
	BackoffMaxMS   int    `yaml:"backoff_max_ms"`
	UserAgent      string `yaml:"user_agent"`
}

// CacheSection selects the fact cache backend. An empty redis_addr
// means the in-process cache.
type CacheSection struct {
	RedisAddr string `yaml:"redis_addr"`
}

// BudgetsSection caps upstream calls per source. The top-level limits
// apply to every source unless the sources map overrides them. Zero or
// negative limits leave that window unbounded.
type BudgetsSection struct {
	Enabled bool                    `yaml:"enabled"`
	Hourly  int                     `yaml:"hourly"`
	Daily   int                     `yaml:"daily"`
	Monthly int                     `yaml:"monthly"`
	Sources map[string]BudgetLimits `yaml:"sources"`
}

// BudgetLimits is one source's call allowance.
type BudgetLimits struct {
	Hourly  int `yaml:"hourly"`
	Daily   int `yaml:"daily"`
	Monthly int `yaml:"monthly"`
}

// DatabaseSection configures report persistence. Disabled by default;
// scans work without a database.
type DatabaseSection struct {
	Enabled                bool   `yaml:"enabled"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	ConnMaxIdleMinutes     int    `yaml:"conn_max_idle_minutes"`
	QueryTimeoutSeconds    int    `yaml:"query_timeout_seconds"`
}

// RiskSection points at an optional scoring policy file. Empty means
// the built-in policy.
type RiskSection struct {
	PolicyFile string `yaml:"policy_file"`
}

// LogSection configures log output. Format "auto" picks console on a
// terminal and JSON otherwise.
type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Server: ServerSection{
			Host:                  "127.0.0.1",
			Port:                  8080,
			ReadTimeoutSeconds:    10,
			WriteTimeoutSeconds:   30,
			IdleTimeoutSeconds:    60,
			RequestTimeoutSeconds: 20,
		},
		Sources: SourcesSection{
			RPCURL:              "https://api.mainnet-beta.solana.com",
			MarketURL:           "https://api.dexscreener.com",
			HolderPageSize:      20,
			FetchTimeoutSeconds: 8,
			RateLimitRPS:        4,
			RateLimitBurst:      8,
		},
		Client: ClientSection{
			MaxConcurrency: 8,
			TimeoutSeconds: 10,
			MaxRetries:     2,
			BackoffBaseMS:  250,
			BackoffMaxMS:   4000,
			UserAgent:      "tokensentry/1.0",
		},
		Budgets: BudgetsSection{
			Enabled: true,
			Hourly:  600,
			Daily:   5000,
			Monthly: 100000,
		},
		Database: DatabaseSection{
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
			ConnMaxIdleMinutes:     5,
			QueryTimeoutSeconds:    10,
		},
		Log: LogSection{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads the config file at path, overlays it on the defaults,
// applies environment overrides, and validates the result. An empty
// path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	config := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// applyEnv layers deploy-time overrides on top of the file. Setting
// PG_DSN turns persistence on.
func applyEnv(config *Config) error {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.RedisAddr = addr
	}
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		config.Database.DSN = dsn
		config.Database.Enabled = true
	}
	if rpc := os.Getenv("SOLANA_RPC_URL"); rpc != "" {
		config.Sources.RPCURL = rpc
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", port, err)
		}
		config.Server.Port = n
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"auto": true, "console": true, "json": true,
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in [1, 65535], got %d", c.Server.Port)
	}
	if err := checkURL("sources.rpc_url", c.Sources.RPCURL); err != nil {
		return err
	}
	if err := checkURL("sources.market_url", c.Sources.MarketURL); err != nil {
		return err
	}
	if c.Sources.RegistryURL != "" {
		if err := checkURL("sources.registry_url", c.Sources.RegistryURL); err != nil {
			return err
		}
	}
	if c.Sources.HolderPageSize < 1 || c.Sources.HolderPageSize > 20 {
		return fmt.Errorf("holder_page_size must be in [1, 20], got %d", c.Sources.HolderPageSize)
	}
	if c.Sources.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("fetch_timeout_seconds must be at least 1, got %d", c.Sources.FetchTimeoutSeconds)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.enabled is true")
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log level %q is not one of trace, debug, info, warn, error", c.Log.Level)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("log format %q is not one of auto, console, json", c.Log.Format)
	}
	return nil
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, raw)
	}
	return nil
}

// ServerConfig converts the server section for the HTTP layer.
func (c *Config) ServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		ReadTimeout:    time.Duration(c.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(c.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(c.Server.IdleTimeoutSeconds) * time.Second,
		RequestTimeout: time.Duration(c.Server.RequestTimeoutSeconds) * time.Second,
	}
}

// ClientConfig converts the client section for the outbound pool.
func (c *Config) ClientConfig() httpclient.Config {
	return httpclient.Config{
		MaxConcurrency: c.Client.MaxConcurrency,
		RequestTimeout: time.Duration(c.Client.TimeoutSeconds) * time.Second,
		MaxRetries:     c.Client.MaxRetries,
		BackoffBase:    time.Duration(c.Client.BackoffBaseMS) * time.Millisecond,
		BackoffMax:     time.Duration(c.Client.BackoffMaxMS) * time.Millisecond,
		UserAgent:      c.Client.UserAgent,
	}
}

// DatabaseConfig converts the database section for the store manager.
func (c *Config) DatabaseConfig() db.Config {
	return db.Config{
		Enabled:         c.Database.Enabled,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(c.Database.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(c.Database.ConnMaxIdleMinutes) * time.Minute,
		QueryTimeout:    time.Duration(c.Database.QueryTimeoutSeconds) * time.Second,
	}
}

// FetchTimeout is the per-source deadline during report assembly.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Sources.FetchTimeoutSeconds) * time.Second
}

// RiskPolicy loads the scoring policy file, or returns the built-in
// policy when none is configured.
func (c *Config) RiskPolicy() (*risk.Config, error) {
	if c.Risk.PolicyFile == "" {
		return risk.DefaultConfig(), nil
	}
	return risk.LoadConfig(c.Risk.PolicyFile)
}

// limitsFor resolves one source's budget, preferring a per-source
// override over the shared limits.
func (b *BudgetsSection) limitsFor(source string) BudgetLimits {
	if limits, ok := b.Sources[source]; ok {
		return limits
	}
	return BudgetLimits{Hourly: b.Hourly, Daily: b.Daily, Monthly: b.Monthly}
}

// Describe renders the effective configuration for startup logging.
// The database DSN is redacted.
func (c *Config) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration:\n")
	fmt.Fprintf(&b, "  Server: %s:%d request_timeout=%ds\n",
		c.Server.Host, c.Server.Port, c.Server.RequestTimeoutSeconds)
	fmt.Fprintf(&b, "  Sources: rpc=%s market=%s registry=%s\n",
		c.Sources.RPCURL, c.Sources.MarketURL, orNone(c.Sources.RegistryURL))
	fmt.Fprintf(&b, "  Sources: holder_page=%d fetch_timeout=%ds rate=%.1f rps burst=%d\n",
		c.Sources.HolderPageSize, c.Sources.FetchTimeoutSeconds,
		c.Sources.RateLimitRPS, c.Sources.RateLimitBurst)
	fmt.Fprintf(&b, "  Client: concurrency=%d timeout=%ds retries=%d\n",
		c.Client.MaxConcurrency, c.Client.TimeoutSeconds, c.Client.MaxRetries)
	fmt.Fprintf(&b, "  Cache: %s\n", cacheBackend(c.Cache.RedisAddr))
	if c.Budgets.Enabled {
		fmt.Fprintf(&b, "  Budgets: hourly=%d daily=%d monthly=%d overrides=%d\n",
			c.Budgets.Hourly, c.Budgets.Daily, c.Budgets.Monthly, len(c.Budgets.Sources))
	} else {
		fmt.Fprintf(&b, "  Budgets: disabled\n")
	}
	if c.Database.Enabled {
		fmt.Fprintf(&b, "  Database: enabled dsn=redacted pool=%d/%d\n",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	} else {
		fmt.Fprintf(&b, "  Database: disabled\n")
	}
	fmt.Fprintf(&b, "  Risk policy: %s\n", orDefault(c.Risk.PolicyFile))
	fmt.Fprintf(&b, "  Log: level=%s format=%s\n", c.Log.Level, c.Log.Format)
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func orDefault(s string) string {
	if s == "" {
		return "built-in"
	}
	return s
}

func cacheBackend(addr string) string {
	if addr == "" {
		return "memory"
	}
	return "redis " + addr
}
