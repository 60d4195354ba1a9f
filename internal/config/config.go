package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/credentials"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool
	Quiet    bool

	// Run file, when one was read
	ConfigFile string

	// Crawl
	Retailer      string
	Categories    []string
	MaxPages      int
	Delay         time.Duration
	MaxConcurrent int
	NavTimeout    time.Duration
	RetryBudget   int
	MaxBackoff    time.Duration

	// Retailer overrides
	Selectors     models.SelectorMap
	ProductMarker string
	DenyList      []string
	LinkFilter    string

	// Rendering
	Engine         string
	Headless       bool
	ChromePath     string
	UserAgent      string
	Headers        []string // "Key: Value"
	Proxies        []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Storage
	DatabaseURL  string
	DatabasePath string
	Timezone     string
	DSNSource    string // default, env, flag or keyring
}

// DSN returns the PostgreSQL URL when one is configured, otherwise the
// SQLite path.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

// Location returns the zone that defines the calendar day
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// storedDatabaseURL reads a DSN saved with `pricecrawl db set-url`
var storedDatabaseURL = func() (string, error) {
	v, err := credentials.Default()
	if err != nil {
		return "", err
	}
	return v.DatabaseURL()
}

// envFile is loaded before anything else; a missing file is fine
var envFile = DefaultEnvFile

// Defaults returns a Config with every default applied
func Defaults() *Config {
	return &Config{
		LogLevel:       DefaultLogLevel,
		JSONLog:        DefaultJSONLog,
		Retailer:       DefaultRetailer,
		MaxPages:       DefaultMaxPages,
		Delay:          DefaultDelay,
		MaxConcurrent:  DefaultMaxConcurrent,
		NavTimeout:     DefaultNavTimeout,
		RetryBudget:    DefaultRetryBudget,
		MaxBackoff:     DefaultMaxBackoff,
		Engine:         DefaultEngine,
		Headless:       DefaultHeadless,
		UserAgent:      DefaultUserAgent,
		RateLimitRPS:   DefaultRateLimitRPS,
		RateLimitBurst: DefaultRateLimitBurst,
		DatabasePath:   DefaultDatabasePath,
		Timezone:       DefaultTimezone,
		DSNSource:      "default",
	}
}

// Load builds a Config by combining defaults, a .env file, an optional YAML
// run file, environment variables, a stored database URL and CLI flags, in
// that order. Caller should pass the executing *cobra.Command so flags can
// be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(envFile); err != nil {
		return nil, engine.NewConfigError("cannot read "+envFile, err)
	}

	path := os.Getenv("PRICECRAWL_CONFIG")
	if s := flagString(cmd, "config"); s != "" {
		path = s
	}
	if path != "" {
		rf, err := readRunFile(path)
		if err != nil {
			return nil, engine.NewConfigError("cannot read run file "+path, err)
		}
		rf.apply(cfg)
		cfg.ConfigFile = path
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" && !flagChanged(cmd, "database-url") {
		dsn, err := storedDatabaseURL()
		switch {
		case err == nil && dsn != "":
			cfg.DatabaseURL = dsn
			cfg.DSNSource = "keyring"
		case err != nil && !errors.Is(err, credentials.ErrNotFound):
			log.Debug().Err(err).Msg("No stored database URL")
		}
	}

	if err := applyFlags(cfg, cmd); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, engine.NewConfigError("invalid config", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PRICECRAWL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("PRICECRAWL_RETAILER"); v != "" {
		cfg.Retailer = v
	}
	if v := os.Getenv("PRICECRAWL_CATEGORIES"); v != "" {
		cfg.Categories = splitList(v)
	}
	if v := os.Getenv("PRICECRAWL_ENGINE"); v != "" {
		cfg.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("PRICECRAWL_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("PRICECRAWL_PROXY"); v != "" {
		cfg.Proxies = splitList(v)
	}
	if v := os.Getenv("PRICECRAWL_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("PRICECRAWL_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("PRICECRAWL_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
		cfg.DSNSource = "env"
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PRICECRAWL_MAX_PAGES", &cfg.MaxPages},
		{"PRICECRAWL_MAX_CONCURRENT", &cfg.MaxConcurrent},
		{"PRICECRAWL_RETRY_BUDGET", &cfg.RetryBudget},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return engine.NewConfigError(e.key+" must be an integer", err)
			}
			*e.dst = n
		}
	}

	millis := []struct {
		key string
		dst *time.Duration
	}{
		{"PRICECRAWL_DELAY_MS", &cfg.Delay},
		{"PRICECRAWL_NAV_TIMEOUT_MS", &cfg.NavTimeout},
		{"PRICECRAWL_MAX_BACKOFF_MS", &cfg.MaxBackoff},
	}
	for _, e := range millis {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return engine.NewConfigError(e.key+" must be milliseconds", err)
			}
			*e.dst = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("PRICECRAWL_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return engine.NewConfigError("PRICECRAWL_HEADLESS must be a boolean", err)
		}
		cfg.Headless = b
	}
	if v := os.Getenv("PRICECRAWL_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return engine.NewConfigError("PRICECRAWL_RATE_LIMIT must be a number", err)
		}
		cfg.RateLimitRPS = f
	}
	return nil
}

// applyFlags copies explicitly set flags onto cfg. Flags left at their
// default never override lower layers.
func applyFlags(cfg *Config, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	fs := cmd.Flags()

	if flagChanged(cmd, "verbose") && flagBool(cmd, "verbose") {
		cfg.LogLevel = "debug"
	}
	if flagChanged(cmd, "quiet") && flagBool(cmd, "quiet") {
		cfg.LogLevel = "error"
		cfg.Quiet = true
	}
	if flagChanged(cmd, "json") {
		cfg.JSONLog = flagBool(cmd, "json")
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"retailer", &cfg.Retailer},
		{"engine", &cfg.Engine},
		{"user-agent", &cfg.UserAgent},
		{"chrome-path", &cfg.ChromePath},
		{"db", &cfg.DatabasePath},
		{"timezone", &cfg.Timezone},
	}
	for _, f := range strs {
		if flagChanged(cmd, f.name) {
			*f.dst = flagString(cmd, f.name)
		}
	}
	if flagChanged(cmd, "database-url") {
		cfg.DatabaseURL = flagString(cmd, "database-url")
		cfg.DSNSource = "flag"
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"max-pages", &cfg.MaxPages},
		{"max-concurrent", &cfg.MaxConcurrent},
		{"retry-budget", &cfg.RetryBudget},
	}
	for _, f := range ints {
		if flagChanged(cmd, f.name) {
			n, err := fs.GetInt(f.name)
			if err != nil {
				return engine.NewConfigError("--"+f.name, err)
			}
			*f.dst = n
		}
	}

	durs := []struct {
		name string
		dst  *time.Duration
	}{
		{"delay", &cfg.Delay},
		{"nav-timeout", &cfg.NavTimeout},
		{"max-backoff", &cfg.MaxBackoff},
	}
	for _, f := range durs {
		if flagChanged(cmd, f.name) {
			d, err := fs.GetDuration(f.name)
			if err != nil {
				return engine.NewConfigError("--"+f.name, err)
			}
			*f.dst = d
		}
	}

	if flagChanged(cmd, "headless") {
		cfg.Headless = flagBool(cmd, "headless")
	}
	if flagChanged(cmd, "category") {
		v, err := fs.GetStringSlice("category")
		if err != nil {
			return engine.NewConfigError("--category", err)
		}
		cfg.Categories = v
	}
	if flagChanged(cmd, "header") {
		v, err := fs.GetStringArray("header")
		if err != nil {
			return engine.NewConfigError("--header", err)
		}
		cfg.Headers = v
	}
	if flagChanged(cmd, "proxy") {
		v, err := fs.GetStringSlice("proxy")
		if err != nil {
			return engine.NewConfigError("--proxy", err)
		}
		cfg.Proxies = v
	}
	if flagChanged(cmd, "rate-limit") {
		v, err := fs.GetFloat64("rate-limit")
		if err != nil {
			return engine.NewConfigError("--rate-limit", err)
		}
		cfg.RateLimitRPS = v
	}
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func flagBool(cmd *cobra.Command, name string) bool {
	return flagString(cmd, name) == "true"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) String() string {
	return fmt.Sprintf("retailer=%s engine=%s maxPages=%d delay=%s maxConcurrent=%d db=%s",
		c.Retailer, c.Engine, c.MaxPages, c.Delay, c.MaxConcurrent, c.DSNSource)
}
