// Package config loads exporter settings from flags, HH_* environment
// variables and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vacancy-tools/hh-vacancy-csv/pkg/logging"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/vacancy"
)

// EnvPrefix is prepended to every environment variable, e.g. HH_PER_PAGE.
const EnvPrefix = "HH"

// DefaultUserAgent identifies the exporter to hh.ru.
const DefaultUserAgent = "hh-vacancy-csv/1.0 (+https://github.com/vacancy-tools/hh-vacancy-csv)"

// Config stores all configuration for a run.
type Config struct {
	// Search
	Text    string
	AreaID  *int
	Pages   int
	PerPage int
	Details bool

	// Output
	Out       string
	Timestamp bool

	// Transport
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	Delay          time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DetailWorkers  int

	// Cache, empty RedisAddr disables it.
	RedisAddr string
	CacheTTL  time.Duration

	// Observability
	LogLevel    logging.LogLevel
	LogPretty   bool
	MetricsFile string
}

// NewFlagSet declares every flag with its default.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("text", "", `search text, e.g. "python junior" (required)`)
	fs.String("area", "", "area id, e.g. 1=Moscow, 2=Saint Petersburg; empty means no filter")
	fs.Int("pages", 2, "number of search pages to fetch (0..pages-1)")
	fs.Int("per-page", 50, "vacancies per page (1..100)")
	fs.Bool("details", false, "fetch the detail of every vacancy (slower)")
	fs.String("out", "vacancies.csv", "output CSV file")
	fs.Bool("timestamp", false, "add a _YYYYMMDD_HHMMSS suffix to the output file name")

	fs.String("base-url", "https://api.hh.ru", "hh.ru API base URL")
	fs.String("user-agent", DefaultUserAgent, "User-Agent header sent to hh.ru")
	fs.Duration("timeout", 25*time.Second, "timeout of a single HTTP attempt")
	fs.Duration("delay", 300*time.Millisecond, "pause between requests")
	fs.Int("max-attempts", 5, "attempts per request before giving up")
	fs.Duration("initial-backoff", 1500*time.Millisecond, "wait after the first failed attempt")
	fs.Duration("max-backoff", 30*time.Second, "longest wait between attempts")
	fs.Int("detail-workers", 1, "concurrent detail requests")

	fs.String("redis-addr", "", "Redis address for response caching; empty disables the cache")
	fs.Duration("cache-ttl", 10*time.Minute, "lifetime of cached responses")

	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-pretty", false, "human readable logs instead of JSON")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile at exit")
	fs.String("env-file", ".env", "optional file with HH_* settings")

	return fs
}

// Load parses args and resolves the configuration. It returns pflag.ErrHelp
// when help was requested.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("hh-vacancies")
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if err := mergeEnvFile(v, v.GetString("env-file")); err != nil {
		return nil, err
	}

	return fromViper(v)
}

// mergeEnvFile loads HH_* keys from path as the lowest-precedence source.
// A missing file is not an error.
func mergeEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	prefix := strings.ToLower(EnvPrefix) + "_"
	values := make(map[string]any)
	for _, key := range file.AllKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.ReplaceAll(strings.TrimPrefix(key, prefix), "_", "-")
		values[name] = file.Get(key)
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Text:           strings.TrimSpace(v.GetString("text")),
		Pages:          v.GetInt("pages"),
		PerPage:        v.GetInt("per-page"),
		Details:        v.GetBool("details"),
		Out:            v.GetString("out"),
		Timestamp:      v.GetBool("timestamp"),
		BaseURL:        v.GetString("base-url"),
		UserAgent:      v.GetString("user-agent"),
		Timeout:        v.GetDuration("timeout"),
		Delay:          v.GetDuration("delay"),
		MaxAttempts:    v.GetInt("max-attempts"),
		InitialBackoff: v.GetDuration("initial-backoff"),
		MaxBackoff:     v.GetDuration("max-backoff"),
		DetailWorkers:  v.GetInt("detail-workers"),
		RedisAddr:      v.GetString("redis-addr"),
		CacheTTL:       v.GetDuration("cache-ttl"),
		LogPretty:      v.GetBool("log-pretty"),
		MetricsFile:    v.GetString("metrics-file"),
	}

	if cfg.Text == "" {
		return nil, fmt.Errorf("--text: %w", vacancy.ErrEmptyText)
	}

	if area := strings.TrimSpace(v.GetString("area")); area != "" {
		id, err := strconv.Atoi(area)
		if err != nil {
			return nil, fmt.Errorf("--area must be a numeric area id (got %q)", area)
		}
		cfg.AreaID = &id
	}

	level, err := logging.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	cfg.LogLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Validate rejects settings that would make every request fail.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0 (got %v)", c.Timeout)
	}
	if c.Delay < 0 {
		return fmt.Errorf("--delay must not be negative (got %v)", c.Delay)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("--max-attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("--max-backoff (%v) must be >= --initial-backoff (%v) >= 0", c.MaxBackoff, c.InitialBackoff)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("--user-agent must not be empty")
	}
	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("--cache-ttl must be > 0 when the cache is enabled (got %v)", c.CacheTTL)
	}
	return nil
}

// normalize clamps values the API would otherwise reject.
func (c *Config) normalize() {
	if c.Pages < 1 {
		c.Pages = 1
	}
	if c.PerPage < vacancy.MinPerPage {
		c.PerPage = vacancy.MinPerPage
	}
	if c.PerPage > vacancy.MaxPerPage {
		c.PerPage = vacancy.MaxPerPage
	}
	if c.DetailWorkers < 1 {
		c.DetailWorkers = 1
	}
	if c.Out == "" {
		c.Out = "vacancies.csv"
	}
}
