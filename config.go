package folio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eringen/folio/storage"
	"github.com/eringen/folio/tracing"
)

// SiteConfig holds all configuration for a folio site.
type SiteConfig struct {
	Name        string `mapstructure:"name"`        // Site name (default "Folio")
	URL         string `mapstructure:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"description"` // Site description for the RSS feed
	Author      string `mapstructure:"author"`

	Addr         string `mapstructure:"addr"`          // Listen address (default ":3000")
	DatabasePath string `mapstructure:"database_path"` // SQLite path (default "data/folio.db")

	AdminEmail    string `mapstructure:"admin_email"`    // Required: the one email allowed to moderate
	SessionSecret string `mapstructure:"session_secret"` // Required: signs cookies and API tokens
	CookieSecure  bool   `mapstructure:"cookie_secure"`  // Set true for HTTPS

	ArticleCacheTTL time.Duration `mapstructure:"article_cache_ttl"` // default 5m
	TokenTTL        time.Duration `mapstructure:"token_ttl"`         // API token lifetime (default 30 days)

	LogLevel  string `mapstructure:"log_level"`  // debug, info, warn, error
	LogFormat string `mapstructure:"log_format"` // text or json

	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Storage   storage.Config  `mapstructure:"storage"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// OAuthConfig holds the sign-in providers. A provider without a client id is
// disabled.
type OAuthConfig struct {
	GitHub OAuthClient `mapstructure:"github"`
	Google OAuthClient `mapstructure:"google"`
}

type OAuthClient struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// RateLimitConfig throttles mutating requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // default 10
	Burst             int     `mapstructure:"burst"`               // default 30
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Folio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/folio.db"
	}
	if c.ArticleCacheTTL == 0 {
		c.ArticleCacheTTL = 5 * time.Minute
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 30 * 24 * time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "public"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "folio"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 30
	}
}

// Validate reports every required setting that is missing.
func (c SiteConfig) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session_secret is required"))
	}
	if c.AdminEmail == "" {
		errs = append(errs, errors.New("admin_email is required"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads environment variables from the given files (default
// ".env"). Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig reads configuration from defaults, an optional YAML file and
// FOLIO_-prefixed environment variables, in increasing priority. With an
// empty file, ./folio.yaml is used when present.
func LoadConfig(file string) (SiteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return SiteConfig{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("folio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return SiteConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// setViperDefaults registers every key so AutomaticEnv can find it.
func setViperDefaults(v *viper.Viper) {
	var d SiteConfig
	d.setDefaults()
	defaults := map[string]any{
		"name":                           d.Name,
		"url":                            d.URL,
		"description":                    d.Description,
		"author":                         d.Author,
		"addr":                           d.Addr,
		"database_path":                  d.DatabasePath,
		"admin_email":                    d.AdminEmail,
		"session_secret":                 d.SessionSecret,
		"cookie_secure":                  d.CookieSecure,
		"article_cache_ttl":              d.ArticleCacheTTL,
		"token_ttl":                      d.TokenTTL,
		"log_level":                      d.LogLevel,
		"log_format":                     d.LogFormat,
		"oauth.github.client_id":         "",
		"oauth.github.client_secret":     "",
		"oauth.google.client_id":         "",
		"oauth.google.client_secret":     "",
		"storage.driver":                 d.Storage.Driver,
		"storage.dir":                    d.Storage.Dir,
		"storage.bucket":                 "",
		"storage.region":                 "",
		"storage.endpoint":               "",
		"storage.access_key":             "",
		"storage.secret_key":             "",
		"tracing.enabled":                false,
		"tracing.exporter":               d.Tracing.Exporter,
		"tracing.otlp_endpoint":          "",
		"tracing.sample_rate":            d.Tracing.SampleRate,
		"tracing.service_name":           d.Tracing.ServiceName,
		"rate_limit.requests_per_second": d.RateLimit.RequestsPerSecond,
		"rate_limit.burst":               d.RateLimit.Burst,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
}
