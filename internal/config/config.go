package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/KaramelBytes/folio/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Content
	ContentDir    string   `mapstructure:"content_dir" yaml:"content_dir"`
	Locales       []string `mapstructure:"locales" yaml:"locales"`
	DefaultLocale string   `mapstructure:"default_locale" yaml:"default_locale"`
	IncludeDrafts bool     `mapstructure:"include_drafts" yaml:"include_drafts"`
	SiteTitle     string   `mapstructure:"site_title" yaml:"site_title"`
	SiteURL       string   `mapstructure:"site_url" yaml:"site_url"`
	FeedLimit     int      `mapstructure:"feed_limit" yaml:"feed_limit"`

	// Server
	ListenAddr         string `mapstructure:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
	LogLevel           string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string `mapstructure:"log_format" yaml:"log_format"`

	// Contact rate limiting
	RateLimitWindowSec  int `mapstructure:"rate_limit_window_sec" yaml:"rate_limit_window_sec"`
	RateLimitMax        int `mapstructure:"rate_limit_max" yaml:"rate_limit_max"`
	RateLimitMaxBuckets int `mapstructure:"rate_limit_max_buckets" yaml:"rate_limit_max_buckets"`
	RateLimitSweepSec   int `mapstructure:"rate_limit_sweep_sec" yaml:"rate_limit_sweep_sec"`

	// Relay (webhook or mailgun). Empty relay settings mean local accept.
	RelayProvider   string  `mapstructure:"relay_provider" yaml:"relay_provider"`
	RelayURL        string  `mapstructure:"relay_url" yaml:"relay_url"`
	RelayToken      string  `mapstructure:"relay_token" yaml:"relay_token"`
	RelayTimeoutSec int     `mapstructure:"relay_timeout_sec" yaml:"relay_timeout_sec"`
	RelayRPS        float64 `mapstructure:"relay_rps" yaml:"relay_rps"`

	// HTTP/Retry configuration
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Mailgun
	MailgunDomain  string `mapstructure:"mailgun_domain" yaml:"mailgun_domain"`
	MailgunAPIKey  string `mapstructure:"mailgun_api_key" yaml:"mailgun_api_key"`
	MailgunAPIBase string `mapstructure:"mailgun_api_base" yaml:"mailgun_api_base"`
	MailFrom       string `mapstructure:"mail_from" yaml:"mail_from"`
	MailTo         string `mapstructure:"mail_to" yaml:"mail_to"`

	// Local inbox (sqlite) used when no relay is configured
	InboxPath string `mapstructure:"inbox_path" yaml:"inbox_path"`
}

// Relay providers.
const (
	RelayWebhook = "webhook"
	RelayMailgun = "mailgun"
)

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ./folio.yaml.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		path = "folio.yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded into the process environment first.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("content_dir", filepath.Join("content", "blog"))
	v.SetDefault("locales", []string{"en", "fr"})
	v.SetDefault("default_locale", "en")
	v.SetDefault("include_drafts", false)
	v.SetDefault("site_title", "Portfolio")
	v.SetDefault("site_url", "http://localhost:8080")
	v.SetDefault("feed_limit", 20)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("shutdown_timeout_sec", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("rate_limit_window_sec", 600)
	v.SetDefault("rate_limit_max", 5)
	v.SetDefault("rate_limit_max_buckets", 10000)
	v.SetDefault("rate_limit_sweep_sec", 60)
	v.SetDefault("relay_provider", RelayWebhook)
	v.SetDefault("relay_url", "")
	v.SetDefault("relay_token", "")
	v.SetDefault("relay_timeout_sec", 8)
	v.SetDefault("relay_rps", 5.0)
	// HTTP/retry defaults
	v.SetDefault("retry_max_attempts", 2)
	v.SetDefault("retry_base_delay_ms", 300)
	v.SetDefault("retry_max_delay_ms", 2000)
	// Mailgun defaults
	v.SetDefault("mailgun_domain", "")
	v.SetDefault("mailgun_api_key", "")
	v.SetDefault("mailgun_api_base", "")
	v.SetDefault("mail_from", "")
	v.SetDefault("mail_to", "")
	v.SetDefault("inbox_path", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".folio"))
		}
		v.SetConfigName("folio")
		v.SetConfigType("yaml")
		// optional read
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate reports the first invalid setting.
func (c *Global) Validate() error {
	if c.ContentDir == "" {
		return errors.New("content_dir is required")
	}
	if len(c.Locales) == 0 {
		return errors.New("locales must list at least one locale")
	}
	if !slices.Contains(c.Locales, c.DefaultLocale) {
		return fmt.Errorf("default_locale %q is not in locales %v", c.DefaultLocale, c.Locales)
	}
	if c.RateLimitWindowSec <= 0 {
		return fmt.Errorf("rate_limit_window_sec must be positive, got %d", c.RateLimitWindowSec)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("rate_limit_max must be positive, got %d", c.RateLimitMax)
	}
	switch c.RelayProvider {
	case "", RelayWebhook, RelayMailgun:
	default:
		return fmt.Errorf("invalid relay_provider: %s (use webhook or mailgun)", c.RelayProvider)
	}
	return nil
}

// RateLimitWindow returns the fixed window length.
func (c *Global) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSec) * time.Second
}

// RelayTimeout returns the bound applied to a single relay delivery.
func (c *Global) RelayTimeout() time.Duration {
	if c.RelayTimeoutSec <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.RelayTimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Global) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
