package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/folio/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set folio configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			if cfgErr != nil {
				return cfgErr
			}
			return nil
		}
		shown := *cfg
		shown.RelayToken = mask(shown.RelayToken)
		shown.MailgunAPIKey = mask(shown.MailgunAPIKey)
		b, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Fprint(out, string(b))
		return nil
	},
}

type setter func(c *cfgpkg.Global, val string) error

func setString(field func(*cfgpkg.Global) *string) setter {
	return func(c *cfgpkg.Global, val string) error {
		*field(c) = val
		return nil
	}
}

func setInt(key string, min int, field func(*cfgpkg.Global) *int) setter {
	return func(c *cfgpkg.Global, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*field(c) = i
		return nil
	}
}

var configSetters = map[string]setter{
	"content_dir":    setString(func(c *cfgpkg.Global) *string { return &c.ContentDir }),
	"default_locale": setString(func(c *cfgpkg.Global) *string { return &c.DefaultLocale }),
	"locales": func(c *cfgpkg.Global, val string) error {
		var locs []string
		for _, l := range strings.Split(val, ",") {
			if l = strings.TrimSpace(l); l != "" {
				locs = append(locs, l)
			}
		}
		if len(locs) == 0 {
			return fmt.Errorf("invalid locales: %q", val)
		}
		c.Locales = locs
		return nil
	},
	"include_drafts": func(c *cfgpkg.Global, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for include_drafts: %w", err)
		}
		c.IncludeDrafts = b
		return nil
	},
	"site_title":           setString(func(c *cfgpkg.Global) *string { return &c.SiteTitle }),
	"site_url":             setString(func(c *cfgpkg.Global) *string { return &c.SiteURL }),
	"feed_limit":           setInt("feed_limit", 0, func(c *cfgpkg.Global) *int { return &c.FeedLimit }),
	"listen_addr":          setString(func(c *cfgpkg.Global) *string { return &c.ListenAddr }),
	"shutdown_timeout_sec": setInt("shutdown_timeout_sec", 1, func(c *cfgpkg.Global) *int { return &c.ShutdownTimeoutSec }),
	"log_level":            setString(func(c *cfgpkg.Global) *string { return &c.LogLevel }),
	"log_format": func(c *cfgpkg.Global, val string) error {
		switch val {
		case "console", "json":
			c.LogFormat = val
			return nil
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	},
	"rate_limit_window_sec":  setInt("rate_limit_window_sec", 1, func(c *cfgpkg.Global) *int { return &c.RateLimitWindowSec }),
	"rate_limit_max":         setInt("rate_limit_max", 1, func(c *cfgpkg.Global) *int { return &c.RateLimitMax }),
	"rate_limit_max_buckets": setInt("rate_limit_max_buckets", 0, func(c *cfgpkg.Global) *int { return &c.RateLimitMaxBuckets }),
	"rate_limit_sweep_sec":   setInt("rate_limit_sweep_sec", 0, func(c *cfgpkg.Global) *int { return &c.RateLimitSweepSec }),
	"relay_provider": func(c *cfgpkg.Global, val string) error {
		switch strings.ToLower(val) {
		case cfgpkg.RelayWebhook, "formspree":
			c.RelayProvider = cfgpkg.RelayWebhook
		case cfgpkg.RelayMailgun:
			c.RelayProvider = cfgpkg.RelayMailgun
		default:
			return fmt.Errorf("invalid relay_provider: %s (use webhook or mailgun)", val)
		}
		return nil
	},
	"relay_url":         setString(func(c *cfgpkg.Global) *string { return &c.RelayURL }),
	"relay_token":       setString(func(c *cfgpkg.Global) *string { return &c.RelayToken }),
	"relay_timeout_sec": setInt("relay_timeout_sec", 1, func(c *cfgpkg.Global) *int { return &c.RelayTimeoutSec }),
	"relay_rps": func(c *cfgpkg.Global, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for relay_rps: %v", val)
		}
		c.RelayRPS = f
		return nil
	},
	"retry_max_attempts":  setInt("retry_max_attempts", 0, func(c *cfgpkg.Global) *int { return &c.RetryMaxAttempts }),
	"retry_base_delay_ms": setInt("retry_base_delay_ms", 0, func(c *cfgpkg.Global) *int { return &c.RetryBaseDelayMs }),
	"retry_max_delay_ms":  setInt("retry_max_delay_ms", 0, func(c *cfgpkg.Global) *int { return &c.RetryMaxDelayMs }),
	"mailgun_domain":      setString(func(c *cfgpkg.Global) *string { return &c.MailgunDomain }),
	"mailgun_api_key":     setString(func(c *cfgpkg.Global) *string { return &c.MailgunAPIKey }),
	"mailgun_api_base":    setString(func(c *cfgpkg.Global) *string { return &c.MailgunAPIBase }),
	"mail_from":           setString(func(c *cfgpkg.Global) *string { return &c.MailFrom }),
	"mail_to":             setString(func(c *cfgpkg.Global) *string { return &c.MailTo }),
	"inbox_path":          setString(func(c *cfgpkg.Global) *string { return &c.InboxPath }),
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		set, ok := configSetters[key]
		if !ok {
			return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(configKeys(), ", "))
		}
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := set(cfg, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
