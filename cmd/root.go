package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/folio/internal/config"
	"github.com/KaramelBytes/folio/internal/contact"
	"github.com/KaramelBytes/folio/internal/content"
	"github.com/KaramelBytes/folio/internal/inbox"
	"github.com/KaramelBytes/folio/internal/logger"
	"github.com/KaramelBytes/folio/internal/relay"
)

var (
	// Global flags
	cfgFile        string
	debug          bool
	flagContentDir string
	flagLogLevel   string

	// Loaded configuration
	cfg    *cfgpkg.Global
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "folio: content server and tools for a bilingual portfolio site",
	Long: `folio indexes the per-locale markdown posts of a portfolio site, serves them
over a small JSON API with RSS feeds, and runs the contact form gate (rate
limiting, honeypot, validation and relay delivery).`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./folio.yaml or ~/.folio/folio.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagContentDir, "content", "", "content directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal here: commands that need config report it via requireConfig
		cfg, cfgErr = nil, err
		return
	}
	cfg, cfgErr = c, nil

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("content") && flagContentDir != "" {
		cfg.ContentDir = flagContentDir
	}
	if f.Changed("log-level") && flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
}

// requireConfig returns the loaded, validated configuration.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("load config: %w", cfgErr)
		}
		return nil, errors.New("no configuration loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the zap logger from config, falling back to a no-op
// logger so commands still run when the settings are unusable.
func newLogger(c *cfgpkg.Global) *zap.Logger {
	l, err := logger.New(c.LogLevel, c.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
		return logger.NewNop()
	}
	return l
}

func newStore(c *cfgpkg.Global, log *zap.Logger) *content.Store {
	return content.NewStore(c.ContentDir, content.Options{
		Locales:       c.Locales,
		IncludeDrafts: c.IncludeDrafts,
		Logger:        log,
	})
}

// resolveLocale validates a --locale flag value, defaulting to the
// configured default locale.
func resolveLocale(c *cfgpkg.Global, locale string) (string, error) {
	if locale == "" {
		return c.DefaultLocale, nil
	}
	if !slices.Contains(c.Locales, locale) {
		return "", fmt.Errorf("unsupported locale %q (available: %v)", locale, c.Locales)
	}
	return locale, nil
}

// newGate wires the contact gate: the configured relay, or the local inbox
// when no relay is set. The returned closer releases the inbox.
func newGate(c *cfgpkg.Global, log *zap.Logger) (*contact.Gate, func() error, error) {
	closer := func() error { return nil }
	r, err := relay.New(c.RelayProvider, relay.ConfigFrom(c))
	if err != nil {
		return nil, closer, fmt.Errorf("configure relay: %w", err)
	}
	opts := contact.Options{Relay: r, Logger: log, Timeout: c.RelayTimeout()}
	if r == nil {
		log.Warn("no contact relay configured; submissions are accepted locally")
		if c.InboxPath != "" {
			db, err := inbox.Open(c.InboxPath)
			if err != nil {
				return nil, closer, fmt.Errorf("open inbox: %w", err)
			}
			opts.Recorder = db
			closer = db.Close
		}
	} else {
		log.Info("contact relay configured", zap.String("relay", r.Name()))
	}
	limiter := contact.NewLimiter(c.RateLimitWindow(), c.RateLimitMax, c.RateLimitMaxBuckets)
	return contact.NewGate(limiter, opts), closer, nil
}
