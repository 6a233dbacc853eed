package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/folio/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	c, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RateLimitWindowSec != 600 || c.RateLimitMax != 5 {
		t.Fatalf("unexpected rate limit defaults: window=%d max=%d", c.RateLimitWindowSec, c.RateLimitMax)
	}
	if len(c.Locales) != 2 || c.Locales[0] != "en" || c.Locales[1] != "fr" {
		t.Fatalf("unexpected locales: %v", c.Locales)
	}
	if c.RelayURL != "" {
		t.Fatalf("relay should be unset by default, got %q", c.RelayURL)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if c.RateLimitWindow() != 10*time.Minute {
		t.Fatalf("window=%v", c.RateLimitWindow())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "folio.yaml")
	body := "content_dir: posts\nrate_limit_max: 3\nrelay_url: https://relay.example.com/f/abc\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOLIO_RATE_LIMIT_MAX", "9")

	c, err := config.Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ContentDir != "posts" {
		t.Fatalf("content_dir=%q", c.ContentDir)
	}
	if c.RateLimitMax != 9 {
		t.Fatalf("env should override file, got %d", c.RateLimitMax)
	}
	if c.RelayURL != "https://relay.example.com/f/abc" {
		t.Fatalf("relay_url=%q", c.RelayURL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "folio.yaml")
	in := &config.Global{ContentDir: "blog", Locales: []string{"en"}, DefaultLocale: "en", RateLimitWindowSec: 60, RateLimitMax: 2}
	if err := config.Save(in, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := config.Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.ContentDir != "blog" || out.RateLimitMax != 2 || out.DefaultLocale != "en" {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestValidate(t *testing.T) {
	base := func() *config.Global {
		return &config.Global{ContentDir: "c", Locales: []string{"en", "fr"}, DefaultLocale: "en", RateLimitWindowSec: 1, RateLimitMax: 1}
	}
	cases := []struct {
		name   string
		mutate func(*config.Global)
	}{
		{"default locale not listed", func(c *config.Global) { c.DefaultLocale = "de" }},
		{"zero window", func(c *config.Global) { c.RateLimitWindowSec = 0 }},
		{"zero max", func(c *config.Global) { c.RateLimitMax = 0 }},
		{"unknown provider", func(c *config.Global) { c.RelayProvider = "smtp" }},
		{"no locales", func(c *config.Global) { c.Locales = nil }},
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for _, tc := range cases {
		c := base()
		tc.mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
