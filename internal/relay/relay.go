package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/folio/internal/config"
)

// Message is an accepted contact submission on its way to a recipient.
type Message struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Topic       string    `json:"topic,omitempty"`
	Message     string    `json:"message"`
	Locale      string    `json:"locale,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Relay forwards messages to an external recipient.
type Relay interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Factory builds a Relay from the generic config below. It returns nil when
// the provider is not configured.
type Factory func(Config) (Relay, error)

// Config carries common knobs used by relays.
type Config struct {
	// Common
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RPS         float64
	// Webhook
	URL   string
	Token string
	// Mailgun
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunAPIBase string
	From           string
	To             []string
}

// ConfigFrom maps global settings onto a relay Config.
func ConfigFrom(c *config.Global) Config {
	var to []string
	for _, addr := range strings.Split(c.MailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return Config{
		HTTPTimeout:    c.RelayTimeout(),
		RetryMax:       c.RetryMaxAttempts,
		BaseDelay:      time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		RPS:            c.RelayRPS,
		URL:            strings.TrimSpace(c.RelayURL),
		Token:          c.RelayToken,
		MailgunDomain:  c.MailgunDomain,
		MailgunAPIKey:  c.MailgunAPIKey,
		MailgunAPIBase: c.MailgunAPIBase,
		From:           c.MailFrom,
		To:             to,
	}
}

var registry = map[string]Factory{}

// Register registers a provider name with its factory.
func Register(name string, f Factory) { registry[name] = f }

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New creates the relay for provider. An empty provider selects the webhook
// relay. A nil Relay with a nil error means no relay is configured and
// submissions should be accepted locally.
func New(provider string, cfg Config) (Relay, error) {
	if provider == "" {
		provider = config.RelayWebhook
	}
	f, ok := registry[provider]
	if !ok {
		return nil, fmt.Errorf("unknown relay provider %q (available: %s)", provider, strings.Join(Providers(), ", "))
	}
	return f(cfg)
}

// init registers built-in relays.
func init() {
	Register(config.RelayWebhook, func(c Config) (Relay, error) {
		if c.URL == "" {
			return nil, nil
		}
		if c.HTTPTimeout <= 0 {
			c.HTTPTimeout = 8 * time.Second
		}
		if c.RetryMax <= 0 {
			c.RetryMax = 2
		}
		if c.BaseDelay <= 0 {
			c.BaseDelay = 300 * time.Millisecond
		}
		if c.MaxDelay <= 0 {
			c.MaxDelay = 2 * time.Second
		}
		cl := NewClient(c.URL, c.Token, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
		cl.SetRateLimit(c.RPS)
		return cl, nil
	})
	Register(config.RelayMailgun, func(c Config) (Relay, error) {
		if c.MailgunDomain == "" || c.MailgunAPIKey == "" {
			return nil, nil
		}
		if c.HTTPTimeout <= 0 {
			c.HTTPTimeout = 8 * time.Second
		}
		return NewMailgunRelay(c)
	})
}
