package contact

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/folio/internal/relay"
)

// ErrorKind is the closed set of failure codes reported to clients.
type ErrorKind string

const (
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidJSON     ErrorKind = "invalid_json"
	KindNameTooShort    ErrorKind = "name_too_short"
	KindInvalidEmail    ErrorKind = "invalid_email"
	KindMessageTooShort ErrorKind = "message_too_short"
	KindUpstreamFailed  ErrorKind = "upstream_failed"
	KindGeneric         ErrorKind = "generic"
)

// DefaultRelayTimeout bounds a single relay delivery.
const DefaultRelayTimeout = 8 * time.Second

// HTTPStatus maps a kind to its response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindInvalidJSON, KindNameTooShort, KindInvalidEmail, KindMessageTooShort:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Submission is the payload posted by the contact form. Company is the
// honeypot field and must stay empty for humans.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message"`
	Company string `json:"company,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// Result is the outcome of a submission.
type Result struct {
	OK         bool      `json:"ok"`
	Kind       ErrorKind `json:"error,omitempty"`
	RetryAfter int       `json:"retry_after,omitempty"`
	ID         string    `json:"id,omitempty"`

	// Delivered is set when a relay accepted the message.
	Delivered bool `json:"-"`
	// Suppressed is set when the honeypot tripped.
	Suppressed bool `json:"-"`
}

// HTTPStatus returns the response status for r.
func (r Result) HTTPStatus() int { return r.Kind.HTTPStatus() }

// Outcome labels the result for metrics and logs.
func (r Result) Outcome() string {
	switch {
	case r.Kind != "":
		return string(r.Kind)
	case r.Suppressed:
		return "honeypot"
	case r.Delivered:
		return "relayed"
	default:
		return "local"
	}
}

// Failure returns a rejected result of kind.
func Failure(kind ErrorKind) Result { return Result{Kind: kind} }

// Recorder stores locally accepted submissions.
type Recorder interface {
	Record(ctx context.Context, msg relay.Message) error
}

// Options configures a Gate.
type Options struct {
	// Relay forwards accepted submissions; nil accepts them locally.
	Relay relay.Relay
	// Recorder keeps locally accepted submissions; optional.
	Recorder Recorder
	Logger   *zap.Logger
	Timeout  time.Duration
	Now      func() time.Time
}

// Gate runs submissions through rate limiting, the honeypot, validation and
// relay delivery, stopping at the first failing step.
type Gate struct {
	limiter  *Limiter
	relay    relay.Relay
	recorder Recorder
	log      *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewGate creates a gate around limiter.
func NewGate(limiter *Limiter, opts Options) *Gate {
	g := &Gate{
		limiter:  limiter,
		relay:    opts.Relay,
		recorder: opts.Recorder,
		log:      opts.Logger,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	g.log = g.log.Named("contact")
	if g.timeout <= 0 {
		g.timeout = DefaultRelayTimeout
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Limiter exposes the gate's rate limiter.
func (g *Gate) Limiter() *Limiter { return g.limiter }

// Submit processes one submission from addr.
func (g *Gate) Submit(ctx context.Context, addr string, s Submission) Result {
	now := g.now()
	if res, ok := g.checkRate(addr, now); !ok {
		return res
	}
	return g.process(ctx, addr, now, s)
}

// SubmitJSON is Submit for a raw JSON request body. The rate check runs
// before decoding, so undecodable bodies count against addr. Submissions
// without a locale get defaultLocale.
func (g *Gate) SubmitJSON(ctx context.Context, addr string, body io.Reader, defaultLocale string) Result {
	now := g.now()
	if res, ok := g.checkRate(addr, now); !ok {
		return res
	}
	var s Submission
	if err := json.NewDecoder(body).Decode(&s); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			g.log.Info("submission body too large", zap.String("addr", addr), zap.Int64("limit", tooLarge.Limit))
		} else {
			g.log.Debug("undecodable submission", zap.String("addr", addr), zap.Error(err))
		}
		return Failure(KindInvalidJSON)
	}
	if s.Locale == "" {
		s.Locale = defaultLocale
	}
	return g.process(ctx, addr, now, s)
}

func (g *Gate) checkRate(addr string, now time.Time) (Result, bool) {
	d := g.limiter.Allow(addr, now)
	if !d.Allowed {
		g.log.Info("submission rate limited", zap.String("addr", addr), zap.Int("retry_after", d.RetryAfter))
		return Result{Kind: KindRateLimited, RetryAfter: d.RetryAfter}, false
	}
	return Result{}, true
}

// process runs the steps after the rate check.
func (g *Gate) process(ctx context.Context, addr string, now time.Time, s Submission) Result {
	id := uuid.NewString()
	if s.Company != "" {
		g.log.Info("honeypot tripped", zap.String("addr", addr), zap.String("id", id))
		return Result{OK: true, ID: id, Suppressed: true}
	}

	if kind := Validate(s.Name, s.Email, s.Message); kind != "" {
		return Failure(kind)
	}

	msg := relay.Message{
		ID:          id,
		Name:        strings.TrimSpace(s.Name),
		Email:       strings.TrimSpace(s.Email),
		Topic:       strings.TrimSpace(s.Topic),
		Message:     strings.TrimSpace(s.Message),
		Locale:      strings.TrimSpace(s.Locale),
		SubmittedAt: now.UTC(),
	}

	if g.relay == nil {
		if g.recorder != nil {
			if err := g.recorder.Record(ctx, msg); err != nil {
				g.log.Error("record submission", zap.String("id", id), zap.Error(err))
				return Failure(KindGeneric)
			}
		}
		g.log.Info("submission accepted locally, no relay configured",
			zap.String("id", id), zap.String("email", msg.Email), zap.String("topic", msg.Topic))
		return Result{OK: true, ID: id}
	}

	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.relay.Deliver(rctx, msg); err != nil {
		g.log.Error("relay delivery failed",
			zap.String("relay", g.relay.Name()), zap.String("id", id), zap.Error(err))
		return Failure(KindUpstreamFailed)
	}
	g.log.Info("submission relayed", zap.String("relay", g.relay.Name()), zap.String("id", id))
	return Result{OK: true, ID: id, Delivered: true}
}
