// Package server provides the HTTP API over the content store and the
// contact gate.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/KaramelBytes/folio/internal/config"
	"github.com/KaramelBytes/folio/internal/contact"
	"github.com/KaramelBytes/folio/internal/content"
)

// maxContactBody bounds the contact request body.
const maxContactBody = 64 << 10

// Deps are the components served by the HTTP API.
type Deps struct {
	Config   *config.Global
	Store    *content.Store
	Renderer *content.Renderer
	Gate     *contact.Gate
	Logger   *zap.Logger
}

// Server is the HTTP server.
type Server struct {
	cfg      *config.Global
	store    *content.Store
	renderer *content.Renderer
	gate     *contact.Gate
	log      *zap.Logger
	metrics  *metrics
	sweeper  *cron.Cron
	router   chi.Router
}

// New creates a new server.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.Store == nil || d.Gate == nil {
		return nil, errors.New("server: config, store and gate are required")
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	renderer := d.Renderer
	if renderer == nil {
		renderer = content.NewRenderer()
	}
	s := &Server{
		cfg:      d.Config,
		store:    d.Store,
		renderer: renderer,
		gate:     d.Gate,
		log:      log.Named("http"),
		metrics:  newMetrics(),
		sweeper:  cron.New(),
	}
	if err := s.scheduleSweep(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(s.metrics.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Get("/{locale}/feed.xml", s.handleFeed)

	r.Route("/api", func(r chi.Router) {
		r.Post("/contact", s.handleContact)
		r.Route("/{locale}", func(r chi.Router) {
			r.Get("/posts", s.handleListPosts)
			r.Get("/posts/{slug}", s.handleGetPost)
			r.Get("/tags", s.handleTags)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// scheduleSweep registers the periodic rate-bucket sweep.
func (s *Server) scheduleSweep() error {
	every := time.Duration(s.cfg.RateLimitSweepSec) * time.Second
	if every <= 0 {
		every = time.Minute
	}
	_, err := s.sweeper.AddFunc("@every "+every.String(), s.sweepBuckets)
	if err != nil {
		return fmt.Errorf("schedule bucket sweep: %w", err)
	}
	return nil
}

func (s *Server) sweepBuckets() {
	l := s.gate.Limiter()
	n := l.Sweep(time.Now())
	s.metrics.buckets.Set(float64(l.Len()))
	if n > 0 {
		s.log.Debug("swept rate buckets", zap.Int("removed", n), zap.Int("remaining", l.Len()))
	}
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.sweeper.Start()
	s.log.Info("server starting", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		<-s.sweeper.Stop().Done()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	stopped := s.sweeper.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
		s.log.Warn("bucket sweep still running at shutdown")
	}
	return nil
}
