// Package web serves the single-page analysis UI.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KaramelBytes/dataviz-agent/internal/agent"
	"github.com/KaramelBytes/dataviz-agent/internal/render"
	"github.com/KaramelBytes/dataviz-agent/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const cookieName = "dataviz"

// Config holds configuration for the UI server.
type Config struct {
	Addr           string
	SessionSecret  string
	CookieSecure   bool
	SessionIdle    time.Duration
	MaxUploadBytes int64
	PreviewRows    int
	DefaultModel   string
	Agent          *agent.Agent
	Logger         *zap.Logger
}

// Server is the UI server. Credentials and datasets stay in the in-memory
// session store; the cookie only carries the session id.
type Server struct {
	cfg          Config
	agent        *agent.Agent
	renderer     *render.Renderer
	sessions     *session.Store
	sessionStore *sessions.CookieStore
	logger       *zap.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		logger.Debug("no session secret configured; using an ephemeral key")
	}
	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(86400) // 1 day
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	// ListenAndServe is plain HTTP; Secure is only right behind a TLS proxy.
	sessionStore.Options.Secure = cfg.CookieSecure

	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 200 << 20
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 5
	}
	return &Server{
		cfg:          cfg,
		agent:        cfg.Agent,
		renderer:     render.New(logger),
		sessions:     session.NewStore(),
		sessionStore: sessionStore,
		logger:       logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)
	r.Get("/", s.handlePage)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/settings", s.handleSettings)
	r.Post("/dataset", s.handleDataset)
	r.Post("/analyze", s.handleAnalyze)
	return r
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting UI server", zap.String("addr", "http://"+s.cfg.Addr))

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Idle session pruning
	eg.Go(func() error {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-t.C:
				if n := s.sessions.Prune(s.cfg.SessionIdle); n > 0 {
					s.logger.Debug("pruned idle sessions", zap.Int("count", n))
				}
			}
		}
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
