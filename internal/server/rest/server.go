// Package rest exposes the auth service over HTTP using a chi router.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/logging"
	"github.com/dmitrijs2005/catalogauth/internal/server/auth"
	"github.com/dmitrijs2005/catalogauth/internal/server/metrics"
	"github.com/dmitrijs2005/catalogauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// Gateway is the subset of services.AuthService used by the handlers.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	Register(ctx context.Context, username, email, password string) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*services.TokenPair, error)
	Revoke(ctx context.Context, username string) error
	CreateRole(ctx context.Context, name string) error
	AssignRole(ctx context.Context, username, role string) error
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Principal, error)
}

// PolicyEvaluator decides whether a principal satisfies a named policy.
type PolicyEvaluator interface {
	Evaluate(name string, p auth.Principal) (bool, error)
}

type Server struct {
	address   string
	logger    logging.Logger
	auth      Gateway
	validator TokenValidator
	policies  PolicyEvaluator
	metrics   *metrics.Metrics
}

// NewServer builds the HTTP server. m may be nil, in which case no metrics
// are recorded and /metrics is not mounted.
func NewServer(address string, l logging.Logger, g Gateway, v TokenValidator, p PolicyEvaluator, m *metrics.Metrics) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		auth:      g,
		validator: v,
		policies:  p,
		metrics:   m,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/auth", s.authRoutes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errMethodNotAllowed)
	})

	return r
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. It returns only
// after in-flight requests have finished or the shutdown timeout expired.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Serve returns as soon as Shutdown begins; wait for it to drain.
	<-stopped
	return nil
}
