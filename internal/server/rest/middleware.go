package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const principalKey ctxKey = "principal"

// PrincipalFromContext returns the principal stored by the authenticate
// middleware.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get(common.AuthorizationHeaderName))
	if len(h) <= len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):])
}

// authenticate validates the bearer token and stores the principal in the
// request context. Missing or invalid tokens get 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, errUnauthorized.WithDetail("missing bearer token"))
			return
		}

		p, err := s.validator.ValidateAccessToken(token)
		if err != nil {
			s.logger.Debug(r.Context(), "bearer token rejected", "error", err)
			writeError(w, errUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// requirePolicy lets the request through only if the authenticated
// principal satisfies the named policy; otherwise 403.
func (s *Server) requirePolicy(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, errUnauthorized)
				return
			}

			allowed, err := s.policies.Evaluate(name, *p)
			if err != nil {
				s.logger.Error(r.Context(), "policy evaluation failed", "policy", name, "error", err)
				writeError(w, errInternal)
				return
			}
			if !allowed {
				s.logger.Info(r.Context(), "access denied", "policy", name, "principal", p.ID)
				writeError(w, errForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
