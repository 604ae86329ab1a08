package rest

import (
	"github.com/dmitrijs2005/catalogauth/internal/server/policy"
	"github.com/go-chi/chi/v5"
)

func (s *Server) authRoutes(r chi.Router) {
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	// Anonymous: the access token presented here is usually expired.
	r.Post("/refresh-token", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.requirePolicy(policy.AdminOnly)).Post("/revoke/{username}", s.handleRevoke)
		r.With(s.requirePolicy(policy.SuperAdminOnly)).Post("/role/create", s.handleCreateRole)
		r.With(s.requirePolicy(policy.SuperAdminOnly)).Post("/role/add/{username}", s.handleAssignRole)
	})
}
