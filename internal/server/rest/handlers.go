package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, errInvalidJSON.WithDetail(err.Error()))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e := toHTTPError(err)
	if e.Status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, e)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errBadRequest.WithDetail("username and password are required"))
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errBadRequest.WithDetail("username and password are required"))
		return
	}

	if err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "Success", Message: "User created successfully!"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Revoke(r.Context(), chi.URLParam(r, "username")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	name, ok := roleName(w, r)
	if !ok {
		return
	}

	if err := s.auth.CreateRole(r.Context(), name); err != nil {
		// an existing role is a client error on this endpoint
		if errors.Is(err, common.ErrorConflict) {
			writeError(w, errBadRequest.WithDetail("role already exists"))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, statusResponse{Status: "Success", Message: "Role created successfully"})
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	name, ok := roleName(w, r)
	if !ok {
		return
	}
	username := chi.URLParam(r, "username")

	if err := s.auth.AssignRole(r.Context(), username, name); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "Success", Message: "Role added to user successfully"})
}

// roleName reads the role from the roleName query parameter or, failing
// that, from a JSON body.
func roleName(w http.ResponseWriter, r *http.Request) (string, bool) {
	if name := r.URL.Query().Get("roleName"); name != "" {
		return name, true
	}

	var req roleRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, errInvalidJSON.WithDetail(err.Error()))
		return "", false
	}
	if req.RoleName == "" {
		writeError(w, errBadRequest.WithDetail("roleName is required"))
		return "", false
	}
	return req.RoleName, true
}
