package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/catalogauth/internal/common"
)

// HTTPError is the JSON error body.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail returns a copy of the error with specific details.
func (e *HTTPError) WithDetail(detail string) *HTTPError {
	return &HTTPError{Code: e.Code, Message: e.Message, Detail: detail, Status: e.Status}
}

var (
	errInvalidJSON      = &HTTPError{Code: "invalid_json", Message: "Invalid JSON format", Status: http.StatusBadRequest}
	errBadRequest       = &HTTPError{Code: "bad_request", Message: "Bad request", Status: http.StatusBadRequest}
	errUnauthorized     = &HTTPError{Code: "unauthorized", Message: "Unauthorized", Status: http.StatusUnauthorized}
	errForbidden        = &HTTPError{Code: "forbidden", Message: "Forbidden", Status: http.StatusForbidden}
	errNotFound         = &HTTPError{Code: "not_found", Message: "Not found", Status: http.StatusNotFound}
	errMethodNotAllowed = &HTTPError{Code: "method_not_allowed", Message: "Method not allowed", Status: http.StatusMethodNotAllowed}
	errConflict         = &HTTPError{Code: "conflict", Message: "Conflict", Status: http.StatusConflict}
	errInternal         = &HTTPError{Code: "internal_error", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func writeError(w http.ResponseWriter, e *HTTPError) {
	writeJSON(w, e.Status, e)
}

// toHTTPError maps service errors to responses. Server-side failures carry
// no detail.
func toHTTPError(err error) *HTTPError {
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		return errUnauthorized
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrInvalidToken):
		return errBadRequest.WithDetail(err.Error())
	case errors.Is(err, common.ErrorConflict):
		return errConflict.WithDetail(err.Error())
	default:
		return errInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
