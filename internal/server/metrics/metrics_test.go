package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuthOperation(t *testing.T) {
	m := New()

	m.RecordAuthOperation("login", ResultSuccess)
	m.RecordAuthOperation("login", ResultSuccess)
	m.RecordAuthOperation("login", ResultFailure)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authOperations.WithLabelValues("login", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOperations.WithLabelValues("login", ResultFailure)))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/auth/revoke/{username}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, u := range []string{"alice", "bob"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/revoke/"+u, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/auth/revoke/{username}", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInflight))
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.RecordAuthOperation("refresh", ResultFailure)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `auth_operations_total{operation="refresh",result="failure"} 1`))
}
