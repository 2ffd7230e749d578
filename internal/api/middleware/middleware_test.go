// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidref/internal/api/problem"
)

func TestRecoverer_WritesProblem(t *testing.T) {
	r := NewRouter(StackConfig{})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaput") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var p problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "INTERNAL", p.Code)
	assert.NotContains(t, rec.Body.String(), "kaput")
}

func TestRequestID(t *testing.T) {
	r := NewRouter(StackConfig{})
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(problem.HeaderRequestID)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(problem.HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get(problem.HeaderRequestID), 36, "oversized IDs are replaced")
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := NewRouter(StackConfig{EnableMetrics: true})
	r.Get("/blob/{id}", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("12345")) })
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })

	ok := apiRequestsTotal.WithLabelValues(http.MethodGet, "/blob/{id}", "200")
	notFound := apiRequestsTotal.WithLabelValues(http.MethodGet, "/missing", "404")
	beforeOK, beforeNF := testutil.ToFloat64(ok), testutil.ToFloat64(notFound)
	beforeBytes := testutil.ToFloat64(blobBytesServed)

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blob/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, beforeOK+2, testutil.ToFloat64(ok))
	assert.Equal(t, beforeNF+1, testutil.ToFloat64(notFound))
	assert.Equal(t, beforeBytes+10, testutil.ToFloat64(blobBytesServed))
	assert.Zero(t, testutil.ToFloat64(apiInFlight))
}

func TestSecurityHeaders(t *testing.T) {
	r := NewRouter(StackConfig{})
	r.Get("/", func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestShouldTrace(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/healthz", false},
		{"/metrics", false},
		{"/blob/", false},
		{"/blob/3f2a", false},
		{"/blob", true},
		{"/blobs/3f2a", true},
		{"/", true},
		{"/api/v1/sessions", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, shouldTrace(r))
		})
	}
}

func TestIsBlobRoute(t *testing.T) {
	assert.True(t, isBlobRoute("/blob/{id}"))
	assert.False(t, isBlobRoute("/blob/"))
	assert.False(t, isBlobRoute("/blobs"))
	assert.False(t, isBlobRoute("/api/v1/videos"))
}
