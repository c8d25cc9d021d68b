package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/server"
)

func TestOpsServer_Health(t *testing.T) {
	srv := newOpsServer(config.ServerConfig{Port: 9090}, nil)
	rec := httptest.NewRecorder()

	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.Equal(t, ":9090", srv.Addr)
}

func TestOpsServer_Ready(t *testing.T) {
	checks := map[string]server.ReadinessCheck{
		"redis": func(context.Context) error { return nil },
		"zeebe": func(context.Context) error { return errors.New("unavailable") },
	}
	srv := newOpsServer(config.ServerConfig{}, checks)
	rec := httptest.NewRecorder()

	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "unavailable", body.Checks["zeebe"])
}

func TestOpsServer_Metrics(t *testing.T) {
	srv := newOpsServer(config.ServerConfig{}, nil)
	rec := httptest.NewRecorder()

	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
