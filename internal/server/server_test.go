// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIServer_LandingPage(t *testing.T) {
	s := NewAPIServer()
	require.NoError(t, s.Init())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "metrics body")
	})
	require.NoError(t, s.Register("/metrics", "Metrics", "Prometheus metrics", handler))

	t.Run("root lists registered endpoints", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "gpumon")
		assert.Contains(t, body, `href="/metrics"`)
		assert.Contains(t, body, "Metrics")
	})

	t.Run("registered endpoint is served", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "metrics body", rec.Body.String())
	})

	t.Run("unknown path is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPIServer_RunAndShutdown(t *testing.T) {
	s := NewAPIServer(WithListenAddress("127.0.0.1:0"))
	require.NoError(t, s.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// give the listener a moment to come up
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on context cancellation")
	}

	assert.NoError(t, s.Shutdown())
}

func TestAPIServer_ServesOverTCP(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	s := NewAPIServer()
	require.NoError(t, s.Init())
	srv.Config.Handler = s.mux

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Available endpoints")
}

func TestAPIServer_Name(t *testing.T) {
	assert.Equal(t, "api-server", NewAPIServer().Name())
}
