package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/quotelearn/internal/logging"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9090, ShutdownTimeout: time.Second}

		server, err := NewServer(zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.Echo())
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8090, server.config.Port)
		assert.Equal(t, 10*time.Second, server.config.ShutdownTimeout)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	server, err := NewServer(zap.NewNop(), nil, WithVersion("quotelearnd", "1.2.3"))
	require.NoError(t, err)

	rec := serve(server, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Service: "quotelearnd", Version: "1.2.3"}, resp)
}

func TestHandleReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("nats disconnected") }

	tests := []struct {
		name   string
		opts   []Option
		code   int
		status string
		checks map[string]string
	}{
		{
			name:   "no checks",
			code:   http.StatusOK,
			status: "ready",
			checks: map[string]string{},
		},
		{
			name:   "all passing",
			opts:   []Option{WithCheck("store", ok), WithCheck("rules", ok)},
			code:   http.StatusOK,
			status: "ready",
			checks: map[string]string{"store": "ok", "rules": "ok"},
		},
		{
			name:   "one failing",
			opts:   []Option{WithCheck("store", ok), WithCheck("events", down)},
			code:   http.StatusServiceUnavailable,
			status: "not_ready",
			checks: map[string]string{"store": "ok", "events": "nats disconnected"},
		},
		{
			name:   "nil check ignored",
			opts:   []Option{WithCheck("store", nil)},
			code:   http.StatusOK,
			status: "ready",
			checks: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(zap.NewNop(), nil, tt.opts...)
			require.NoError(t, err)

			rec := serve(server, http.MethodGet, "/ready")
			assert.Equal(t, tt.code, rec.Code)

			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.checks, resp.Checks)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Run("absent without handler", func(t *testing.T) {
		server, err := NewServer(zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, serve(server, http.MethodGet, "/metrics").Code)
	})

	t.Run("serves handler", func(t *testing.T) {
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("quotelearn_quotes_processed_total 1\n"))
		})
		server, err := NewServer(zap.NewNop(), nil, WithMetricsHandler(h))
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "quotelearn_quotes_processed_total")
	})
}

func TestMCPRoute(t *testing.T) {
	server, err := NewServer(zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, serve(server, http.MethodPost, "/mcp").Code)

	var methods []string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusAccepted)
	})
	server, err = NewServer(zap.NewNop(), nil, WithMCPHandler(h))
	require.NoError(t, err)
	for _, m := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		assert.Equal(t, http.StatusAccepted, serve(server, m, "/mcp").Code)
	}
	assert.Equal(t, []string{http.MethodPost, http.MethodGet, http.MethodDelete}, methods)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	server, err := NewServer(zap.New(core), nil)
	require.NoError(t, err)

	var seen string
	server.Echo().GET("/probe", func(c echo.Context) error {
		seen = logging.RequestIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})
	server.Echo().GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream failed")
	})

	rec := serve(server, http.MethodGet, "/probe")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rid := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, rid)
	assert.Equal(t, rid, seen)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, rid, entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, http.StatusNoContent, entries[0].ContextMap()["status"])

	rec = serve(server, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	failed := logs.FilterMessage("http request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
}

func TestStart_GracefulShutdown(t *testing.T) {
	server, err := NewServer(zap.NewNop(), &Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		return server.Echo().ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + server.Echo().ListenerAddr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}
