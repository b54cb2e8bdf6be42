package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/pointledger/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:            0,
		ShutdownTimeoutSecs: 1,
		TreasuryOwner:       "0xowner",
		PointPrice:          100_000_000,
		StorageDriver:       config.StorageMemory,
		IdempotencyBackend:  config.IdempotencyMemory,
		IdempotencyTTLMins:  60,
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		JWTIssuer:           "pointledger",
		RateLimitRPS:        100,
		RateLimitBurst:      100,
		PprofAllowedCIDRs:   []string{"127.0.0.0/8"},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApp_Memory(t *testing.T) {
	a, err := NewApp(testConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/health/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/api/v1/products").Code)

	rec := get(t, a.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewApp_RedisIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.IdempotencyBackend = config.IdempotencyRedis
	cfg.RedisHost = mr.Host()
	cfg.RedisPort = port

	a, err := NewApp(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/health/ready").Code)

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, a.Handler(), "/health/ready").Code)
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	cfg := testConfig()
	cfg.IdempotencyBackend = config.IdempotencyRedis
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = port

	_, err = NewApp(cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(testConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
