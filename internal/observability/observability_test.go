package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/credential-service/internal/config"
)

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"}, config.AppConfig{Name: "svc", Env: "test"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_DebugLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "DEBUG"}, config.AppConfig{Name: "svc"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("svc")
	m.RecordRequest("/login", http.MethodPost, 200, 20*time.Millisecond)
	m.RecordRequest("/login", http.MethodPost, 200, 30*time.Millisecond)
	m.RecordError("/login", http.MethodPost, "INVALID_CREDENTIAL")
	m.RecordAuthOutcome("login", OutcomeInvalidCredential)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodPost, "/login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues(http.MethodPost, "/login", "INVALID_CREDENTIAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("login", OutcomeInvalidCredential)))

	var nilMetrics *Metrics
	nilMetrics.RecordAuthOutcome("login", OutcomeSuccess)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("svc")
	m.RecordAuthOutcome("register", OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auth_operations_total{operation="register",outcome="success",service="svc"} 1`)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics("svc")

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "req-42", string(body))
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/ping", entries[0].ContextMap()["path"])
	assert.EqualValues(t, 200, entries[0].ContextMap()["status"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues(http.MethodGet, "/ping", "200")))
}

func TestRequestLogger_MintsRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(resp.Header.Get("X-Request-ID")), 36)
}

func TestRequestLogger_LabelsUseRoutePattern(t *testing.T) {
	metrics := NewMetrics("svc")

	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/identities/:id", func(c *fiber.Ctx) error {
		return c.SendString(RouteLabel(c))
	})

	for _, path := range []string{"/identities/1", "/identities/2", "/nope/a", "/nope/b", "/nope/c"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues(http.MethodGet, "/identities/:id", "200")))
	// Unmatched paths collapse into one series however many distinct URLs arrive.
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.requestsTotal))
}

func TestMarkUnmatched(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		MarkUnmatched(c, c.Next())
		return c.SendString(RouteLabel(c))
	})
	app.Post("/login", func(c *fiber.Ctx) error { return fiber.ErrBadRequest })

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/login", "/login"},
		{http.MethodGet, "/missing", UnmatchedRoute},
		{http.MethodGet, "/login", UnmatchedRoute},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, tt.want, string(body), "%s %s", tt.method, tt.path)
	}
}
