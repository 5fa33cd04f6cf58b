package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/credential-service/internal/api/http/handlers"
	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/domain"
	"github.com/spec-kit/credential-service/internal/observability"
	"github.com/spec-kit/credential-service/internal/repository"
	"github.com/spec-kit/credential-service/internal/service"
)

const testSecret = "test-only-signing-secret"

type failingStore struct{}

func (failingStore) Save(context.Context, *domain.Identity) error { return errors.New("disk full") }
func (failingStore) FindByEmail(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrIdentityNotFound
}
func (failingStore) GetByID(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrIdentityNotFound
}
func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestApp(t *testing.T, repo repository.IdentityRepository) *fiber.App {
	t.Helper()
	cfg := config.Config{
		App: config.AppConfig{Name: "credential-service", Version: "test", RequestTimeoutSeconds: 5},
		Auth: config.AuthConfig{
			JWTSecret:             testSecret,
			TokenIssuer:           "credential-service",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
			PasswordMinLength:     6,
			PasswordMaxBytes:      72,
			EmailMaxLength:        254,
		},
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics(cfg.App.Name)

	authService, err := service.NewAuthService(cfg, service.AuthDependencies{
		IdentityRepo: repo,
		Metrics:      metrics,
		Logger:       logger,
	})
	require.NoError(t, err)

	return NewApp(cfg.App, logger, metrics, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, "memory", authService),
		Identity:       handlers.NewIdentityHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestScenario_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t, repository.NewMemoryIdentityRepository())
	creds := `{"email":"a@x.com","password":"secret1"}`

	status, body := do(t, app, nethttp.MethodPost, "/register", creds, nil)
	require.Equal(t, nethttp.StatusCreated, status)
	assert.NotEmpty(t, body["message"])
	assert.NotContains(t, body, "password")

	status, body = do(t, app, nethttp.MethodPost, "/register", creds, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "DUPLICATE_IDENTITY", errorCode(body))

	status, body = do(t, app, nethttp.MethodPost, "/login", `{"email":"a@x.com","password":"wrong"}`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "INVALID_CREDENTIAL", errorCode(body))

	status, body = do(t, app, nethttp.MethodPost, "/login", `{"email":"nobody@x.com","password":"secret1"}`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "IDENTITY_NOT_FOUND", errorCode(body))

	status, body = do(t, app, nethttp.MethodPost, "/login", creds, nil)
	require.Equal(t, nethttp.StatusOK, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "Bearer", body["token_type"])

	claims, err := auth.NewTokenManager(testSecret, "credential-service", time.Hour).ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	status, body = do(t, app, nethttp.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, claims.IdentityID(), body["id"])
	assert.NotContains(t, body, "password_hash")
}

func TestRegister_InvalidInput(t *testing.T) {
	app := newTestApp(t, repository.NewMemoryIdentityRepository())

	status, body := do(t, app, nethttp.MethodPost, "/register", `{"email":"nope","password":"x"}`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")

	status, body = do(t, app, nethttp.MethodPost, "/register", `{"email":`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestRegister_StorageFailureIsGeneric500(t *testing.T) {
	app := newTestApp(t, failingStore{})

	status, body := do(t, app, nethttp.MethodPost, "/register", `{"email":"a@x.com","password":"secret1"}`, nil)
	assert.Equal(t, nethttp.StatusInternalServerError, status)
	assert.Equal(t, "STORAGE_FAILURE", errorCode(body))
	assert.NotContains(t, body["error"].(map[string]any)["message"], "disk full")
}

func TestMe_RejectsMissingAndExpiredTokens(t *testing.T) {
	repo := repository.NewMemoryIdentityRepository()
	app := newTestApp(t, repo)

	status, body := do(t, app, nethttp.MethodGet, "/me", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = do(t, app, nethttp.MethodPost, "/register", `{"email":"e@x.com","password":"secret1"}`, nil)
	require.Equal(t, nethttp.StatusCreated, status)
	identity, err := repo.FindByEmail(context.Background(), "e@x.com")
	require.NoError(t, err)

	expired, err := auth.NewTokenManager(testSecret, "credential-service", time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-90 * time.Minute) }).
		GenerateToken(identity.ID)
	require.NoError(t, err)

	status, body = do(t, app, nethttp.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer " + expired.Value})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "token expired", body["error"].(map[string]any)["message"])
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, repository.NewMemoryIdentityRepository())

	status, body := do(t, app, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = do(t, app, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	do(t, app, nethttp.MethodPost, "/login", `{"email":"ghost@x.com","password":"secret1"}`, nil)

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `auth_operations_total{operation="login",outcome="identity_not_found",service="credential-service"} 1`)
}

func TestHealthReady_StoreDown(t *testing.T) {
	app := newTestApp(t, failingStore{})

	status, body := do(t, app, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))

	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "unavailable", details["memory"])
	assert.NotContains(t, fmt.Sprint(body), "connection refused")
}

func scrapeMetrics(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode, string(raw))
	return string(raw)
}

func TestMetrics_RouteAndMethodLabelsSurviveLaterRequests(t *testing.T) {
	app := newTestApp(t, repository.NewMemoryIdentityRepository())

	status, _ := do(t, app, nethttp.MethodPost, "/login", `{"email":"nope","password":"x"}`, nil)
	require.Equal(t, nethttp.StatusBadRequest, status)
	status, _ = do(t, app, nethttp.MethodPost, "/register", `{"email":`, nil)
	require.Equal(t, nethttp.StatusBadRequest, status)
	do(t, app, nethttp.MethodGet, "/health/live", "", nil)
	do(t, app, nethttp.MethodGet, "/me", "", nil)
	for i := 0; i < 20; i++ {
		do(t, app, nethttp.MethodGet, fmt.Sprintf("/scan/%d/wp-admin", i), "", nil)
	}

	// Scrape twice so the first scrape's own request is also recorded.
	scrapeMetrics(t, app)
	out := scrapeMetrics(t, app)

	assert.Contains(t, out, `http_errors_total{code="VALIDATION_FAILED",method="POST",path="/login",service="credential-service"} 1`)
	assert.Contains(t, out, `http_errors_total{code="VALIDATION_FAILED",method="POST",path="/register",service="credential-service"} 1`)
	assert.Contains(t, out, `http_errors_total{code="UNAUTHORIZED",method="GET",path="/me",service="credential-service"} 1`)
	assert.Contains(t, out, `http_errors_total{code="NOT_FOUND",method="GET",path="unmatched",service="credential-service"} 20`)
	assert.Contains(t, out, `http_requests_total{method="POST",path="/login",service="credential-service",status="400"} 1`)
	assert.Contains(t, out, `http_requests_total{method="GET",path="/health/live",service="credential-service",status="200"} 1`)
	assert.Contains(t, out, `http_requests_total{method="GET",path="/metrics",service="credential-service",status="200"} 1`)
	assert.Contains(t, out, `http_requests_total{method="GET",path="unmatched",service="credential-service",status="404"} 20`)
	assert.NotContains(t, out, "wp-admin")
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, repository.NewMemoryIdentityRepository())

	status, body := do(t, app, nethttp.MethodGet, "/nope", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}
