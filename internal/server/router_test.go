package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abduss/grimoire/internal/auth"
	"github.com/abduss/grimoire/internal/config"
	"github.com/abduss/grimoire/internal/logger"
	"github.com/abduss/grimoire/internal/security"
	"github.com/abduss/grimoire/internal/store"
	"github.com/abduss/grimoire/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeBuckets struct {
	exists bool
	err    error
}

func (b fakeBuckets) BucketExists(context.Context, string) (bool, error) { return b.exists, b.err }

func newTestDeps(t *testing.T) Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Storage: config.StorageConfig{Driver: config.DriverMemory},
		MinIO:   config.MinIOConfig{Bucket: "grimoire-reference"},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://app.test"}},
		Auth:    config.AuthConfig{JWTSecret: "router-secret", JWTAlgorithm: "HS256"},
	}

	entities, err := store.NewMemory(user.Schema)
	require.NoError(t, err)
	users := user.NewStore(entities, security.NewHasher(bcrypt.MinCost))

	tokens, err := auth.NewTokenService(cfg.Auth)
	require.NoError(t, err)

	return Dependencies{
		Config:      cfg,
		AuthService: auth.NewService(users, tokens),
		Users:       users,
	}
}

func sendJSON(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthRoutes(t *testing.T) {
	deps := newTestDeps(t)
	router, err := NewRouter(deps)
	require.NoError(t, err)

	rr := sendJSON(t, router, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = sendJSON(t, router, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"storage":"memory"`)
}

func TestReadinessReportsFailingComponent(t *testing.T) {
	cases := []struct {
		name      string
		db        Pinger
		buckets   BucketChecker
		component string
	}{
		{"postgres down", fakePinger{err: errors.New("refused")}, nil, "postgres"},
		{"bucket missing", fakePinger{}, fakeBuckets{exists: false}, "minio"},
		{"minio down", nil, fakeBuckets{err: errors.New("timeout")}, "minio"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps(t)
			deps.DB = tc.db
			deps.ObjectStore = tc.buckets
			router, err := NewRouter(deps)
			require.NoError(t, err)

			rr := sendJSON(t, router, http.MethodGet, "/health/ready", nil, "")
			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.component)
		})
	}
}

func TestRegisterLoginAndListUsers(t *testing.T) {
	deps := newTestDeps(t)
	router, err := NewRouter(deps)
	require.NoError(t, err)

	rr := sendJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "samwise",
		"email":    "sam@example.com",
		"password": "Potat0es!",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(logger.CorrelationIDHeader))

	rr = sendJSON(t, router, http.MethodGet, "/v1/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = sendJSON(t, router, http.MethodPost, "/v1/auth/login", gin.H{"username": "samwise", "password": "Potat0es!"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))

	rr = sendJSON(t, router, http.MethodGet, "/v1/users?username=samwise", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"count":1`)
	assert.NotContains(t, rr.Body.String(), "hashed_password")

	rr = sendJSON(t, router, http.MethodGet, "/v1/users", nil, pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	deps := newTestDeps(t)
	router, err := NewRouter(deps)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "http://app.test", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	deps := newTestDeps(t)
	router, err := NewRouter(deps)
	require.NoError(t, err)

	rr := sendJSON(t, router, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "grimoire_http_requests_total")
}
