package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "TaskFlow", Version: "test", Environment: "test", PublicURL: "https://taskflow.test"},
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 8080, RequestTimeout: 5 * time.Second},
		Storage: config.StorageConfig{Driver: config.StorageDriverMemory},
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			ExpiresIn:        time.Hour,
			RefreshExpiresIn: 24 * time.Hour,
			Issuer:           "taskflow-test",
		},
		Identity: config.IdentityConfig{Provider: "local"},
		Security: config.SecurityConfig{CORSAllowedOrigins: "*"},
		Metrics:  config.MetricsConfig{Enabled: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	rt, err := NewRuntime(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	srv, err := New(rt)
	require.NoError(t, err)
	return srv
}

func call(t *testing.T, srv *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, srv *Server, email string) string {
	t.Helper()

	rec := call(t, srv, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"`+email+`","password":"long-enough-password","name":"Dev"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/ready", "", "").Code)

	rec := call(t, srv, http.MethodGet, "/health/detailed", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"memory"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/users/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/users/me", "garbage", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/invitations?boardId=x&memberId=y", "", "").Code)
}

func TestRegisterThenUseGraphQL(t *testing.T) {
	srv := newTestServer(t, testConfig())
	token := register(t, srv, "dev@example.com")

	rec := call(t, srv, http.MethodGet, "/api/v1/users/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"dev@example.com"`)

	rec = call(t, srv, http.MethodPost, "/graphql", token, `{"query":"mutation { createBoard(title: \"Test Board\") { title members { role } } }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Test Board"`)
	assert.Contains(t, rec.Body.String(), `"role":"ADMIN"`)

	rec = call(t, srv, http.MethodPost, "/graphql", "", `{"query":"{ boards { id } }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")

	rec = call(t, srv, http.MethodPost, "/graphql", "not-a-token", `{"query":"{ boards { id } }"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := call(t, srv, http.MethodPost, "/api/v1/auth/register", "", `{"email":"dev@example.com","password":"long-enough-password","name":"Dev"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/api/v1/auth/logout", resp.AccessToken, "").Code)

	rec = call(t, srv, http.MethodPost, "/api/v1/auth/refresh", "", `{"refreshToken":"`+resp.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())
	call(t, srv, http.MethodGet, "/health", "", "")

	rec := call(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/health",status="200"}`)
}

func TestRuntimeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port, CacheTTL: time.Minute, ChannelPrefix: "notifications:"}
	srv := newTestServer(t, cfg)
	token := register(t, srv, "dev@example.com")

	rec := call(t, srv, http.MethodPost, "/graphql", token, `{"query":"mutation { createBoard(title: \"Cached\") { id } }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, srv, http.MethodPost, "/graphql", token, `{"query":"{ boards { title } }"}`)
	assert.Contains(t, rec.Body.String(), `"title":"Cached"`)

	rec = call(t, srv, http.MethodGet, "/health/detailed", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis"`)
}
