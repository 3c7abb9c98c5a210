package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/llm"
	"github.com/scrypster/energy-services/internal/metrics"
	"github.com/scrypster/energy-services/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatter struct{}

func (stubChatter) Send(_ context.Context, _ []llm.Message, content string) chat.Reply {
	return chat.Reply{RequestID: "r", Content: "answer to " + content, Role: llm.RoleAssistant}
}

type countingCache struct{ calls atomic.Int32 }

func (c *countingCache) Invalidate() { c.calls.Add(1) }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			AllowedOrigins: "http://localhost:5173",
		},
		Assistant: config.AssistantConfig{Timeout: 5 * time.Second, MaxHistory: 10},
		RateLimit: config.RateLimitConfig{ChatRequestsPerSecond: 100, ChatBurst: 100},
		Features:  config.FeaturesConfig{EnableChat: true, EnableMetrics: true},
	}
}

func testDeps() server.Deps {
	return server.Deps{
		Provider: datasets.NewLoader(datasets.NewDirSource("../datasets/testdata"), nil),
		Chatter:  stubChatter{},
		Catalog:  config.DefaultCatalog(),
		Metrics:  metrics.New(),
	}
}

func newTestServer(t *testing.T, cfg *config.Config, deps server.Deps) *httptest.Server {
	t.Helper()
	handler, hub := server.NewHandler(cfg, deps)
	if hub != nil {
		go hub.Run()
		t.Cleanup(hub.Stop)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_RouteRegistration(t *testing.T) {
	srv := newTestServer(t, testConfig(), testDeps())

	paths := []string{
		"/api/global/periods",
		"/api/global/status",
		"/api/global/yoy",
		"/api/global/sources",
		"/api/projections/peaks",
		"/api/regions",
		"/api/regions/comparison",
		"/api/regions/timeline",
		"/api/sectors/breakdown",
		"/api/sectors/timeseries",
		"/api/briefing",
		"/api/chat/suggestions",
		"/healthz",
		"/readyz",
		"/metrics",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig(), testDeps())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t, testConfig(), testDeps())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_MethodMismatch(t *testing.T) {
	srv := newTestServer(t, testConfig(), testDeps())

	resp, err := http.Post(srv.URL+"/api/global/periods", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_ChatRoundTrip(t *testing.T) {
	srv := newTestServer(t, testConfig(), testDeps())

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply chat.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "answer to hello", reply.Content)
}

func TestServer_ChatDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features.EnableChat = false
	srv := newTestServer(t, cfg, testDeps())

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ChatRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{ChatRequestsPerSecond: 0.01, ChatBurst: 1}
	srv := newTestServer(t, cfg, testDeps())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServer_DatasetRefresh(t *testing.T) {
	cache := &countingCache{}
	deps := testDeps()
	deps.Cache = cache
	srv := newTestServer(t, testConfig(), deps)

	resp, err := http.Post(srv.URL+"/api/datasets/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), cache.calls.Load())
}

func TestServer_MetricsRecordRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig(), testDeps())

	resp, err := http.Get(srv.URL + "/api/global/status")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `energy_http_requests_total{route="/api/global/status",status="200"} 1`)
}

func TestServer_StartsOnRandomPortAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, hub, err := server.Start(ctx, testConfig(), testDeps())
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	assert.NotNil(t, hub)
	assert.NotContains(t, addr, ":0")

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.Eventually(t, func() bool {
		_, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
		return err != nil
	}, 5*time.Second, 50*time.Millisecond)
}
