package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/ratelimit"
	"github.com/kindlehubapp/kindlehub/internal/service"
	"github.com/kindlehubapp/kindlehub/internal/store"
	"github.com/kindlehubapp/kindlehub/internal/store/sqlite"
)

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api humatest.TestAPI
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	return setupTestServerWithStore(t, opts, nil)
}

// setupTestServerWithStore lets wrap decorate the backing store.
func setupTestServerWithStore(t *testing.T, opts Options, wrap func(store.Store) store.Store) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var st store.Store = db
	if wrap != nil {
		st = wrap(st)
	}

	library := service.NewLibraryService(st, logger)
	sessions := service.NewSessionRegistry(func() *service.BatchService {
		return service.NewBatchService(st, library, logger)
	}, logger)

	s := NewServer(&Services{Library: library, Sessions: sessions}, opts, logger)
	return &testServer{Server: s, api: humatest.Wrap(t, s.API())}
}

// envelope mirrors the JSON envelope with a typed data field.
type envelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	assert.Equal(t, EnvelopeVersion, env.Version)
	return env
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/sessions", struct{}{})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[SessionResponse](t, resp).Data.ID
}

func sampleBatch() map[string]any {
	return map[string]any{
		"file_name": "My Clippings.json",
		"file_size": 2048,
		"clippings": []map[string]any{
			{"id": "k1", "title": "Dune", "author": "Frank Herbert", "type": "highlight", "content": "Fear is the mind-killer.", "date": "2024-03-01T10:15:00Z"},
			{"id": "k2", "title": "Dune", "author": "Frank Herbert", "type": "note", "content": "Reread"},
			{"id": "k3", "title": "Emma", "author": "Jane Austen", "type": "bookmark"},
		},
		"stats": map[string]any{"duplicatesRemoved": 2, "linkedNotes": 1},
	}
}

func (ts *testServer) createBatch(t *testing.T, session string) BatchStateResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/sessions/"+session+"/batch", sampleBatch())
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[BatchStateResponse](t, resp).Data
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createSession(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Status)
	assert.Equal(t, "healthy", env.Data.Components["store"].Status)
	assert.Equal(t, 1, env.Data.Sessions)
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	env := decode[any](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, Options{RateLimiter: limiter})

	first := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, first.Code)

	second := ts.api.Get("/health")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decode[any](t, second).Code)

	// Another client has its own bucket.
	other := ts.api.Get("/health", "X-Forwarded-For: 203.0.113.9")
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t, Options{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:5000", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:5000", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.10:4242", "192.0.2.10"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:4242", "2001:db8::1"},
		{"no port", nil, "192.0.2.11", "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestSessions(t *testing.T) {
	ts := setupTestServer(t, Options{})
	session := ts.createSession(t)

	resp := ts.api.Delete("/api/v1/sessions/" + session)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/sessions/" + session + "/batch")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[any](t, resp).Code)

	resp = ts.api.Delete("/api/v1/sessions/" + session)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetBook_NotFound(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get(fmt.Sprintf("/api/v1/books/%d", 999))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	env := decode[any](t, resp)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.Equal(t, "book 999 not found", env.Message)
}
