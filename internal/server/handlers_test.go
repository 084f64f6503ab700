package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(newMemStore("ABCDEFGHJK"), nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, 1, response.Codes)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_HealthHandler_StoreDown(t *testing.T) {
	st := newMemStore()
	st.listErr = errDiskFull
	server := newTestServer(st, nil)

	w := httptest.NewRecorder()
	server.healthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_CodesHandler(t *testing.T) {
	server := newTestServer(newMemStore("ABCDEFGHJK", "BCDEFGHJKL"), nil)

	w := httptest.NewRecorder()
	server.codesHandler(w, httptest.NewRequest(http.MethodGet, "/codes", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp CodesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ABCDEFGHJK", "BCDEFGHJKL"}, resp.Codes)
	assert.Equal(t, 2, resp.Count)
}

func TestServer_CodesHandler_EmptyIsList(t *testing.T) {
	server := newTestServer(newMemStore(), nil)

	w := httptest.NewRecorder()
	server.codesHandler(w, httptest.NewRequest(http.MethodGet, "/codes", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"codes":[],"count":0}`, w.Body.String())
}

func TestServer_CodesHandler_Errors(t *testing.T) {
	st := newMemStore()
	st.listErr = errDiskFull
	server := newTestServer(st, nil)

	w := httptest.NewRecorder()
	server.codesHandler(w, httptest.NewRequest(http.MethodGet, "/codes", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	server.codesHandler(w, httptest.NewRequest(http.MethodDelete, "/codes", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_SetupRoutes(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>scanner</html>"), 0o644))

	server := newTestServer(newMemStore(), func(c *Config) { c.StaticDir = static })
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	for path, want := range map[string]int{
		"/health":  http.StatusOK,
		"/codes":   http.StatusOK,
		"/metrics": http.StatusOK,
		"/":        http.StatusOK,
		"/ws":      http.StatusBadRequest, // not an upgrade request
	} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), "scanner")
}

func TestServer_CloseClosesStore(t *testing.T) {
	st := newMemStore()
	server := newTestServer(st, nil)
	require.NoError(t, server.Close())
	assert.True(t, st.closed)
}
