package serve

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":      "<html><body><h1>home</h1></body></html>",
		"about.html":      "<p>no body tag</p>",
		"styles/main.css": "body{color:red}",
		"js/main.js":      "console.log(1)",
		"docs/index.html": "<html><BODY>docs</BODY></html>",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return dir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_InjectsScriptIntoHTML(t *testing.T) {
	h := New(Options{Root: writeSite(t)}, NewHub()).Handler()

	tests := []struct {
		path string
		want string
	}{
		{"/", "<h1>home</h1>" + scriptTag + "</body>"},
		{"/about.html", "<p>no body tag</p>" + scriptTag},
		{"/docs/", "docs" + scriptTag + "</BODY>"},
	}
	for _, tt := range tests {
		rec := get(t, h, tt.path)
		require.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Contains(t, rec.Body.String(), tt.want, tt.path)
		assert.Equal(t, 1, strings.Count(rec.Body.String(), scriptTag), tt.path)
	}
}

func TestServer_AssetsUnchanged(t *testing.T) {
	h := New(Options{Root: writeSite(t)}, NewHub()).Handler()

	rec := get(t, h, "/styles/main.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{color:red}", rec.Body.String())
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = get(t, h, "/missing.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), scriptTag)
}

func TestServer_ClientScriptAndMetrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "many_assets_step_results_total 1\n")
	})
	h := New(Options{Root: writeSite(t), Metrics: metricsHandler}, NewHub()).Handler()

	rec := get(t, h, scriptPath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "EventSource('/livereload')")

	rec = get(t, h, "/metrics")
	assert.Contains(t, rec.Body.String(), "many_assets_step_results_total")

	// Without a metrics handler /metrics is just a missing file.
	h = New(Options{Root: writeSite(t)}, NewHub()).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Shutdown()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	nextData := func() string {
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	assert.Equal(t, `{"token":""}`, nextData())
	require.Equal(t, 1, hub.Clients())

	hub.Broadcast("build-1")
	assert.Equal(t, `{"token":"build-1"}`, nextData())

	// Repeating the last token is not a new reload.
	hub.Broadcast("build-1")
	hub.Broadcast("build-2")
	assert.Equal(t, `{"token":"build-2"}`, nextData())
}

func TestHub_ShutdownRejectsClients(t *testing.T) {
	hub := NewHub()
	hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livereload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	s := New(Options{Host: "127.0.0.1", Port: 0, Root: writeSite(t)}, NewHub())
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/styles/main.css")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(body))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
