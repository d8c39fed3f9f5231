package server

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/workspace"
)

func newTestHandler(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()
	stack, err := NewStack(StackConfig{Workspace: workspace.Config{RootDir: t.TempDir()}})
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	cfg.Mode = "test"
	handler, err := NewRouter(cfg, stack.Service, nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return handler
}

func TestRouterRunCodeUnsupportedLanguage(t *testing.T) {
	handler := newTestHandler(t, RouterConfig{})

	for _, path := range []string{"/run-code", "/api/v1/run-code"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"language":"cobol","source_code":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		var resp struct {
			Output string `json:"output"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Output != "Language 'cobol' is not supported yet." {
			t.Fatalf("%s output = %q", path, resp.Output)
		}
		if w.Header().Get("X-Trace-Id") == "" {
			t.Fatal("trace id header missing")
		}
	}
}

func TestRouterGzip(t *testing.T) {
	handler := newTestHandler(t, RouterConfig{Gzip: GzipConfig{Enabled: true, MinSize: 1}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("response not compressed: %v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if !strings.Contains(string(body), `"javascript"`) {
		t.Fatalf("languages body = %s", body)
	}
}

func TestRouterHealth(t *testing.T) {
	handler := newTestHandler(t, RouterConfig{})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
}

func TestNewStackLanguages(t *testing.T) {
	stack, err := NewStack(StackConfig{Workspace: workspace.Config{RootDir: t.TempDir()}})
	if err != nil {
		t.Fatalf("default languages should build: %v", err)
	}
	if got := len(stack.Service.Languages()); got != len(profile.DefaultLanguages()) {
		t.Fatalf("registered languages = %d, want built-in set", got)
	}
	_, err = NewStack(StackConfig{
		Workspace: workspace.Config{RootDir: t.TempDir()},
		Languages: []profile.LanguageSpec{{ID: "broken"}},
	})
	if err == nil {
		t.Fatal("expected error for language without a run command")
	}
}
