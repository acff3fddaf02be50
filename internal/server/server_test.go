package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{
		Host:   "0.0.0.0",
		Port:   "8087",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRootAndLinks(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != "plat-mapbridge" {
		t.Fatalf("body=%v", body)
	}
	links := strings.Join(rec.Header().Values("Link"), "\n")
	if !strings.Contains(links, `</api/v1/maps>; rel="maps"`) {
		t.Fatalf("root links=%s", links)
	}
	if strings.Contains(links, "/events") {
		t.Fatalf("streams must not be linked: %s", links)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path: %d", rec.Code)
	}
}

func TestOpenAPIDocumentsHostChannel(t *testing.T) {
	s := newTestServer(t)
	oapi := s.OpenAPI()
	for _, p := range []string{
		"/api/v1/maps",
		"/api/v1/maps/{id}",
		"/api/v1/maps/{id}/commands/{method}",
		"/api/v1/maps/{id}/events",
		"/api/v1/info",
	} {
		if _, ok := oapi.Paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mapbridge_views_active") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestBaseURL(t *testing.T) {
	s := newTestServer(t)
	if got := s.BaseURL(); got != "http://localhost:8087" {
		t.Fatalf("base=%s", got)
	}
}
