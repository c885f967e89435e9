package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hylla/civitas/internal/adapters/metrics"
	"github.com/hylla/civitas/internal/adapters/server/common"
)

// stubPublic serves one district for composition tests.
type stubPublic struct{}

func (stubPublic) ListDistricts(context.Context) ([]common.DistrictView, error) {
	return []common.DistrictView{{ID: "d1", Name: "Olaya"}}, nil
}

func (stubPublic) SubmitRequest(context.Context, common.SubmitRequest) (common.TrackingView, error) {
	return common.TrackingView{}, nil
}

func (stubPublic) TrackRequest(context.Context, string) (common.TrackingView, error) {
	return common.TrackingView{}, common.ErrNotFound
}

func (stubPublic) AddCitizenUpdate(context.Context, string, common.CitizenUpdateRequest) (common.TrackingView, error) {
	return common.TrackingView{}, nil
}

// TestNewHandlerRoutesSurfaces verifies health, API, and metrics mounts.
func TestNewHandlerRoutesSurfaces(t *testing.T) {
	recorder := metrics.NewRecorder()
	handler, cfg, err := NewHandler(Config{}, Dependencies{Public: stubPublic{}, Metrics: recorder})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.MetricsPath != "/metrics" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if rec := get("/api/v1/districts"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Olaya") {
		t.Fatalf("districts status = %d body %s", rec.Code, rec.Body.String())
	}
	if rec := get("/api/v1/track/ABCD2345"); rec.Code != http.StatusNotFound {
		t.Fatalf("track status = %d", rec.Code)
	}

	rec := get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `civitas_http_requests_total{result="2xx",surface="api"} 1`) {
		t.Fatalf("metrics missing api counter:\n%s", body)
	}
	if !strings.Contains(string(body), `civitas_http_requests_total{result="4xx",surface="api"} 1`) {
		t.Fatalf("metrics missing api 4xx counter:\n%s", body)
	}
}

// TestNewHandlerWithoutMetrics verifies the metrics mount is optional.
func TestNewHandlerWithoutMetrics(t *testing.T) {
	handler, _, err := NewHandler(Config{}, Dependencies{Public: stubPublic{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics status = %d, want 404", rec.Code)
	}
}

// TestNewHandlerRequiresPublicService verifies dependency enforcement.
func TestNewHandlerRequiresPublicService(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("NewHandler() error = nil, want non-nil")
	}
}

// TestNormalizeConfig verifies defaults and endpoint collision checks.
func TestNormalizeConfig(t *testing.T) {
	cfg, err := normalizeConfig(Config{APIEndpoint: "api/", MCPEndpoint: "//agents//"})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	want := Config{
		HTTPBind:      defaultBindAddress,
		APIEndpoint:   "/api",
		MCPEndpoint:   "/agents",
		MetricsPath:   "/metrics",
		ServerName:    "civitas",
		ServerVersion: "dev",
	}
	if cfg != want {
		t.Fatalf("normalizeConfig() = %#v, want %#v", cfg, want)
	}

	if _, err := normalizeConfig(Config{APIEndpoint: "/x", MCPEndpoint: "/x"}); err == nil {
		t.Fatal("expected api/mcp collision error")
	}
	if _, err := normalizeConfig(Config{MetricsPath: "/mcp"}); err == nil {
		t.Fatal("expected metrics/mcp collision error")
	}
	if got := normalizeEndpoint("/", "/fallback"); got != "/fallback" {
		t.Fatalf("normalizeEndpoint(/) = %q", got)
	}
}

// TestRunStopsOnCancel verifies graceful shutdown when the context ends.
func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Public: stubPublic{}}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
