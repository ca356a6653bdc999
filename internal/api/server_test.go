package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade/internal/api"
	"github.com/atlas-desktop/papertrade/internal/engine"
	"github.com/atlas-desktop/papertrade/internal/marketdata"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*api.Server, *engine.Engine) {
	t.Helper()
	start := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	market := marketdata.NewSyntheticProvider(zap.NewNop(), 42, start, time.Minute, 120)

	eng, err := engine.New(engine.Deps{
		Logger: zap.NewNop(),
		Market: market,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Keep the end-of-day cutoff out of the way of wall-clock test runs.
	cfg := types.DefaultEngineConfig()
	cfg.EndOfDay = "23:59"
	if err := eng.Configure(cfg); err != nil {
		t.Fatal(err)
	}

	server := api.NewServer(zap.NewNop(), types.DefaultServerConfig(), eng)
	return server, eng
}

func doRequest(t *testing.T, server *api.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != string(types.SessionIdle) {
		t.Errorf("expected idle state, got %v", body["state"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/session/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status returned %d", rec.Code)
	}

	var status engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.State != types.SessionIdle {
		t.Errorf("expected idle, got %s", status.State)
	}
	if len(status.Watchlist) == 0 {
		t.Error("default watchlist should be populated")
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	server, eng := newTestServer(t)

	// Pausing an idle session conflicts.
	if rec := doRequest(t, server, "POST", "/api/v1/session/pause", ""); rec.Code != http.StatusConflict {
		t.Errorf("pause while idle should be 409, got %d", rec.Code)
	}

	if rec := doRequest(t, server, "POST", "/api/v1/session/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("start returned %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(t, server, "POST", "/api/v1/session/start", ""); rec.Code != http.StatusConflict {
		t.Errorf("double start should be 409, got %d", rec.Code)
	}

	if rec := doRequest(t, server, "POST", "/api/v1/session/pause", ""); rec.Code != http.StatusOK {
		t.Errorf("pause returned %d", rec.Code)
	}
	if rec := doRequest(t, server, "POST", "/api/v1/session/resume", ""); rec.Code != http.StatusOK {
		t.Errorf("resume returned %d", rec.Code)
	}
	if rec := doRequest(t, server, "POST", "/api/v1/session/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("stop returned %d", rec.Code)
	}
	if got := eng.State(); got != types.SessionIdle {
		t.Errorf("engine should be idle after stop, got %s", got)
	}
}

func TestConfigureEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{"strategy":"day_rsi","watchlist":["AAPL"],"initialCapital":"50000","risk":{"dailyLossPct":"0.03"}}`
	rec := doRequest(t, server, "POST", "/api/v1/session/configure", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("configure returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, "GET", "/api/v1/session/status", "")
	var status engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Strategy != "day_rsi" {
		t.Errorf("strategy not applied: %s", status.Strategy)
	}
	// Provided risk fields override defaults; omitted ones keep them.
	if !status.Config.Risk.DailyLossPct.Equal(decimal.NewFromFloat(0.03)) {
		t.Errorf("daily loss fraction not applied: %s", status.Config.Risk.DailyLossPct)
	}
	if !status.Config.Risk.MaxPositionPct.Equal(decimal.NewFromFloat(0.10)) {
		t.Errorf("unset risk fields should keep defaults: %s", status.Config.Risk.MaxPositionPct)
	}

	// Unknown strategies are rejected up front.
	rec = doRequest(t, server, "POST", "/api/v1/session/configure", `{"strategy":"nope","watchlist":["AAPL"],"initialCapital":"50000"}`)
	if rec.Code == http.StatusOK {
		t.Error("unknown strategy should not configure")
	}

	// Malformed JSON is a 400.
	rec = doRequest(t, server, "POST", "/api/v1/session/configure", `{oops`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body should be 400, got %d", rec.Code)
	}
}

func TestPortfolioEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/portfolio", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("portfolio returned %d", rec.Code)
	}

	rec = doRequest(t, server, "GET", "/api/v1/portfolio/orders?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("orders returned %d", rec.Code)
	}
	rec = doRequest(t, server, "GET", "/api/v1/portfolio/orders?limit=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit should be 400, got %d", rec.Code)
	}

	rec = doRequest(t, server, "GET", "/api/v1/portfolio/performance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("performance returned %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	// Prime the gauges through a status read.
	doRequest(t, server, "GET", "/api/v1/session/status", "")

	rec := doRequest(t, server, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "papertrade_equity") {
		t.Error("metrics output missing equity gauge")
	}
}
