package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apexpool/feetier/internal/domain"
	"github.com/apexpool/feetier/internal/server/handler"
	"github.com/apexpool/feetier/internal/service"
)

type fakeSource struct {
	readings map[string][]int64
}

func (s *fakeSource) Readings(_ context.Context, poolID string) ([]int64, error) {
	r, ok := s.readings[poolID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func testPool() domain.Pool {
	return domain.Pool{
		ID:      "pool-1",
		Windows: []string{"1h", "24h"},
		Weights: []uint64{6000, 4000},
		Tiers: domain.TierConfig{
			LowTrigger:  50_000,
			HighTrigger: 150_000,
			LowFee:      500,
			RegularFee:  3000,
			HighFee:     10_000,
		},
	}
}

func newTestServer(t *testing.T, src domain.VolatilitySource) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := service.New(service.Options{
		Source:   src,
		Consumer: service.NewLogConsumer(logger),
	}, logger)
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	if err := svc.RegisterPool(testPool()); err != nil {
		t.Fatalf("RegisterPool: %v", err)
	}

	srv := NewServer(Config{Port: 0}, Handlers{
		Health: handler.NewHealthHandler("serve", svc.PoolIDs, logger),
		Fees:   handler.NewFeeHandler(svc, logger),
	}, logger)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["mode"] != "serve" {
		t.Errorf("mode field = %v, want serve", body["mode"])
	}
	if body["pools"] != float64(1) {
		t.Errorf("pools field = %v, want 1", body["pools"])
	}
}

func TestGetFeeBeforeEvaluation(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	resp, err := http.Get(ts.URL + "/api/pools/pool-1/fee")
	if err != nil {
		t.Fatalf("GET fee: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestEvaluateThenGetFee(t *testing.T) {
	ts := newTestServer(t, &fakeSource{
		readings: map[string][]int64{"pool-1": {160_000, 160_000}},
	})

	// First evaluation bootstraps to Regular regardless of the readings.
	resp, err := http.Post(ts.URL+"/api/pools/pool-1/evaluate", "", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("evaluate status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["tier"] != "REGULAR" {
		t.Errorf("bootstrap tier = %v, want REGULAR", body["tier"])
	}

	// Second evaluation reads the high volatility.
	resp, err = http.Post(ts.URL+"/api/pools/pool-1/evaluate", "", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	body = decodeBody(t, resp)
	if body["tier"] != "HIGH" {
		t.Errorf("steady tier = %v, want HIGH", body["tier"])
	}

	resp, err = http.Get(ts.URL + "/api/pools/pool-1/fee")
	if err != nil {
		t.Fatalf("GET fee: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fee status = %d, want 200", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["tier"] != "HIGH" {
		t.Errorf("applied tier = %v, want HIGH", body["tier"])
	}
	if body["fee"] != float64(10_000) {
		t.Errorf("applied fee = %v, want 10000", body["fee"])
	}
}

func TestEvaluateUnknownPool(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	resp, err := http.Post(ts.URL+"/api/pools/nope/evaluate", "", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEvaluateRejectedReadings(t *testing.T) {
	ts := newTestServer(t, &fakeSource{
		readings: map[string][]int64{"pool-1": {100_000}}, // wrong arity
	})

	resp, err := http.Post(ts.URL+"/api/pools/pool-1/evaluate", "", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := service.New(service.Options{
		Source:   &fakeSource{},
		Consumer: service.NewLogConsumer(logger),
	}, logger)
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}

	srv := NewServer(Config{Port: 0, APIKey: "sekrit"}, Handlers{
		Health: handler.NewHealthHandler("serve", svc.PoolIDs, logger),
		Fees:   handler.NewFeeHandler(svc, logger),
	}, logger)

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	// Health stays reachable without credentials.
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/pools")
	if err != nil {
		t.Fatalf("GET pools: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/pools", nil)
	req.Header.Set("X-API-Key", "sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET pools with key: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", resp.StatusCode)
	}
}
