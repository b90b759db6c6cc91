package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
)

type testPinger struct {
	err error
}

func (p testPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := serve(HealthReady(cfg, map[string]Pinger{"db": testPinger{}, "redis": testPinger{}}, testLogger()), newRequest(http.MethodGet, "/health/ready", "", nil, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if resp.Header().Get("X-Wishlist-Env") != "test" {
		t.Fatalf("missing env header")
	}

	resp = serve(HealthReady(cfg, map[string]Pinger{"db": testPinger{}, "redis": testPinger{err: errBoom}}, testLogger()), newRequest(http.MethodGet, "/health/ready", "", nil, nil))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	resp := serve(HealthLive(cfg), newRequest(http.MethodGet, "/health/live", "", nil, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
