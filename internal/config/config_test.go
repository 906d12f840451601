package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadShippedDefaults(t *testing.T) {
	cfg, err := Load("../../config.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The notification listen window is fixed at 120 seconds and the
	// rate-limited routes admit 2 requests per 60 seconds per client.
	if cfg.ListenWindow != 120*time.Second {
		t.Errorf("expected a 120s listen window, got %v", cfg.ListenWindow)
	}
	if cfg.RateLimit.Requests != 2 {
		t.Errorf("expected 2 requests per window, got %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimitWindow != 60*time.Second {
		t.Errorf("expected a 60s rate-limit window, got %v", cfg.RateLimitWindow)
	}
	if !cfg.StandaloneMode {
		t.Error("shipped defaults should run standalone")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
standalone_mode: true
settlement:
  timeout: "soon"
broker:
  listen_window: "120s"
rate_limit:
  requests: 2
  window: "60s"
  sweep_interval: "5m"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unparseable timeout")
	}
}

func TestLoadRejectsMissingRemoteURLs(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
standalone_mode: false
settlement:
  timeout: "30s"
broker:
  listen_window: "120s"
rate_limit:
  requests: 2
  window: "60s"
  sweep_interval: "5m"
`)
	if _, err := Load(path); err == nil {
		t.Error("online mode without remote URLs should fail validation")
	}
}
