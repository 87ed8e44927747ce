package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":5072" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":5072")
	}
	if cfg.BackendURL != "http://localhost:5073" {
		t.Fatalf("BackendURL = %q, want default", cfg.BackendURL)
	}
	if cfg.MetricsNamespace != "kittenvox" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "kittenvox")
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = true, want false default")
	}
	if cfg.SessionInactivityTimeout != 10*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v, want 10m", cfg.SessionInactivityTimeout)
	}
}

func TestLoadTrimsBackendURLTrailingSlash(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BACKEND_URL", "http://tts.internal:5073/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "http://tts.internal:5073" {
		t.Fatalf("BackendURL = %q, want trailing slash trimmed", cfg.BackendURL)
	}
}

func TestLoadRejectsRelativeBackendURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BACKEND_URL", "localhost:5073")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject a BACKEND_URL without scheme")
	}
}

func TestLoadRejectsTinyInactivityTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "1s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject sub-5s inactivity timeout")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"BACKEND_URL",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"DATABASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
