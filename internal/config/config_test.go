package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != defaultAddress {
		t.Fatalf("address = %q, want %q", cfg.Address, defaultAddress)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Fatalf("store = %q, want memory", cfg.StoreBackend)
	}
	if cfg.SirenTTL != 0 {
		t.Fatalf("siren ttl = %v, want 0", cfg.SirenTTL)
	}
	if cfg.ExpiryEnabled() {
		t.Fatalf("expiry should be off by default")
	}
	if len(cfg.JWTSecret) == 0 {
		t.Fatalf("expected a generated jwt secret")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LIFELANE_STORE", "file")
	t.Setenv("LIFELANE_TRANSITION_POLICY", "permissive")
	t.Setenv("LIFELANE_SIREN_TTL", "5m")
	t.Setenv("LIFELANE_REDIS_ADDR", "localhost:6379")
	t.Setenv("LIFELANE_AUTH", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != StoreFile {
		t.Fatalf("store = %q, want file", cfg.StoreBackend)
	}
	if cfg.TransitionPolicy != "permissive" {
		t.Fatalf("policy = %q, want permissive", cfg.TransitionPolicy)
	}
	if cfg.SirenTTL != 5*time.Minute {
		t.Fatalf("siren ttl = %v, want 5m", cfg.SirenTTL)
	}
	if !cfg.ExpiryEnabled() {
		t.Fatalf("expiry should be enabled with ttl and redis set")
	}
	if !cfg.AuthRequired {
		t.Fatalf("auth should be required")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LIFELANE_STORE", "etcd")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown store backend")
	}
	t.Setenv("LIFELANE_STORE", "memory")
	t.Setenv("LIFELANE_TRANSITION_POLICY", "lenient")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	t.Setenv("LIFELANE_TRANSITION_POLICY", "strict")
	t.Setenv("LIFELANE_STORE", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for postgres without a DSN")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("LIFELANE_SIREN_TTL", "5minutes")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed duration")
	}
	t.Setenv("LIFELANE_SIREN_TTL", "5m")
	t.Setenv("LIFELANE_WORKERS", "many")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed worker count")
	}
	t.Setenv("LIFELANE_WORKERS", "4")
	t.Setenv("LIFELANE_AUTH", "yep")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed bool")
	}
}
