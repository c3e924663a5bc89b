package config

import (
	"os"
	"testing"
)

func TestLoadUsesDefaults(t *testing.T) {
	for _, key := range []string{
		"MEMFLOW_STORAGE_ROOT", "MEMFLOW_ADDR", "MEMFLOW_BEARER_TOKEN",
		"MEMFLOW_PUBLIC_KEY_FILE", "MEMFLOW_LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.StorageRoot != ".storage" {
		t.Fatalf("StorageRoot = %q, want .storage", cfg.StorageRoot)
	}
	if cfg.Addr != "0.0.0.0:3000" {
		t.Fatalf("Addr = %q, want 0.0.0.0:3000", cfg.Addr)
	}
	if cfg.BearerToken != "" || cfg.PublicKeyFile != "" {
		t.Fatalf("expected empty BearerToken/PublicKeyFile defaults, got %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("MEMFLOW_STORAGE_ROOT", "/tmp/plugins")
	t.Setenv("MEMFLOW_ADDR", ":9000")
	t.Setenv("MEMFLOW_BEARER_TOKEN", "secret")
	t.Setenv("MEMFLOW_LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.StorageRoot != "/tmp/plugins" || cfg.Addr != ":9000" ||
		cfg.BearerToken != "secret" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
