package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stormline/dispatch/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DatabasePath != "dispatch.db" {
		t.Errorf("database path = %q, want dispatch.db", cfg.DatabasePath)
	}
	if cfg.TokenDuration != 24*time.Hour {
		t.Errorf("token duration = %v, want 24h", cfg.TokenDuration)
	}
	if cfg.Cascade.ComplianceMode {
		t.Error("compliance mode on by default")
	}
	if cfg.Cascade.HistoryTurns != 5 {
		t.Errorf("history turns = %d, want 5", cfg.Cascade.HistoryTurns)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DISPATCH_ADDR", ":9090")
	t.Setenv("DISPATCH_JWT_SECRET", "env-secret")
	t.Setenv("DISPATCH_COMPLIANCE_MODE", "true")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.Addr)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Errorf("jwt secret = %q", cfg.JWTSecret)
	}
	if !cfg.Cascade.ComplianceMode {
		t.Error("compliance mode env not honored")
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
addr: ":7070"
jwt_secret: file-secret
database_path: /tmp/test.db
cascade:
  compliance_mode: true
  model: llama3
  history_turns: 3
ollama:
  base_url: http://localhost:11434
  retries: 3
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr != ":7070" {
		t.Errorf("addr = %q, want :7070", cfg.Addr)
	}
	if cfg.JWTSecret != "file-secret" {
		t.Errorf("jwt secret = %q", cfg.JWTSecret)
	}
	if !cfg.Cascade.ComplianceMode || cfg.Cascade.Model != "llama3" || cfg.Cascade.HistoryTurns != 3 {
		t.Errorf("cascade = %+v", cfg.Cascade)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" || cfg.Ollama.Retries != 3 {
		t.Errorf("ollama = %+v", cfg.Ollama)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := config.LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("missing file accepted")
	}
}
