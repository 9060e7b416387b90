package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("HF_TOKEN", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SIDECAR_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8001 {
		t.Errorf("Port = %d, want 8001", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if len(cfg.Pipeline.Models) != 2 || cfg.Pipeline.Models[0] != ModelPrimary || cfg.Pipeline.Models[1] != ModelFallback {
		t.Errorf("Models = %v", cfg.Pipeline.Models)
	}
	if cfg.Pipeline.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Pipeline.Workers)
	}
	if cfg.Roles.Doctor != "Bác sĩ" || cfg.Roles.Patient != "Bệnh nhân" {
		t.Errorf("Roles = %+v", cfg.Roles)
	}
	if cfg.Token != "" {
		t.Errorf("Token = %q, want empty", cfg.Token)
	}
}

func TestLoad_YAMLValues(t *testing.T) {
	t.Setenv("HF_TOKEN", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SIDECAR_URL", "")

	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9000
  expose_errors: true
pipeline:
  backend: exec
  device: cpu
  workers: 2
  models:
    - org/model-a
  sidecar:
    timeout: 45s
roles:
  doctor: Doctor
  patient: Patient
  fallback_format: "Person %d"
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || !cfg.Server.ExposeErrors {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Pipeline.Backend != BackendExec || cfg.Pipeline.Device != "cpu" || cfg.Pipeline.Workers != 2 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if len(cfg.Pipeline.Models) != 1 || cfg.Pipeline.Models[0] != "org/model-a" {
		t.Errorf("Models = %v", cfg.Pipeline.Models)
	}
	if cfg.Pipeline.Sidecar.Timeout != 45*time.Second {
		t.Errorf("Sidecar.Timeout = %v", cfg.Pipeline.Sidecar.Timeout)
	}
	if cfg.Roles.FallbackFormat != "Person %d" {
		t.Errorf("FallbackFormat = %q", cfg.Roles.FallbackFormat)
	}
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SIDECAR_URL", "")
	// Registered with t.Setenv so the value loaded from the env file is
	// restored after the test.
	t.Setenv("HF_TOKEN", "")
	os.Unsetenv("HF_TOKEN")

	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "HF_TOKEN=hf_from_file\n")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("", envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "hf_from_file" {
		t.Errorf("Token = %q, want hf_from_file", cfg.Token)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := Load("", ""); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad backend", func(c *Config) { c.Pipeline.Backend = "grpc" }, "pipeline.backend"},
		{"bad device", func(c *Config) { c.Pipeline.Device = "tpu" }, "pipeline.device"},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = -1 }, "pipeline.workers"},
		{"empty model", func(c *Config) { c.Pipeline.Models = []string{" "} }, "pipeline.models"},
		{"fallback without verb", func(c *Config) { c.Roles.FallbackFormat = "Person" }, "roles.fallback_format"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"wildcard origin", func(c *Config) { c.Server.AllowedOrigins = []string{"*"} }, "server.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
