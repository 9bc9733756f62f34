// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pawsight.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9443"
db_path: /var/lib/pawsight/reports.db
max_upload_bytes: 52428800
tls_cert: /etc/pawsight/tls/cert.pem
tls_key: /etc/pawsight/tls/key.pem
upload:
  endpoint: "https://media.example.com/upload"
  preset: "pawsight_unsigned"
capture:
  min_seconds: 3
  max_seconds: 20
profile:
  breed: "Border Collie"
  age_years: 4.5
llm_endpoints:
  - url: "https://inference.internal/v1"
    model: "gemini-2.0-flash"
    api_key_env: "INTERNAL_LLM_KEY"
  - url: "https://api.openai.com/v1"
    model: "gpt-4o-mini"
    api_key_env: "OPENAI_API_KEY"
`)

	t.Setenv("INTERNAL_LLM_KEY", "internal-secret")
	t.Setenv("OPENAI_API_KEY", "openai-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9443" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9443")
	}
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 52428800)
	}
	if cfg.Upload.Endpoint != "https://media.example.com/upload" {
		t.Errorf("Upload.Endpoint = %q", cfg.Upload.Endpoint)
	}
	if cfg.Capture.MaxSeconds != 20 {
		t.Errorf("Capture.MaxSeconds = %d, want 20", cfg.Capture.MaxSeconds)
	}
	if cfg.Profile.Breed != "Border Collie" {
		t.Errorf("Profile.Breed = %q", cfg.Profile.Breed)
	}
	if len(cfg.LLMEndpoints) != 2 {
		t.Fatalf("LLMEndpoints count = %d, want 2", len(cfg.LLMEndpoints))
	}
	if cfg.LLMEndpoints[0].APIKey != "internal-secret" {
		t.Errorf("Endpoint[0].APIKey = %q, want %q", cfg.LLMEndpoints[0].APIKey, "internal-secret")
	}
	if cfg.LLMEndpoints[1].APIKey != "openai-secret" {
		t.Errorf("Endpoint[1].APIKey = %q, want %q", cfg.LLMEndpoints[1].APIKey, "openai-secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
llm_endpoints:
  - url: "https://api.openai.com/v1"
    model: "gpt-4o-mini"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":8781" {
		t.Errorf("ListenAddr default = %q, want %q", cfg.ListenAddr, ":8781")
	}
	if cfg.MaxUploadBytes != 100<<20 {
		t.Errorf("MaxUploadBytes default = %d, want %d", cfg.MaxUploadBytes, int64(100<<20))
	}
	if cfg.ProgressTickMs != 500 {
		t.Errorf("ProgressTickMs default = %d, want 500", cfg.ProgressTickMs)
	}
	if cfg.Capture.MinSeconds != 2 || cfg.Capture.MaxSeconds != 15 {
		t.Errorf("Capture defaults = %d/%d, want 2/15", cfg.Capture.MinSeconds, cfg.Capture.MaxSeconds)
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":8781"
`)

	t.Setenv("PAWSIGHT_API_KEY", "client-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey != "client-secret" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "client-secret")
	}
}

func TestLoadRejectsInvertedCaptureBounds(t *testing.T) {
	path := writeConfig(t, `
capture:
  min_seconds: 10
  max_seconds: 5
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for max_seconds below min_seconds")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}
