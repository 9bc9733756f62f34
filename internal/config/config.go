// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMEndpoint represents one model provider in the fallback chain
type LLMEndpoint struct {
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"` // env var name for API key
	APIKey    string `yaml:"-"`           // resolved at load time
}

// UploadConfig points at the external object storage the server pushes
// media to before analysis. Optional; without it media is inlined.
type UploadConfig struct {
	Endpoint string `yaml:"endpoint"`
	Preset   string `yaml:"preset"`
}

// CaptureConfig bounds server-side recording sessions.
type CaptureConfig struct {
	MinSeconds int `yaml:"min_seconds"`
	MaxSeconds int `yaml:"max_seconds"`
}

// ProfileConfig is the default dog profile used when a request does not
// carry breed and age.
type ProfileConfig struct {
	Breed    string  `yaml:"breed"`
	AgeYears float64 `yaml:"age_years"`
}

// Config for the pawsight server
type Config struct {
	ListenAddr       string        `yaml:"listen_addr"`
	DBPath           string        `yaml:"db_path"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	InlineLimitBytes int64         `yaml:"inline_limit_bytes"`
	TLSCert          string        `yaml:"tls_cert"`
	TLSKey           string        `yaml:"tls_key"`
	ProgressTickMs   int           `yaml:"progress_tick_ms"`
	Upload           UploadConfig  `yaml:"upload"`
	Capture          CaptureConfig `yaml:"capture"`
	Profile          ProfileConfig `yaml:"profile"`
	LLMEndpoints     []LLMEndpoint `yaml:"llm_endpoints"` // fallback chain
	APIKey           string        `yaml:"-"`             // client auth, from env
}

// Load reads config from a YAML file, applies defaults, and resolves
// secrets from the environment
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8781"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "pawsight.db"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	if cfg.InlineLimitBytes <= 0 {
		cfg.InlineLimitBytes = 20 << 20
	}
	if cfg.ProgressTickMs <= 0 {
		cfg.ProgressTickMs = 500
	}
	if cfg.Capture.MinSeconds <= 0 {
		cfg.Capture.MinSeconds = 2
	}
	if cfg.Capture.MaxSeconds <= 0 {
		cfg.Capture.MaxSeconds = 15
	}
	if cfg.Capture.MaxSeconds < cfg.Capture.MinSeconds {
		return nil, fmt.Errorf("capture max_seconds %d below min_seconds %d",
			cfg.Capture.MaxSeconds, cfg.Capture.MinSeconds)
	}

	// Env overrides
	if key := os.Getenv("PAWSIGHT_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	// Resolve API keys for each LLM endpoint from env vars
	for i := range cfg.LLMEndpoints {
		if cfg.LLMEndpoints[i].APIKeyEnv != "" {
			cfg.LLMEndpoints[i].APIKey = os.Getenv(cfg.LLMEndpoints[i].APIKeyEnv)
		}
	}

	return &cfg, nil
}
