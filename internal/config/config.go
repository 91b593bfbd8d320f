package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	ContentDir    string        `yaml:"content_dir"`
	Cascade       CascadeConfig `yaml:"cascade"`
	Ollama        OllamaConfig  `yaml:"ollama"`
}

// CascadeConfig controls the response cascade. ComplianceMode disables the
// generative fallback entirely: with it on, anything that misses the
// database tiers gets the static default response.
type CascadeConfig struct {
	ComplianceMode bool          `yaml:"compliance_mode"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	HistoryTurns   int           `yaml:"history_turns"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("DISPATCH_ADDR", ":8080"),
		JWTSecret:     getEnv("DISPATCH_JWT_SECRET", "supersecretkey"),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("DISPATCH_DATABASE_PATH", "dispatch.db"),
		TokenDuration: 24 * time.Hour,
		ContentDir:    getEnv("DISPATCH_CONTENT_DIR", ""),
		Cascade: CascadeConfig{
			ComplianceMode: getEnv("DISPATCH_COMPLIANCE_MODE", "") == "true",
			Timeout:        20 * time.Second,
			HistoryTurns:   5,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
