// Package profile holds the runtime configuration for the server.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Hosted LLM configuration (OpenAI-compatible protocol).
	LLMProvider string // openai or any OpenAI-compatible provider
	LLMAPIKey   string
	LLMBaseURL  string // optional, has a default per provider
	LLMModel    string // default hosted model, e.g. gpt-4o-mini
	LLMTimeout  int    // request timeout in seconds (default: 120)

	// Local model configuration (LM Studio / Ollama style endpoint).
	LocalLLMBaseURL string
	LocalLLMModel   string

	Mode        string // prod, dev, demo
	Addr        string
	Port        int
	Data        string
	Driver      string // postgres, sqlite
	DSN         string
	InstanceURL string
	Secret      string // JWT signing secret
	Version     string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsHostedLLMEnabled reports whether hosted-model requests can be served.
// Without an API key the server answers hosted-model requests with the
// canned fallback reply.
func (p *Profile) IsHostedLLMEnabled() bool {
	return p.LLMAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("ENCOMPLIANCE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("ENCOMPLIANCE_LLM_API_KEY", getEnvOrDefault("OPENAI_API_KEY", ""))
	p.LLMBaseURL = getEnvOrDefault("ENCOMPLIANCE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("ENCOMPLIANCE_LLM_MODEL", "gpt-4o-mini")
	p.LLMTimeout = getEnvOrDefaultInt("ENCOMPLIANCE_LLM_TIMEOUT_SECONDS", 120)

	p.LocalLLMBaseURL = getEnvOrDefault("ENCOMPLIANCE_LOCAL_LLM_BASE_URL", "http://localhost:1234/v1")
	p.LocalLLMModel = getEnvOrDefault("ENCOMPLIANCE_LOCAL_LLM_MODEL", "local-model")

	if p.Secret == "" {
		p.Secret = getEnvOrDefault("ENCOMPLIANCE_SECRET", "")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills driver-dependent defaults.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/encompliance"
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("encompliance_%s.db", p.Mode))
	}
	if p.DSN == "" {
		return errors.New("dsn is required")
	}

	if p.Secret == "" {
		if p.Mode == "prod" {
			return errors.New("a signing secret is required in prod mode (set ENCOMPLIANCE_SECRET)")
		}
		p.Secret = "encompliance-dev-secret"
	}

	return nil
}
