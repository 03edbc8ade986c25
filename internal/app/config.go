package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the composition root's own tunables: listen address, storage
// location, provider credentials, and hardening knobs. RouterConfig and
// GuidanceConfig (the domain tunables) are loaded separately by
// internal/config.Load, which owns the OSQR_ROUTER_* namespace.
type Config struct {
	ListenAddr string
	LogLevel   string

	DBDSN string

	ClassifierModelID string
	JudgeModelID      string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string

	AdminToken     string
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr: getEnv("OSQR_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("OSQR_LOG_LEVEL", "info"),
		DBDSN:      getEnv("OSQR_DB_DSN", "file:osqr.sqlite"),

		ClassifierModelID: getEnv("OSQR_CLASSIFIER_MODEL", "tier1-classifier"),
		JudgeModelID:      getEnv("OSQR_JUDGE_MODEL", "tier1-judge"),

		OpenAIAPIKey:     getEnv("OSQR_OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OSQR_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey:  getEnv("OSQR_ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("OSQR_ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),

		AdminToken:     getEnv("OSQR_ADMIN_TOKEN", ""),
		CORSOrigins:    getEnvStringSlice("OSQR_CORS_ORIGINS", nil),
		RateLimitRPS:   getEnvInt("OSQR_RATE_LIMIT_RPS", 60),
		RateLimitBurst: getEnvInt("OSQR_RATE_LIMIT_BURST", 120),

		OTelEnabled:     getEnvBool("OSQR_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OSQR_OTEL_ENDPOINT", "localhost:4318"),
		OTelServiceName: getEnv("OSQR_OTEL_SERVICE_NAME", "osqr"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config values for obviously invalid settings.
func (c Config) Validate() error {
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("OSQR_RATE_LIMIT_RPS must be > 0, got %d", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("OSQR_RATE_LIMIT_BURST must be > 0, got %d", c.RateLimitBurst)
	}
	if c.ClassifierModelID == "" {
		return fmt.Errorf("OSQR_CLASSIFIER_MODEL must not be empty")
	}
	if c.JudgeModelID == "" {
		return fmt.Errorf("OSQR_JUDGE_MODEL must not be empty")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				result = append(result, s)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return def
}
