package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Recognized AI provider names. Selection is always explicit via
// configuration; the server never probes for a running model service
// to decide which provider to use.
const (
	AIProviderNone       = "none"
	AIProviderLocalModel = "local-model"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	TaxonomyPath   string   `mapstructure:"TAXONOMY_PATH"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	AIProvider     string   `mapstructure:"AI_PROVIDER"`
	AIModel        string   `mapstructure:"AI_MODEL"`
	AIBaseURL      string   `mapstructure:"AI_BASE_URL"`
	AITimeoutMs    int      `mapstructure:"AI_TIMEOUT_MS"`
	MatchThreshold float64  `mapstructure:"MATCH_THRESHOLD"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8600")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TAXONOMY_PATH", "taxonomy.csv")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AI_PROVIDER", AIProviderNone)
	v.SetDefault("AI_MODEL", "qwen2.5:7b-instruct")
	v.SetDefault("AI_BASE_URL", "http://127.0.0.1:11434")
	v.SetDefault("AI_TIMEOUT_MS", 10000)
	v.SetDefault("MATCH_THRESHOLD", 0.0)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("TAXONOMY_PATH")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AI_PROVIDER")
	v.BindEnv("AI_MODEL")
	v.BindEnv("AI_BASE_URL")
	v.BindEnv("AI_TIMEOUT_MS")
	v.BindEnv("MATCH_THRESHOLD")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// AITimeout returns the live-provider call budget as a duration.
func (c *Config) AITimeout() time.Duration {
	if c.AITimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.AITimeoutMs) * time.Millisecond
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case AIProviderNone, AIProviderLocalModel:
	default:
		return fmt.Errorf("AI_PROVIDER must be %q or %q, got %q",
			AIProviderNone, AIProviderLocalModel, c.AIProvider)
	}
	if c.AIProvider == AIProviderLocalModel {
		if c.AIBaseURL == "" {
			return fmt.Errorf("AI_BASE_URL is required when AI_PROVIDER is %q", AIProviderLocalModel)
		}
		if c.AIModel == "" {
			return fmt.Errorf("AI_MODEL is required when AI_PROVIDER is %q", AIProviderLocalModel)
		}
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0,1], got %g", c.MatchThreshold)
	}
	if c.TaxonomyPath == "" {
		return fmt.Errorf("TAXONOMY_PATH is required")
	}
	return nil
}
