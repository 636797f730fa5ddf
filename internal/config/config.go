// Package config provides configuration management for Lattice. Settings are
// layered: built-in defaults, then an optional YAML file, then environment
// variables with the LATTICE_ prefix. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the Lattice service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Security SecurityConfig `yaml:"security"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 7350
}

// StorageConfig selects and configures the entity store backend.
type StorageConfig struct {
	// Engine is "sqlite" or "postgres".
	Engine string `yaml:"engine"`

	// DataPath is the sqlite data directory.
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the lib/pq connection string, used when Engine is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`

	// CacheSize is the number of per-type candidate pools kept in the LRU
	// read cache. 0 disables caching.
	CacheSize int `yaml:"cache_size"`
}

// LLMConfig configures the optional arbitration/summarization collaborator.
// An empty provider runs the engine with deterministic fallbacks only.
type LLMConfig struct {
	Provider          string `yaml:"provider"` // "", "ollama", "openai"
	OllamaURL         string `yaml:"ollama_url"`
	Model             string `yaml:"model"`
	EmbeddingModel    string `yaml:"embedding_model"`
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// Timeout returns the request timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	// Mode is "development" (no auth) or "production" (bearer token required).
	Mode     string `yaml:"mode"`
	APIToken string `yaml:"api_token"`
}

// EngineConfig contains resolution engine tunables.
type EngineConfig struct {
	// EventBufferSize is the telemetry ring-buffer capacity.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // human-readable console output
}

// Load builds the configuration. path points to a YAML file and may be
// empty, in which case only defaults and environment variables apply. A
// missing file at an explicitly given path is an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage engine postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unsupported storage engine: %q", c.Storage.Engine)
	}

	switch c.LLM.Provider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" && c.LLM.OpenAIAPIKey == "" {
		return fmt.Errorf("llm provider openai requires an api key")
	}

	switch c.Security.Mode {
	case "development":
	case "production":
		if c.Security.APIToken == "" {
			return fmt.Errorf("production security mode requires an api token")
		}
	default:
		return fmt.Errorf("unsupported security mode: %q", c.Security.Mode)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7350,
		},
		Storage: StorageConfig{
			Engine:    "sqlite",
			DataPath:  "./data",
			CacheSize: 8,
		},
		LLM: LLMConfig{
			OllamaURL:         "http://localhost:11434",
			Model:             "qwen2.5:7b",
			EmbeddingModel:    "nomic-embed-text",
			TimeoutSeconds:    30,
			RequestsPerMinute: 60,
		},
		Security: SecurityConfig{
			Mode: "development",
		},
		Engine: EngineConfig{
			EventBufferSize: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("LATTICE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("LATTICE_PORT", cfg.Server.Port)

	cfg.Storage.Engine = getEnv("LATTICE_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("LATTICE_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("LATTICE_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.CacheSize = getEnvInt("LATTICE_CACHE_SIZE", cfg.Storage.CacheSize)

	cfg.LLM.Provider = getEnv("LATTICE_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("LATTICE_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.Model = getEnv("LATTICE_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("LATTICE_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.OpenAIAPIKey = getEnv("LATTICE_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.TimeoutSeconds = getEnvInt("LATTICE_LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.RequestsPerMinute = getEnvInt("LATTICE_LLM_REQUESTS_PER_MINUTE", cfg.LLM.RequestsPerMinute)

	cfg.Security.Mode = getEnv("LATTICE_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.APIToken = getEnv("LATTICE_API_TOKEN", cfg.Security.APIToken)

	cfg.Engine.EventBufferSize = getEnvInt("LATTICE_EVENT_BUFFER_SIZE", cfg.Engine.EventBufferSize)

	cfg.Log.Level = getEnv("LATTICE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = getEnvBool("LATTICE_LOG_PRETTY", cfg.Log.Pretty)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
		return true
	case "false", "0", "no", "False", "FALSE", "No", "NO":
		return false
	}
	return defaultValue
}
