// Package config loads the application configuration from a TOML file with
// environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Engine   EngineConfig   `toml:"engine"`
	Media    MediaConfig    `toml:"media"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains the catalog database settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LLMConfig contains the inference service settings.
type LLMConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EngineConfig contains generation settings.
type EngineConfig struct {
	ContextTTLSeconds int `toml:"context_ttl_seconds"`
}

// MediaConfig contains the URL bases and the playlist export directory.
type MediaConfig struct {
	StreamBaseURL string `toml:"stream_base_url"`
	CoverBaseURL  string `toml:"cover_base_url"`
	PlaylistDir   string `toml:"playlist_dir"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./cadenza.db",
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:8b",
			TimeoutSeconds: 30,
		},
		Engine: EngineConfig{
			ContextTTLSeconds: 300,
		},
		Media: MediaConfig{
			StreamBaseURL: "http://localhost:8080",
			CoverBaseURL:  "http://localhost:8080",
			PlaylistDir:   "./playlists",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration: defaults, then the TOML file if present,
// then a .env file, then process environment variables, each layer winning
// over the previous one.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	// Missing .env is the normal case; only explicit settings matter.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CADENZA_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CADENZA_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("CADENZA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CADENZA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CADENZA_STREAM_BASE"); v != "" {
		c.Media.StreamBaseURL = v
	}
	if v := os.Getenv("CADENZA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CADENZA_CONTEXT_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.ContextTTLSeconds = n
		}
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// Address returns the full server listen address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}
