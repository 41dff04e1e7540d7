package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API        APIConfig        `toml:"api"`
	Processing ProcessingConfig `toml:"processing"`
	Database   DatabaseConfig   `toml:"database"`
	Logging    LoggingConfig    `toml:"logging"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	BaseURL             string  `toml:"base_url"`
	ShareURL            string  `toml:"share_url"`
	Username            string  `toml:"username"`
	Password            string  `toml:"password"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	FetchTimeoutSeconds int     `toml:"fetch_timeout_seconds"`
}

// FetchTimeout returns the terminal fetch timeout as a [time.Duration].
func (c APIConfig) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// ProcessingConfig contains the default cleaning targets sent when processing starts.
type ProcessingConfig struct {
	Language int    `toml:"language"`
	Sexual   int    `toml:"sexual"`
	Violence int    `toml:"violence"`
	Model    string `toml:"model"`
	MaxLevel int    `toml:"max_level"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains log level and TUI log file settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Environment variables that override values from the config file.
const (
	EnvAPIURL   = "BOOKCLEAN_API_URL"
	EnvUsername = "BOOKCLEAN_USERNAME"
	EnvPassword = "BOOKCLEAN_PASSWORD"
	EnvModel    = "BOOKCLEAN_MODEL"
)

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads KEY=value pairs from the given dotenv files into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any BOOKCLEAN_* variables present in the environment.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.API.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.API.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		c.Processing.Model = v
	}
}

// ValidateLevel checks that a censorship level falls within 1..max.
func ValidateLevel(name string, level, max int) error {
	if max <= 0 {
		max = 5
	}
	if level < 1 || level > max {
		return fmt.Errorf("%w: %s must be between 1 and %d, got %d", ErrInvalidLevel, name, max, level)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: api.requests_per_second must not be negative", ErrInvalidConfig)
	}

	levels := []struct {
		name  string
		value int
	}{
		{"processing.language", c.Processing.Language},
		{"processing.sexual", c.Processing.Sexual},
		{"processing.violence", c.Processing.Violence},
	}
	for _, l := range levels {
		if err := ValidateLevel(l.name, l.value, c.Processing.MaxLevel); err != nil {
			return err
		}
	}

	return nil
}
