package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultWelcomeTemplate = `Hi! I'm the **{{assistant_id}}** assistant.{{#source_url}} My knowledge comes from {{{source_url}}}.{{/source_url}}

Ask me anything about this documentation: endpoints, parameters, or a ` + "`curl`" + ` example.`

const DefaultFallbackReply = "Sorry, I ran into a problem answering that. Please try again."

const DefaultBaseURL = "http://localhost:8000"

type Config struct {
	BaseURL         string
	RequestTimeout  time.Duration // list, validate, stats, delete, analyze
	SendTimeout     time.Duration // chat message round trip
	IngestTimeout   time.Duration // create assistant (ingestion is slow)
	ListRetries     int
	LogLevel        string
	LogFile         string
	WelcomeTemplate string
	FallbackReply   string
}

type tomlConfig struct {
	BaseURL         string `toml:"base_url"`
	RequestTimeout  string `toml:"request_timeout"`
	SendTimeout     string `toml:"send_timeout"`
	IngestTimeout   string `toml:"ingest_timeout"`
	ListRetries     *int   `toml:"list_retries"`
	LogLevel        string `toml:"log_level"`
	LogFile         string `toml:"log_file"`
	WelcomeTemplate string `toml:"welcome_template"`
	FallbackReply   string `toml:"fallback_reply"`
}

// Dir returns ~/.config/docet, or a relative fallback without a home dir.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docet"
	}
	return filepath.Join(home, ".config", "docet")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		RequestTimeout:  15 * time.Second,
		SendTimeout:     90 * time.Second,
		IngestTimeout:   10 * time.Minute,
		ListRetries:     2,
		LogLevel:        "info",
		LogFile:         filepath.Join(Dir(), "docet.log"),
		WelcomeTemplate: DefaultWelcomeTemplate,
		FallbackReply:   DefaultFallbackReply,
	}
}

// Load reads ~/.config/docet/config.toml and applies DOCET_* overrides
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(Dir(), "config.toml"))
}

// LoadFrom is Load with an explicit config file path. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(path, &tc); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := cfg.apply(tc); err != nil {
			return cfg, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) apply(tc tomlConfig) error {
	if tc.BaseURL != "" {
		c.BaseURL = tc.BaseURL
	}
	if tc.LogLevel != "" {
		c.LogLevel = tc.LogLevel
	}
	if tc.LogFile != "" {
		c.LogFile = tc.LogFile
	}
	if tc.WelcomeTemplate != "" {
		c.WelcomeTemplate = tc.WelcomeTemplate
	}
	if tc.FallbackReply != "" {
		c.FallbackReply = tc.FallbackReply
	}
	if tc.ListRetries != nil {
		c.ListRetries = *tc.ListRetries
	}

	durations := []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{tc.RequestTimeout, &c.RequestTimeout, "request_timeout"},
		{tc.SendTimeout, &c.SendTimeout, "send_timeout"},
		{tc.IngestTimeout, &c.IngestTimeout, "ingest_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return nil
}

func (c *Config) applyEnv() error {
	c.BaseURL = getEnv("DOCET_BASE_URL", c.BaseURL)
	c.LogLevel = getEnv("DOCET_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("DOCET_LOG_FILE", c.LogFile)

	var err error
	if c.SendTimeout, err = getEnvDuration("DOCET_SEND_TIMEOUT", c.SendTimeout); err != nil {
		return err
	}
	if c.IngestTimeout, err = getEnvDuration("DOCET_INGEST_TIMEOUT", c.IngestTimeout); err != nil {
		return err
	}
	if c.ListRetries, err = getEnvInt("DOCET_LIST_RETRIES", c.ListRetries); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
