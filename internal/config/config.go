package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port     string `yaml:"port" env:"PORT"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Quiz struct {
		MaxParticipants      int    `yaml:"max_participants" env:"MAX_PARTICIPANTS"`
		EnforceCloseOnSubmit bool   `yaml:"enforce_close_on_submit" env:"ENFORCE_CLOSE_ON_SUBMIT"`
		NoveltyWindow        string `yaml:"novelty_window" env:"NOVELTY_WINDOW"`
	} `yaml:"quiz"`
	Trivia struct {
		BaseURL string `yaml:"base_url" env:"TRIVIA_BASE_URL"`
		Timeout string `yaml:"timeout" env:"TRIVIA_TIMEOUT"`
	} `yaml:"trivia"`
	AI struct {
		BaseURL string `yaml:"base_url" env:"AI_BASE_URL"`
		APIKey  string `yaml:"api_key" env:"AI_API_KEY"`
		Model   string `yaml:"model" env:"AI_MODEL"`
		Timeout string `yaml:"timeout" env:"AI_TIMEOUT"`
	} `yaml:"ai"`
	RateLimit struct {
		PerMinute int `yaml:"per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	} `yaml:"rate_limit"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error: env-only deployments are supported.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "4001"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Quiz.MaxParticipants <= 0 {
		c.Quiz.MaxParticipants = 300
	}
	if c.Quiz.NoveltyWindow == "" {
		c.Quiz.NoveltyWindow = "336h" // 14 days
	}
	if c.Trivia.BaseURL == "" {
		c.Trivia.BaseURL = "https://opentdb.com/api.php"
	}
	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = 120
	}
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
