// Package config loads server settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/buzzer/go/internal/dbconfig"
	"github.com/mcdev12/buzzer/go/internal/match"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Rules   match.Rules   `yaml:"rules"`
	Rooms   RoomsConfig   `yaml:"rooms"`
	Outbox  OutboxConfig  `yaml:"outbox"`
	NATS    NATSConfig    `yaml:"nats"`
	LiveKit LiveKitConfig `yaml:"livekit"`

	// Database comes from the environment only.
	Database dbconfig.Config `yaml:"-"`
	LogLevel string          `yaml:"log_level"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RoomsConfig struct {
	CodeLength int `yaml:"code_length"`

	// IdleTTL of zero disables the reaper.
	IdleTTL      time.Duration `yaml:"idle_ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

type OutboxConfig struct {
	QueueSize int           `yaml:"queue_size"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

type NATSConfig struct {
	// Empty URL disables event fan-out.
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

type LiveKitConfig struct {
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"-"`
	APISecret string        `yaml:"-"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "4000",
			ShutdownTimeout: 10 * time.Second,
		},
		Rules: match.DefaultRules(),
		Rooms: RoomsConfig{
			CodeLength:   6,
			ReapInterval: time.Minute,
		},
		Outbox: OutboxConfig{
			QueueSize: 1024,
			OpTimeout: 5 * time.Second,
		},
		NATS: NATSConfig{
			Stream: "MATCH_EVENTS",
		},
		LiveKit: LiveKitConfig{
			TokenTTL: 6 * time.Hour,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.LiveKit.URL = getEnv("LIVEKIT_URL", c.LiveKit.URL)
	c.LiveKit.APIKey = getEnv("LIVEKIT_API_KEY", c.LiveKit.APIKey)
	c.LiveKit.APISecret = getEnv("LIVEKIT_API_SECRET", c.LiveKit.APISecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Rules.MaxQuestions = getEnvAsInt("MAX_QUESTIONS", c.Rules.MaxQuestions)
	c.Database = dbconfig.NewConfigFromEnv()
}

// Validate rejects rules the engine cannot run with.
func (c Config) Validate() error {
	r := c.Rules
	switch {
	case r.QuestionTime <= 0 || r.StealTime <= 0:
		return fmt.Errorf("invalid config: question_time and steal_time must be positive")
	case r.InitialBuzzes < 1:
		return fmt.Errorf("invalid config: initial_buzzes must be at least 1")
	case r.SlotsPerTeam < 1:
		return fmt.Errorf("invalid config: slots_per_team must be at least 1")
	case r.MaxQuestions < 1:
		return fmt.Errorf("invalid config: max_questions must be at least 1")
	case c.Rooms.CodeLength < 4:
		return fmt.Errorf("invalid config: code_length must be at least 4")
	case c.Rooms.IdleTTL < 0:
		return fmt.Errorf("invalid config: idle_ttl must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
