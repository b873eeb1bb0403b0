package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Database struct {
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Session struct {
		MailboxSize    int           `yaml:"mailbox_size"`
		PublishTimeout time.Duration `yaml:"publish_timeout"`
		QueueSize      int           `yaml:"queue_size"`
		UndoReset      string        `yaml:"undo_reset"`
		RandomSeed     int64         `yaml:"random_seed"`
	} `yaml:"session"`

	Gateway struct {
		SendBufferSize  int           `yaml:"send_buffer_size"`
		SubmitTimeout   time.Duration `yaml:"submit_timeout"`
		SnapshotTimeout time.Duration `yaml:"snapshot_timeout"`
	} `yaml:"gateway"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Listener struct {
		Enabled bool   `yaml:"enabled"`
		Channel string `yaml:"channel"`
	} `yaml:"listener"`

	Entitlements struct {
		Premium []string `yaml:"premium"`
	} `yaml:"entitlements"`
}

func defaultConfig() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Database.MaxOpenConns = 10
	c.Database.MaxIdleConns = 5
	c.Database.ConnMaxLifetime = 30 * time.Minute
	c.Session.MailboxSize = 256
	c.Session.PublishTimeout = 5 * time.Second
	c.Session.QueueSize = 256
	c.Session.UndoReset = string(coordinator.UndoResetBasePrice)
	c.Gateway.SendBufferSize = 256
	c.Gateway.SubmitTimeout = 5 * time.Second
	c.Gateway.SnapshotTimeout = 5 * time.Second
	c.NATS.URL = "nats://localhost:4222"
	c.NATS.StreamName = "AUCTION_EVENTS"
	c.NATS.SubjectPrefix = "auction.events"
	c.Listener.Channel = "auction_roster_changes"
	return &c
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file at path over the defaults and applies env
// overrides. A missing file leaves the defaults in place.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Listener.Enabled = getEnvAsBool("LISTENER_ENABLED", c.Listener.Enabled)
	c.Gateway.SendBufferSize = getEnvAsInt("GATEWAY_SEND_BUFFER", c.Gateway.SendBufferSize)
	if premium := getEnv("PREMIUM_USERS", ""); premium != "" {
		c.Entitlements.Premium = strings.Split(premium, ",")
	}
}

func (c *Config) validate() error {
	switch coordinator.UndoReset(c.Session.UndoReset) {
	case coordinator.UndoResetBasePrice, coordinator.UndoResetZero:
	default:
		return fmt.Errorf("session.undo_reset must be %q or %q, got %q",
			coordinator.UndoResetBasePrice, coordinator.UndoResetZero, c.Session.UndoReset)
	}
	if c.Session.MailboxSize <= 0 {
		return fmt.Errorf("session.mailbox_size must be positive")
	}
	return nil
}
