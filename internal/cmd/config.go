package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values come from an optional YAML file
// with environment variables taking precedence.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		// Backend selects the room store: memory, redis or postgres.
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Relay struct {
		Enabled bool   `yaml:"enabled"`
		NatsURL string `yaml:"nats_url"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Store.Backend = "memory"
	cfg.Store.Redis.Addr = "localhost:6379"
	cfg.Relay.NatsURL = "nats://localhost:4222"
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Redis.Addr = getEnv("REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Relay.Enabled = getEnvAsBool("RELAY_ENABLED", cfg.Relay.Enabled)
	cfg.Relay.NatsURL = getEnv("NATS_URL", cfg.Relay.NatsURL)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
