// Package config loads server configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Worker struct {
		Count int `yaml:"count"`
	} `yaml:"worker"`
}

func defaults() Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Postgres.DSN = "host=localhost user=postgres password=postgres dbname=opsdesk port=5432 sslmode=disable"
	cfg.Redis.Addr = "localhost:6379"
	cfg.OpenAI.Model = "gpt-4o-mini"
	cfg.Worker.Count = 4
	return cfg
}

// Load reads path when it exists, then applies environment overrides.
// An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	overrideString(&cfg.Server.Addr, "OPSDESK_SERVER_ADDR")
	overrideString(&cfg.Postgres.DSN, "OPSDESK_POSTGRES_DSN")
	overrideString(&cfg.Redis.Addr, "OPSDESK_REDIS_ADDR")
	overrideString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.Model, "OPSDESK_OPENAI_MODEL")
	overrideInt(&cfg.Worker.Count, "OPSDESK_WORKER_COUNT")

	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 1
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
