package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port              string  `yaml:"port"`
	LogLevel          string  `yaml:"log_level"`
	DatabaseURL       string  `yaml:"database_url"`
	CreateFailureRate float64 `yaml:"create_failure_rate"`
	RabbitMQURL       string  `yaml:"rabbitmq_url"`
	RabbitMQQueue     string  `yaml:"rabbitmq_queue"`
	ChannelPoolSize   int     `yaml:"channel_pool_size"`
	NumWorkers        int     `yaml:"num_workers"`
}

// Default returns the configuration the service runs with when nothing is set.
func Default() *Config {
	return &Config{
		Port:              "3002",
		LogLevel:          "info",
		DatabaseURL:       "sqlite://./data/products.db",
		CreateFailureRate: 0.5,
		RabbitMQQueue:     "product_events",
		ChannelPoolSize:   10,
		NumWorkers:        5,
	}
}

// LoadConfig layers defaults, the optional YAML file at configPath and the
// environment, in that order. An empty configPath skips the file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	var err error
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	if cfg.CreateFailureRate, err = getEnvAsFloat("CREATE_FAILURE_RATE", cfg.CreateFailureRate); err != nil {
		return nil, err
	}
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQQueue = getEnv("RABBITMQ_QUEUE", cfg.RabbitMQQueue)
	if cfg.ChannelPoolSize, err = getEnvAsInt("CHANNEL_POOL_SIZE", cfg.ChannelPoolSize); err != nil {
		return nil, err
	}
	if cfg.NumWorkers, err = getEnvAsInt("NUM_WORKERS", cfg.NumWorkers); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %q", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.CreateFailureRate < 0 || c.CreateFailureRate > 1 {
		return fmt.Errorf("create_failure_rate must be within [0, 1], got %v", c.CreateFailureRate)
	}
	if c.RabbitMQURL != "" {
		if c.RabbitMQQueue == "" {
			return fmt.Errorf("rabbitmq_queue is required when rabbitmq_url is set")
		}
		if c.ChannelPoolSize <= 0 {
			return fmt.Errorf("channel_pool_size must be positive")
		}
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be positive")
	}
	return nil
}

// EventsEnabled reports whether product events should be published.
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns defaultValue when key is unset and an error when it is
// set but not an integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, valueStr)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a number", key, valueStr)
	}
	return value, nil
}
