package neoquery

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvURL      = "NEO4J_URL"
	EnvUser     = "NEO4J_USER"
	EnvPassword = "NEO4J_PASS"
	EnvDatabase = "NEO4J_DATABASE"
	EnvPoolSize = "NEO4J_MAX_POOL_SIZE"
)

// Config holds everything needed to open a Connection.
type Config struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database is the target database; empty selects the server default.
	Database string `yaml:"database"`

	MaxConnectionPoolSize   int           `yaml:"max_connection_pool_size"`
	ConnectionTimeout       time.Duration `yaml:"connection_timeout"`
	MaxTransactionRetryTime time.Duration `yaml:"max_transaction_retry_time"`
}

// DefaultConfig returns a Config for a local Neo4j with driver defaults.
func DefaultConfig() Config {
	return Config{
		URL:                     "bolt://localhost:7687",
		Username:                "neo4j",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup,
// normally os.LookupEnv.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvUser); ok && v != "" {
		c.Username = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Password = v
	}
	if v, ok := lookup(EnvDatabase); ok {
		c.Database = v
	}
	if v, ok := lookup(EnvPoolSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvPoolSize, err)
		}
		c.MaxConnectionPoolSize = n
	}
	return c, nil
}

// Validate checks that the config can be used to connect.
func (c Config) Validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidConfig)
	case c.Username == "":
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidConfig)
	case c.MaxConnectionPoolSize < 0:
		return fmt.Errorf("%w: max_connection_pool_size cannot be negative", ErrInvalidConfig)
	case c.ConnectionTimeout < 0:
		return fmt.Errorf("%w: connection_timeout cannot be negative", ErrInvalidConfig)
	case c.MaxTransactionRetryTime < 0:
		return fmt.Errorf("%w: max_transaction_retry_time cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Credentials returns the username and password pair.
func (c Config) Credentials() Credentials {
	return Credentials{Username: c.Username, Password: c.Password}
}

// DriverConfig returns the driver tuning part of the config.
func (c Config) DriverConfig() DriverConfig {
	return DriverConfig{
		Database:                c.Database,
		MaxConnectionPoolSize:   c.MaxConnectionPoolSize,
		ConnectionTimeout:       c.ConnectionTimeout,
		MaxTransactionRetryTime: c.MaxTransactionRetryTime,
	}
}
