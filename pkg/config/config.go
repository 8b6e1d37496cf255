package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config describes a kv-single node. Every field can be set in the YAML
// file and overridden by the environment variable in its envconfig tag.
type Config struct {
	NodeID   string `yaml:"node_id" envconfig:"NODE_ID"`
	RaftAddr string `yaml:"raft_addr" envconfig:"RAFT_ADDR"`
	RaftData string `yaml:"raft_data" envconfig:"RAFT_DATA"`
	GRPCAddr string `yaml:"grpc_addr" envconfig:"GRPC_ADDR"`
	HTTPAddr string `yaml:"http_addr" envconfig:"HTTP_ADDR"`

	// DataFile seeds the store at startup and receives it on shutdown.
	// Its extension picks the format tried first.
	DataFile string `yaml:"data_file" envconfig:"DATA_FILE"`

	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogDev   bool   `yaml:"log_dev" envconfig:"LOG_DEV"`
}

// RaftEnabled reports whether the store is replicated through Raft.
func (c *Config) RaftEnabled() bool {
	return c.RaftAddr != ""
}

// LoadConfig loads configuration from a YAML file if path is provided,
// then applies environment variable overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NodeID == "" {
		c.NodeID = "node-" + uuid.NewString()[:8]
	}
	if c.RaftData == "" {
		c.RaftData = fmt.Sprintf("./pyaz/%s", c.NodeID)
	}
	if c.GRPCAddr == "" {
		c.GRPCAddr = ":9090"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the fields that defaults cannot fill in.
func (c *Config) Validate() error {
	if c.GRPCAddr == c.HTTPAddr {
		return fmt.Errorf("GRPC_ADDR and HTTP_ADDR must differ (both %q)", c.GRPCAddr)
	}
	if c.RaftEnabled() && (c.RaftAddr == c.GRPCAddr || c.RaftAddr == c.HTTPAddr) {
		return fmt.Errorf("RAFT_ADDR %q collides with another listener", c.RaftAddr)
	}
	return nil
}
