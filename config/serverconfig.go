package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ServerConfig holds the configuration for the development backend
type ServerConfig struct {
	ListenAddr        string `json:"listen_addr" yaml:"listen_addr"`
	Port              int    `json:"port" yaml:"port"`
	PublicURL         string `json:"public_url" yaml:"public_url"` // base used when building signed URLs
	DatabasePath      string `json:"database_path" yaml:"database_path"`
	StoragePath       string `json:"storage_path" yaml:"storage_path"`
	SigningSecret     string `json:"signing_secret" yaml:"signing_secret"`
	PresignTTLSeconds int    `json:"presign_ttl_seconds" yaml:"presign_ttl_seconds"`
	SeedEventName     string `json:"seed_event_name" yaml:"seed_event_name"` // created on first start when no events exist
	LogPath           string `json:"log_path" yaml:"log_path"`
	LogLevel          string `json:"log_level" yaml:"log_level"`

	TrustedProxies []string `json:"trusted_proxies,omitempty" yaml:"trusted_proxies,omitempty"` // release builds only
}

// DefaultServerConfig returns a new ServerConfig with default values
func DefaultServerConfig() *ServerConfig {
	dataDir := "."

	homeDir, err := os.UserHomeDir()
	if err == nil && homeDir != "" {
		dataDir = filepath.Join(homeDir, "partycam")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			dataDir = "."
		}
	}

	return &ServerConfig{
		ListenAddr:        "127.0.0.1",
		Port:              8080,
		PublicURL:         "http://localhost:8080",
		DatabasePath:      filepath.Join(dataDir, "partycam.db"),
		StoragePath:       filepath.Join(dataDir, "objects"),
		SigningSecret:     "change-me",
		PresignTTLSeconds: 900,
		SeedEventName:     "Party",
		LogPath:           "logs",
		LogLevel:          "info",
	}
}

// LoadServerConfig loads the server configuration from a JSON or YAML file.
// Missing files yield the defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	config := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := unmarshal(path, data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// SaveServerConfig writes the configuration to path
func (c *ServerConfig) SaveServerConfig(path string) error {
	return saveFile(path, c)
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret must not be empty")
	}
	if c.PresignTTLSeconds <= 0 {
		return fmt.Errorf("invalid presign ttl: %d", c.PresignTTLSeconds)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storage path must not be empty")
	}
	return nil
}

func (c *ServerConfig) PresignTTL() time.Duration {
	return time.Duration(c.PresignTTLSeconds) * time.Second
}
