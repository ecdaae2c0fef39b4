package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CameraBackendGoCV    = "gocv"
	CameraBackendVirtual = "virtual"
)

// Config holds the capture application configuration
type Config struct {
	BackendURL            string `json:"backend_url" yaml:"backend_url"`
	EventID               int    `json:"event_id" yaml:"event_id"`
	EventName             string `json:"event_name" yaml:"event_name"`
	CameraDevice          string `json:"camera_device" yaml:"camera_device"`                   // back camera, index or path
	FrontCameraDevice     string `json:"front_camera_device" yaml:"front_camera_device"`       // used by SwitchDevice
	CameraBackend         string `json:"camera_backend" yaml:"camera_backend"`                 // "gocv" or "virtual"
	ContentType           string `json:"content_type" yaml:"content_type"`                     // MIME type sent with every upload
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"` // HTTP timeout for API calls
	UploadTimeoutSeconds  int    `json:"upload_timeout_seconds" yaml:"upload_timeout_seconds"`   // per-attempt presign+PUT budget
	MaxUploadAttempts     int    `json:"max_upload_attempts" yaml:"max_upload_attempts"`         // 1 = abandon after the first failure
	RetryBackoffMillis    int    `json:"retry_backoff_millis" yaml:"retry_backoff_millis"`
	ThumbnailMaxEdge      int    `json:"thumbnail_max_edge" yaml:"thumbnail_max_edge"`
	PreviewFPS            int    `json:"preview_fps" yaml:"preview_fps"`
	JPEGQuality           int    `json:"jpeg_quality" yaml:"jpeg_quality"`
	LogLevel              string `json:"log_level" yaml:"log_level"`
	LogPath               string `json:"log_path" yaml:"log_path"`
}

// DefaultConfig returns a Config populated with default values
func DefaultConfig() *Config {
	return &Config{
		BackendURL:            "http://localhost:8080",
		EventID:               1,
		CameraDevice:          "0",
		FrontCameraDevice:     "1",
		CameraBackend:         CameraBackendGoCV,
		ContentType:           "image/jpeg",
		RequestTimeoutSeconds: 30,
		UploadTimeoutSeconds:  60,
		MaxUploadAttempts:     1,
		RetryBackoffMillis:    500,
		ThumbnailMaxEdge:      240,
		PreviewFPS:            24,
		JPEGQuality:           90,
		LogLevel:              "info",
		LogPath:               "",
	}
}

// LoadConfig loads configuration from a JSON or YAML file.
// A missing file is created with default values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			defaultConfig := DefaultConfig()
			if err := saveFile(filename, defaultConfig); err != nil {
				return nil, fmt.Errorf("failed to create default config file: %w", err)
			}
			return defaultConfig, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := unmarshal(filename, data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

// applyDefaults fills zero values with defaults
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BackendURL == "" {
		c.BackendURL = d.BackendURL
	}
	if c.CameraDevice == "" {
		c.CameraDevice = d.CameraDevice
	}
	if c.FrontCameraDevice == "" {
		c.FrontCameraDevice = d.FrontCameraDevice
	}
	if c.CameraBackend == "" {
		c.CameraBackend = d.CameraBackend
	}
	if c.ContentType == "" {
		c.ContentType = d.ContentType
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = d.RequestTimeoutSeconds
	}
	if c.UploadTimeoutSeconds == 0 {
		c.UploadTimeoutSeconds = d.UploadTimeoutSeconds
	}
	if c.MaxUploadAttempts == 0 {
		c.MaxUploadAttempts = d.MaxUploadAttempts
	}
	if c.RetryBackoffMillis == 0 {
		c.RetryBackoffMillis = d.RetryBackoffMillis
	}
	if c.ThumbnailMaxEdge == 0 {
		c.ThumbnailMaxEdge = d.ThumbnailMaxEdge
	}
	if c.PreviewFPS == 0 {
		c.PreviewFPS = d.PreviewFPS
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = d.JPEGQuality
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend url: %q", c.BackendURL)
	}
	if c.EventID <= 0 {
		return fmt.Errorf("invalid event id: %d", c.EventID)
	}
	switch c.CameraBackend {
	case CameraBackendGoCV, CameraBackendVirtual:
	default:
		return fmt.Errorf("unknown camera backend: %q", c.CameraBackend)
	}
	if c.MaxUploadAttempts < 1 {
		return fmt.Errorf("max upload attempts must be at least 1, got %d", c.MaxUploadAttempts)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.PreviewFPS < 1 {
		return fmt.Errorf("preview fps must be positive, got %d", c.PreviewFPS)
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSeconds) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

// ConfigOverrides holds potential override values for configuration
type ConfigOverrides struct {
	BackendURL        *string
	EventID           *int
	CameraDevice      *string
	CameraBackend     *string
	MaxUploadAttempts *int
	LogLevel          *string
}

// Override allows overriding specific configuration values using ConfigOverrides struct
func (c *Config) Override(overrides ConfigOverrides) {
	if overrides.BackendURL != nil && *overrides.BackendURL != "" {
		c.BackendURL = *overrides.BackendURL
	}
	if overrides.EventID != nil && *overrides.EventID > 0 {
		c.EventID = *overrides.EventID
	}
	if overrides.CameraDevice != nil && *overrides.CameraDevice != "" {
		c.CameraDevice = *overrides.CameraDevice
	}
	if overrides.CameraBackend != nil && *overrides.CameraBackend != "" {
		c.CameraBackend = *overrides.CameraBackend
	}
	if overrides.MaxUploadAttempts != nil && *overrides.MaxUploadAttempts > 0 {
		c.MaxUploadAttempts = *overrides.MaxUploadAttempts
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		c.LogLevel = *overrides.LogLevel
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(filename string, data []byte, v any) error {
	if isYAML(filename) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// saveFile writes v to filename, as YAML or indented JSON depending on the extension
func saveFile(filename string, v any) error {
	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
