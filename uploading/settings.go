package uploading

import (
	"time"

	"github.com/jlyon1/party-camera-ios/config"
)

type RetrySettings struct {
	MaxAttempts int           // total attempts per entry, including the first
	Backoff     time.Duration // wait before the second attempt; doubles after each failure
	MaxBackoff  time.Duration // upper bound for a single wait; 0 means no bound
}

// RetrySettingsProvider implements SettingsProvider for RetrySettings
type RetrySettingsProvider struct {
	configProvider config.SettingsProvider[config.Config]
}

// NewRetrySettingsProvider creates a new RetrySettingsProvider
func NewRetrySettingsProvider(configProvider config.SettingsProvider[config.Config]) *RetrySettingsProvider {
	return &RetrySettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings returns the current retry settings mapped from the client config
func (p *RetrySettingsProvider) GetSettings() RetrySettings {
	cfg := p.configProvider.GetSettings()

	return RetrySettings{
		MaxAttempts: cfg.MaxUploadAttempts,
		Backoff:     cfg.RetryBackoff(),
		MaxBackoff:  30 * time.Second,
	}
}
