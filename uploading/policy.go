package uploading

import (
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/config"
)

// FailurePolicy decides what happens to an entry after a failed attempt
type FailurePolicy interface {
	// Retry reports whether the entry gets another attempt after the given
	// number of failed attempts, and how long to wait before it.
	Retry(attempts int, err error) (time.Duration, bool)
}

// AbandonPolicy gives up on an entry after its first failure and moves on
// to the next one.
type AbandonPolicy struct{}

func (AbandonPolicy) Retry(int, error) (time.Duration, bool) {
	return 0, false
}

// RetryPolicy re-attempts recoverable failures with exponential backoff.
// The entry stays at the head while it is retried, so FIFO order holds.
type RetryPolicy struct {
	settings config.SettingsProvider[RetrySettings]
}

func NewRetryPolicy(settings config.SettingsProvider[RetrySettings]) *RetryPolicy {
	return &RetryPolicy{settings: settings}
}

func (p *RetryPolicy) Retry(attempts int, err error) (time.Duration, bool) {
	settings := p.settings.GetSettings()

	if attempts >= settings.MaxAttempts || !backend.IsRecoverableError(err) {
		return 0, false
	}

	backoff := settings.Backoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if settings.MaxBackoff > 0 && backoff >= settings.MaxBackoff {
			return settings.MaxBackoff, true
		}
	}
	if settings.MaxBackoff > 0 && backoff > settings.MaxBackoff {
		backoff = settings.MaxBackoff
	}
	return backoff, true
}

// PolicyFromConfig returns AbandonPolicy when the config allows a single
// attempt, otherwise a RetryPolicy that follows later config updates.
func PolicyFromConfig(provider config.SettingsProvider[config.Config]) FailurePolicy {
	if provider.GetSettings().MaxUploadAttempts <= 1 {
		return AbandonPolicy{}
	}
	return NewRetryPolicy(NewRetrySettingsProvider(provider))
}
