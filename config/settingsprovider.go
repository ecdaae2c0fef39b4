package config

import "sync"

type SettingsProvider[T any] interface {
	// GetSettings returns the current settings of type T.
	GetSettings() T
}

// StaticSettingsProvider serves a settings value that can be replaced at runtime
type StaticSettingsProvider[T any] struct {
	mu       sync.RWMutex
	settings T
}

func NewStaticSettingsProvider[T any](settings T) *StaticSettingsProvider[T] {
	return &StaticSettingsProvider[T]{settings: settings}
}

func (p *StaticSettingsProvider[T]) GetSettings() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Update replaces the served settings; readers see the new value on their next call
func (p *StaticSettingsProvider[T]) Update(settings T) {
	p.mu.Lock()
	p.settings = settings
	p.mu.Unlock()
}
