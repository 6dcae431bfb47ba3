package driven

import "time"

// ConfigStore provides access to application configuration.
// Keys use dot notation (e.g. "snapshot.backend").
// Typed getters return the zero value when the key is missing or the value
// cannot be converted.
type ConfigStore interface {
	// Get retrieves a raw configuration value and whether the key exists.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int

	// GetFloat converts integer values as well.
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetStringSlice also accepts a comma separated string.
	GetStringSlice(key string) []string

	// GetDuration accepts duration strings ("5m") or whole seconds.
	GetDuration(key string) time.Duration

	// Set stores a configuration value and persists it immediately.
	Set(key string, value any) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage, replacing what is held.
	Load() error

	// Path returns where the configuration is stored.
	Path() string
}
