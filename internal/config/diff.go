package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; structural
// settings (listen address, TLS, journal DSN) require a restart.
type ConfigDiff struct {
	// AudioChanged is true when the audio path or any timing default
	// changed. New sessions pick the new values up; running molecules
	// keep the parameters they were parsed with.
	AudioChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Audio != new.Audio {
		d.AudioChanged = true
	}

	return d
}
