// Package config provides the configuration schema, loader, and file
// watcher for the voxqueue scheduler service.
package config

import (
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// LogLevel controls log verbosity for the voxqueue server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxqueue.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Journal JournalConfig `yaml:"journal"`
}

// ServerConfig holds network and logging settings for the control server.
type ServerConfig struct {
	// ListenAddr is the TCP address the control server listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig holds the audio path and the timing defaults the parser and
// the capture device run with. All duration fields are in milliseconds.
type AudioConfig struct {
	// Path is the directory holding announcement and DTMF tone files
	// (sound0.wav .. sound9.wav, soundstar.wav, soundroute.wav, …).
	// Relative play filenames resolve against it.
	Path string `yaml:"path"`

	// SampleRate of recordings in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels of recordings. Default 1.
	Channels int `yaml:"channels"`

	// PtimeMS is the packet interval the capture device is driven at.
	// Default 40.
	PtimeMS int `yaml:"ptime_ms"`

	// AlertModule and AlertDevice select the host playback module and
	// device announcements are rendered on. Empty selects the host
	// defaults.
	AlertModule string `yaml:"alert_module"`
	AlertDevice string `yaml:"alert_device"`

	// DTMFToneMS is the fixed length of one DTMF tone file. Default 100.
	DTMFToneMS int `yaml:"dtmf_tone_ms"`

	// InterDigitDelayMS is the default pause between DTMF tones when a
	// command carries no explicit delay. Default 40.
	InterDigitDelayMS int `yaml:"inter_digit_delay_ms"`

	// MaxSilenceMS is the default silence timeout ending a recording
	// when a command carries no explicit value. Default 500.
	MaxSilenceMS int `yaml:"max_silence_ms"`
}

// JournalConfig enables the PostgreSQL call-event journal.
type JournalConfig struct {
	// DSN is the pgx connection string. Empty disables the journal.
	DSN string `yaml:"dsn"`
}

// CaptureParams translates the audio settings into the capture format the
// scheduler hands to the capture device, applying defaults for unset
// fields.
func (a AudioConfig) CaptureParams() audio.CaptureParams {
	prm := audio.DefaultCaptureParams()
	if a.SampleRate > 0 {
		prm.SampleRate = a.SampleRate
	}
	if a.Channels > 0 {
		prm.Channels = a.Channels
	}
	if a.PtimeMS > 0 {
		prm.Ptime = time.Duration(a.PtimeMS) * time.Millisecond
	}
	return prm
}

// DTMFTone returns the configured tone length, zero when unset.
func (a AudioConfig) DTMFTone() time.Duration {
	return time.Duration(a.DTMFToneMS) * time.Millisecond
}

// InterDigitDelay returns the configured default inter-digit delay, zero
// when unset.
func (a AudioConfig) InterDigitDelay() time.Duration {
	return time.Duration(a.InterDigitDelayMS) * time.Millisecond
}

// MaxSilence returns the configured default silence timeout, zero when
// unset.
func (a AudioConfig) MaxSilence() time.Duration {
	return time.Duration(a.MaxSilenceMS) * time.Millisecond
}
