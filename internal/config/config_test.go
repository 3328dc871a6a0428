package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxqueue/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
audio:
  path: /usr/share/voxqueue/sounds
  sample_rate: 8000
  channels: 1
  ptime_ms: 20
  alert_module: alsa
  alert_device: default
  dtmf_tone_ms: 120
  inter_digit_delay_ms: 60
  max_silence_ms: 700
journal:
  dsn: "postgres://localhost/voxqueue"
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Audio.Path != "/usr/share/voxqueue/sounds" {
		t.Errorf("audio.path = %q", cfg.Audio.Path)
	}
	if cfg.Journal.DSN == "" {
		t.Error("journal.dsn not parsed")
	}

	prm := cfg.Audio.CaptureParams()
	if prm.SampleRate != 8000 || prm.Channels != 1 || prm.Ptime != 20*time.Millisecond {
		t.Errorf("capture params = %+v", prm)
	}
	if cfg.Audio.DTMFTone() != 120*time.Millisecond {
		t.Errorf("dtmf tone = %v", cfg.Audio.DTMFTone())
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  bogus: 1\n"))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestCaptureParamsDefaults(t *testing.T) {
	var a config.AudioConfig
	prm := a.CaptureParams()
	if prm.SampleRate != 16000 || prm.Channels != 1 || prm.Ptime != 40*time.Millisecond {
		t.Errorf("defaults = %+v", prm)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		ok   bool
	}{
		{"empty config", "", true},
		{"bad log level", "server:\n  log_level: bananas\n", false},
		{"tls missing key", "server:\n  tls:\n    cert_file: /a.pem\n", false},
		{"negative sample rate", "audio:\n  sample_rate: -1\n", false},
		{"too many channels", "audio:\n  channels: 3\n", false},
		{"negative tone", "audio:\n  dtmf_tone_ms: -5\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if (err == nil) != tt.ok {
				t.Errorf("err = %v, ok = %v", err, tt.ok)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	old, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	changed, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	changed.Server.LogLevel = config.LogDebug
	changed.Audio.DTMFToneMS = 90

	d := config.Diff(old, changed)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.AudioChanged {
		t.Error("audio change not detected")
	}

	if d := config.Diff(old, old); d.LogLevelChanged || d.AudioChanged {
		t.Errorf("self diff reported changes: %+v", d)
	}
}
