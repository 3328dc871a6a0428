// Command voxqueue is the standalone audio-command scheduler daemon.
//
// It loads the YAML configuration, initialises telemetry, and serves the
// vqueue command surface over the control server. Without a host
// user-agent, calls run against the file-backed device pair from
// pkg/audio/aufiledev.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrWong99/voxqueue/internal/app"
	"github.com/MrWong99/voxqueue/internal/config"
	"github.com/MrWong99/voxqueue/internal/observe"
	"github.com/MrWong99/voxqueue/pkg/audio"
	"github.com/MrWong99/voxqueue/pkg/audio/aufiledev"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	recordDir := flag.String("record-dir", ".", "directory recordings are written into")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, onConfigChange)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxqueue: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxqueue: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxqueue starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"audio_path", cfg.Audio.Path,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxqueue",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, app.Deps{
		Devices: fileDevices{
			audioRoot:  func() string { return watcher.Current().Audio.Path },
			recordRoot: *recordDir,
		},
		Audio: func() config.AudioConfig { return watcher.Current().Audio },
	})
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// fileDevices opens the file-backed device pair for every call, with the
// audio path in effect when the call opens.
type fileDevices struct {
	audioRoot  func() string
	recordRoot string
}

// Devices implements session.DeviceOpener.
func (d fileDevices) Devices(callID string) (audio.Player, audio.Capture, error) {
	return &aufiledev.Player{Root: d.audioRoot()},
		&aufiledev.Capture{Root: d.recordRoot},
		nil
}

// onConfigChange reacts to hot-reloadable config updates.
func onConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		slog.SetDefault(newLogger(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AudioChanged {
		slog.Info("audio settings changed; new sessions pick them up")
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
