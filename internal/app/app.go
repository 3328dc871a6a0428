// Package app wires all voxqueue subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes them until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via the Deps struct. When a
// dependency is not provided, New creates the real implementation from the
// config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxqueue/internal/config"
	"github.com/MrWong99/voxqueue/internal/control"
	"github.com/MrWong99/voxqueue/internal/journal"
	"github.com/MrWong99/voxqueue/internal/observe"
	"github.com/MrWong99/voxqueue/internal/session"
)

// Deps are the injectable collaborators of an [App].
type Deps struct {
	// Devices opens per-call audio devices. Required — only the host
	// user-agent knows how to reach a call's media.
	Devices session.DeviceOpener

	// Audio overrides where sessions read their audio settings from,
	// letting a config watcher feed hot-reloaded values. Defaults to the
	// config New was built with.
	Audio func() config.AudioConfig

	// Journal overrides journal creation; when nil and the config carries
	// a DSN, New opens the real one.
	Journal *journal.Journal

	// Metrics overrides the metrics instance (tests).
	Metrics *observe.Metrics
}

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	journal  *journal.Journal
	ownsJrnl bool
	sessions *session.Manager
	server   *control.Server
}

// New builds the application from cfg.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	a := &App{cfg: cfg}

	a.journal = deps.Journal
	if a.journal == nil && cfg.Journal.DSN != "" {
		j, err := journal.Open(ctx, cfg.Journal.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.journal = j
		a.ownsJrnl = true
		slog.Info("call-event journal enabled")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	audioFn := deps.Audio
	if audioFn == nil {
		audioFn = func() config.AudioConfig { return cfg.Audio }
	}
	a.sessions = session.NewManager(session.ManagerConfig{
		Audio:   audioFn,
		Devices: deps.Devices,
		Journal: a.journal,
		Metrics: metrics,
	})

	srvCfg := control.Config{
		Addr:      cfg.Server.ListenAddr,
		Commander: a.sessions,
		Metrics:   metrics,
		Sessions:  a.sessions.Len,
		Checkers: []control.Checker{
			{Name: "journal", Check: a.journal.Healthcheck},
			{Name: "audio_path", Check: audioPathCheck(cfg.Audio.Path)},
		},
	}
	if cfg.Server.TLS != nil {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}
	a.server = control.New(srvCfg)

	return a, nil
}

// Sessions exposes the session manager for host integrations (call setup
// and teardown, live DTMF routing).
func (a *App) Sessions() *session.Manager { return a.sessions }

// Run serves until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("control server listening", "addr", a.cfg.Server.ListenAddr)
		return a.server.Run(ctx)
	})

	err := g.Wait()
	a.Shutdown()
	return err
}

// Shutdown tears down sessions and the journal. Safe to call after Run
// returned.
func (a *App) Shutdown() {
	a.sessions.Close()
	if a.ownsJrnl {
		a.journal.Close()
	}
}

// audioPathCheck reports whether the configured audio path is reachable.
// An unset path is healthy — play filenames are then taken as given.
func audioPathCheck(path string) func(context.Context) error {
	return func(context.Context) error {
		if path == "" {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("audio path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("audio path %q is not a directory", path)
		}
		return nil
	}
}
