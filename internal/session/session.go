// Package session ties one call to its scheduler.
//
// A [Session] owns the [vqueue.Scheduler] of a single call, the parser
// configured from the audio settings, and the glue that feeds lifecycle
// events into metrics and the call-event journal. The host creates one
// Session at call setup and closes it at teardown; nothing here is
// process-global.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voxqueue/internal/config"
	"github.com/MrWong99/voxqueue/internal/journal"
	"github.com/MrWong99/voxqueue/internal/observe"
	"github.com/MrWong99/voxqueue/pkg/audio"
	"github.com/MrWong99/voxqueue/pkg/audio/aufile"
	"github.com/MrWong99/voxqueue/pkg/vqueue"
)

// journalBuffer bounds the in-flight journal writes per session. Events
// beyond it are dropped with a warning rather than stalling the scheduler.
const journalBuffer = 64

// Config holds the collaborators of a [Session].
type Config struct {
	// CallID identifies the call. Empty generates a UUID.
	CallID string

	// Audio carries the audio path and timing defaults.
	Audio config.AudioConfig

	// Player and Capture are the call's devices. Player is required.
	Player  audio.Player
	Capture audio.Capture

	// Clock overrides the monotonic time source (tests).
	Clock audio.Clock

	// Prober overrides file probing. Defaults to an [aufile.Prober]
	// rooted at Audio.Path.
	Prober audio.FileProber

	// Journal receives lifecycle events. Nil disables journalling.
	Journal *journal.Journal

	// Metrics receives scheduler metrics. Nil selects the default.
	Metrics *observe.Metrics
}

// Session is the per-call command surface over one scheduler.
// All exported methods are safe for concurrent use.
type Session struct {
	id      string
	parser  *vqueue.Parser
	sched   *vqueue.Scheduler
	metrics *observe.Metrics
	journal *journal.Journal

	events    chan journal.Event
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a session and its scheduler.
func New(cfg Config) *Session {
	if cfg.CallID == "" {
		cfg.CallID = uuid.NewString()
	}
	if cfg.Prober == nil {
		cfg.Prober = aufile.Prober{Root: cfg.Audio.Path}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Session{
		id:      cfg.CallID,
		metrics: cfg.Metrics,
		journal: cfg.Journal,
		events:  make(chan journal.Event, journalBuffer),
		done:    make(chan struct{}),
	}

	var opts []vqueue.ParserOption
	if d := cfg.Audio.DTMFTone(); d > 0 {
		opts = append(opts, vqueue.WithToneDuration(d))
	}
	if d := cfg.Audio.InterDigitDelay(); d > 0 {
		opts = append(opts, vqueue.WithInterDigitDelay(d))
	}
	if d := cfg.Audio.MaxSilence(); d > 0 {
		opts = append(opts, vqueue.WithMaxSilence(d))
	}
	s.parser = vqueue.NewParser(cfg.Prober, opts...)

	s.sched = vqueue.NewScheduler(vqueue.SchedulerConfig{
		Player:        cfg.Player,
		Capture:       cfg.Capture,
		Clock:         cfg.Clock,
		CaptureParams: cfg.Audio.CaptureParams(),
		Hooks:         s.hooks(),
	})

	go s.drainEvents()
	return s
}

// ID returns the call id the session was created with.
func (s *Session) ID() string { return s.id }

// Command executes one control command line:
//
//	vqueue_enqueue <priority> <mode>+ <atom>+   → molecule id
//	vqueue_stop <id>                            → 0
//	vqueue_cancel <priority>                    → 0
func (s *Session) Command(line string) (int64, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch verb {
	case "vqueue_enqueue":
		return s.Enqueue(rest)

	case "vqueue_stop":
		id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("vqueue_stop: bad id %q", rest)
		}
		s.sched.Stop(id)
		return 0, nil

	case "vqueue_cancel":
		p, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return 0, fmt.Errorf("vqueue_cancel: bad priority %q", rest)
		}
		s.sched.CancelPriority(p)
		return 0, nil

	default:
		return 0, fmt.Errorf("unknown command %q", verb)
	}
}

// Enqueue parses a molecule description and hands it to the scheduler,
// returning the molecule id.
func (s *Session) Enqueue(desc string) (int64, error) {
	m, err := s.parser.Parse(desc)
	if err != nil {
		s.metrics.RecordParseError(context.Background(), parseErrorKind(err))
		s.record(journal.Event{
			CallID:   s.id,
			Type:     journal.EventRejected,
			Priority: -1,
			Command:  desc,
			Detail:   err.Error(),
		})
		return 0, err
	}
	return s.sched.Enqueue(m), nil
}

// DigitPressed feeds a live DTMF digit from the call's audio stream into
// the scheduler's dtmf_stop path.
func (s *Session) DigitPressed(digit byte) {
	s.sched.DigitPressed(digit)
}

// Scheduler exposes the underlying scheduler for host integrations that
// hold molecule ids.
func (s *Session) Scheduler() *vqueue.Scheduler { return s.sched }

// Close stops the journal writer. The scheduler needs no teardown beyond
// the host releasing its devices.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// hooks builds the scheduler callbacks feeding metrics and journal. Hooks
// run under the scheduler lock, so everything here must be non-blocking:
// metric instruments are lock-free, journal events go through a buffered
// channel.
func (s *Session) hooks() vqueue.Hooks {
	ctx := context.Background()
	return vqueue.Hooks{
		OnEnqueue: func(m *vqueue.Molecule) {
			s.metrics.MoleculesEnqueued.Add(ctx, 1, metric.WithAttributes(
				observe.Attr("priority", strconv.Itoa(m.Priority)),
				observe.Attr("mode", m.Mode.String()),
			))
			s.metrics.QueueDepth.Add(ctx, 1)
			s.record(journal.Event{
				CallID:     s.id,
				Type:       journal.EventEnqueued,
				MoleculeID: m.ID,
				Priority:   m.Priority,
				Command:    m.Describe(),
			})
		},
		OnStart: func(m *vqueue.Molecule, a vqueue.Atom) {
			s.record(journal.Event{
				CallID:     s.id,
				Type:       journal.EventStarted,
				MoleculeID: m.ID,
				Priority:   m.Priority,
				Detail:     a.Kind().String(),
				Position:   m.Position,
			})
		},
		OnPreempt: func(m, by *vqueue.Molecule) {
			s.metrics.RecordPreemption(ctx, m.Mode.InterruptPolicy().String())
			s.record(journal.Event{
				CallID:     s.id,
				Type:       journal.EventPreempted,
				MoleculeID: m.ID,
				Priority:   m.Priority,
				Detail:     fmt.Sprintf("by %d", by.ID),
				Position:   m.Position,
			})
		},
		OnResume: func(m *vqueue.Molecule) {
			s.record(journal.Event{
				CallID:     s.id,
				Type:       journal.EventResumed,
				MoleculeID: m.ID,
				Priority:   m.Priority,
				Position:   m.Position,
			})
		},
		OnAtomDone: func(m *vqueue.Molecule, a vqueue.Atom, played time.Duration) {
			s.metrics.AtomDuration.Record(ctx, played.Seconds(), metric.WithAttributes(
				observe.Attr("kind", a.Kind().String()),
			))
		},
		OnFinish: func(m *vqueue.Molecule, reason vqueue.FinishReason) {
			s.metrics.RecordFinish(ctx, reason.String())
			s.metrics.QueueDepth.Add(ctx, -1)
			s.record(journal.Event{
				CallID:     s.id,
				Type:       finishEvent(reason),
				MoleculeID: m.ID,
				Priority:   m.Priority,
				Position:   m.Position,
				Detail:     reason.String(),
			})
		},
	}
}

// record hands an event to the journal writer without blocking.
func (s *Session) record(ev journal.Event) {
	if s.journal == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		slog.Warn("session: journal buffer full, dropping event",
			"call", s.id, "event", ev.Type)
	}
}

// drainEvents writes journal events until Close.
func (s *Session) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			s.journal.Record(context.Background(), ev)
		case <-s.done:
			return
		}
	}
}

// finishEvent maps a scheduler finish reason to its journal event type.
func finishEvent(r vqueue.FinishReason) journal.EventType {
	switch r {
	case vqueue.FinishCompleted:
		return journal.EventCompleted
	case vqueue.FinishCancelled:
		return journal.EventCancelled
	case vqueue.FinishDiscarded:
		return journal.EventDiscarded
	default:
		return journal.EventFailed
	}
}

// parseErrorKind maps a parse error to its metric label.
func parseErrorKind(err error) string {
	switch {
	case errors.Is(err, vqueue.ErrInvalidPriority):
		return "invalid_priority"
	case errors.Is(err, vqueue.ErrConflictingModes):
		return "conflicting_modes"
	case errors.Is(err, vqueue.ErrEmptyMolecule):
		return "empty_molecule"
	case errors.Is(err, vqueue.ErrBadFile):
		return "bad_file"
	case errors.Is(err, vqueue.ErrMissingArgument):
		return "missing_argument"
	case errors.Is(err, vqueue.ErrUnknownToken):
		return "unknown_token"
	default:
		return "other"
	}
}
