package vqueue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// FinishReason states why a molecule left its lane.
type FinishReason int

const (
	// FinishCompleted — every atom ran to its natural end.
	FinishCompleted FinishReason = iota

	// FinishCancelled — removed by vqueue_stop, vqueue_cancel, or a
	// DtmfStop digit. A host-side cancellation of the running audio
	// operation does not finish the molecule; its atom is dispatched again.
	FinishCancelled

	// FinishDiscarded — dropped by preemption under the Discard policy,
	// or a Mute molecule whose virtual position ran past its end.
	FinishDiscarded

	// FinishFailed — the audio adapter refused to start the atom.
	FinishFailed
)

// String returns the reason's log label.
func (r FinishReason) String() string {
	switch r {
	case FinishCompleted:
		return "completed"
	case FinishCancelled:
		return "cancelled"
	case FinishDiscarded:
		return "discarded"
	case FinishFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Hooks are optional lifecycle callbacks, used by the session layer to feed
// metrics and the call-event journal. Any field may be nil.
//
// Hooks run with the scheduler's lock held: they must return quickly and
// must not call back into the Scheduler.
type Hooks struct {
	// OnEnqueue fires after a molecule is appended to its lane.
	OnEnqueue func(m *Molecule)

	// OnStart fires when an atom's audio operation has been started.
	OnStart func(m *Molecule, a Atom)

	// OnPreempt fires when a running molecule is stopped in favour of by.
	OnPreempt func(m, by *Molecule)

	// OnResume fires when a previously preempted molecule is dispatched
	// again, after any Mute seek has been applied.
	OnResume func(m *Molecule)

	// OnAtomDone fires when an atom's audio operation ran to its natural
	// end, with the duration the device reported.
	OnAtomDone func(m *Molecule, a Atom, played time.Duration)

	// OnFinish fires when a molecule leaves its lane for good.
	OnFinish func(m *Molecule, reason FinishReason)
}

// SchedulerConfig carries the collaborators of a [Scheduler].
type SchedulerConfig struct {
	// Player drives the call's playback device. Required.
	Player audio.Player

	// Capture drives the call's capture device. Required for record atoms.
	Capture audio.Capture

	// Clock is the monotonic time source. Defaults to [audio.SystemClock].
	Clock audio.Clock

	// CaptureParams is the PCM format for recordings. Defaults to
	// [audio.DefaultCaptureParams].
	CaptureParams audio.CaptureParams

	// Hooks are optional lifecycle callbacks.
	Hooks Hooks
}

// Scheduler executes molecules against the single playback and capture
// channel of one call. It is the preemption-and-resumption engine: every
// enqueue and every completion runs one scheduling decision, starts at most
// one audio operation, and returns.
//
// The model is single-threaded cooperative. Entry points serialise on one
// mutex and run to completion; audio I/O happens on host threads and comes
// back only through the completion trampoline. One Scheduler belongs to one
// call — create it at call setup, drop it at teardown.
type Scheduler struct {
	mu      sync.Mutex
	queue   *Queue
	player  audio.Player
	capture audio.Capture
	clock   audio.Clock
	prm     audio.CaptureParams
	hooks   Hooks

	running *Molecule
	curPlay audio.Handle
	curRec  audio.Handle

	// seq invalidates completion trampolines of released operations. A
	// trampoline whose captured seq no longer matches is stale and drops
	// its event.
	seq uint64
}

// NewScheduler creates a Scheduler for one call.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = audio.SystemClock{}
	}
	if cfg.CaptureParams == (audio.CaptureParams{}) {
		cfg.CaptureParams = audio.DefaultCaptureParams()
	}
	return &Scheduler{
		queue:   NewQueue(),
		player:  cfg.Player,
		capture: cfg.Capture,
		clock:   cfg.Clock,
		prm:     cfg.CaptureParams,
		hooks:   cfg.Hooks,
	}
}

// Enqueue appends m to its priority lane, preempting the running molecule
// when m outranks it, and returns the molecule's id.
func (s *Scheduler) Enqueue(m *Molecule) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.queue.Enqueue(m)
	if s.hooks.OnEnqueue != nil {
		s.hooks.OnEnqueue(m)
	}

	if cur := s.running; cur != nil {
		// An incumbent with DontInterrupt is never disturbed, whatever
		// the newcomer's priority; it will be reconsidered on completion.
		if cur.Mode.Has(ModeDontInterrupt) {
			return id
		}
		if m.Priority > cur.Priority {
			s.preempt(cur, m)
			s.step()
		}
		return id
	}

	s.step()
	return id
}

// Stop cancels the molecule with the given id, running or queued. Unknown
// ids are a silent no-op.
func (s *Scheduler) Stop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.running; cur != nil && cur.ID == id {
		s.releaseCurrent()
		s.running = nil
		s.queue.Remove(cur)
		s.finish(cur, FinishCancelled)
		s.step()
		return
	}
	if m := s.queue.Cancel(id); m != nil {
		s.finish(m, FinishCancelled)
	}
}

// CancelPriority discards every molecule in lane p. Out-of-range lanes are
// a silent no-op.
func (s *Scheduler) CancelPriority(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.queue.CancelPriority(p)
	if len(removed) == 0 {
		return
	}
	wasRunning := s.running != nil && s.running.Priority == p
	if wasRunning {
		s.releaseCurrent()
		s.running = nil
	}
	for _, m := range removed {
		s.finish(m, FinishCancelled)
	}
	if wasRunning {
		s.step()
	}
}

// DigitPressed feeds one live DTMF digit from the call's audio stream. If
// the running molecule has DtmfStop set, it is cancelled and the next
// candidate starts. Preempted molecules are not affected — a molecule can
// only be stopped by a digit it was playing over.
func (s *Scheduler) DigitPressed(digit byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.running
	if cur == nil || !cur.Mode.Has(ModeDtmfStop) {
		return
	}
	slog.Debug("vqueue: dtmf_stop", "digit", string(digit), "id", cur.ID)
	s.releaseCurrent()
	s.running = nil
	s.queue.Remove(cur)
	s.finish(cur, FinishCancelled)
	s.step()
}

// Running returns the molecule whose atom is currently on a device, or nil
// when the scheduler is idle.
func (s *Scheduler) Running() *Molecule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Len is the total number of queued molecules, the running one included.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// LaneLen is the number of molecules queued at priority p.
func (s *Scheduler) LaneLen(p int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.LaneLen(p)
}

// ─── internals ────────────────────────────────────────────────────────────────

// preempt stops cur in favour of by and applies cur's interrupt policy.
// Callers hold s.mu.
func (s *Scheduler) preempt(cur, by *Molecule) {
	now := s.clock.Now()
	cur.stopClock(now)
	cur.preempted = true
	s.releaseCurrent()
	s.running = nil

	if s.hooks.OnPreempt != nil {
		s.hooks.OnPreempt(cur, by)
	}
	slog.Debug("vqueue: preempted",
		"id", cur.ID, "by", by.ID, "policy", cur.Mode.InterruptPolicy().String(),
		"position", cur.Position)

	switch cur.Mode.InterruptPolicy() {
	case ModeDiscard:
		s.queue.Remove(cur)
		s.finish(cur, FinishDiscarded)
	case ModeRestart:
		cur.Current = 0
		cur.Position = 0
		for _, a := range cur.Atoms {
			if d, ok := a.(*DTMF); ok {
				d.Reset()
			}
		}
	case ModePause:
		// Replay the interrupted atom from its start.
		if d, ok := cur.Atoms[cur.Current].(*DTMF); ok {
			d.Reset()
		}
	case ModeMute:
		// Latched; resume logic runs in step.
	}
}

// step runs the dispatch loop: pick the next candidate, apply any Mute
// catch-up, and start exactly one audio operation. It terminates because
// every iteration either starts an operation and returns, or removes a
// molecule from the queue. Callers hold s.mu.
func (s *Scheduler) step() {
	for {
		m := s.queue.Next()
		if m == nil {
			return
		}
		now := s.clock.Now()

		if m.preempted {
			if m.Mode.InterruptPolicy() == ModeMute {
				target := m.Position + now.Sub(m.timeStopped)
				if !m.Mode.Has(ModeLoop) && target >= m.TotalLength() {
					// The molecule virtually played out while muted.
					m.preempted = false
					s.queue.Remove(m)
					s.finish(m, FinishDiscarded)
					continue
				}
				m.Seek(target)
			}
			m.preempted = false
			if s.hooks.OnResume != nil {
				s.hooks.OnResume(m)
			}
		}

		if err := s.dispatch(m, now); err != nil {
			slog.Error("vqueue: audio start failed, dropping molecule",
				"id", m.ID, "atom", m.Atoms[m.Current].Kind().String(), "err", err)
			s.queue.Remove(m)
			s.finish(m, FinishFailed)
			continue
		}
		return
	}
}

// dispatch starts the audio operation for m's current atom. Callers hold
// s.mu.
func (s *Scheduler) dispatch(m *Molecule, now time.Time) error {
	a := m.Atoms[m.Current]
	s.seq++
	done := s.trampoline(m, s.seq)

	switch at := a.(type) {
	case *Play:
		h, err := s.player.Start(at.Filename, at.Offset, done)
		if err != nil {
			return err
		}
		s.curPlay = h

	case *DTMF:
		h, err := s.player.Start(audio.ToneFilename(at.Current()), 0, done)
		if err != nil {
			return err
		}
		s.curPlay = h

	case *Record:
		h, err := s.capture.Start(s.prm, at.Filename, at.MaxSilence, done)
		if err != nil {
			return err
		}
		s.curRec = h
	}

	m.timeStarted = now
	s.running = m
	if s.hooks.OnStart != nil {
		s.hooks.OnStart(m, a)
	}
	return nil
}

// trampoline binds a completion callback to the molecule and the dispatch
// sequence number. Completions arriving after the operation was released
// carry a stale seq and are dropped.
func (s *Scheduler) trampoline(m *Molecule, seq uint64) audio.CompletionFunc {
	return func(played time.Duration, cancelled bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq != s.seq || s.running != m {
			return
		}
		s.onComplete(m, played, cancelled)
	}
}

// onComplete handles the end of the running atom. Callers hold s.mu.
func (s *Scheduler) onComplete(m *Molecule, played time.Duration, cancelled bool) {
	now := s.clock.Now()
	s.releaseCurrent()
	s.running = nil
	m.stopClock(now)

	if cancelled {
		// Host cancelled the operation underneath us; keep the cursor
		// where it is and let the queue decide what runs next.
		s.step()
		return
	}

	a := m.Atoms[m.Current]
	if s.hooks.OnAtomDone != nil {
		s.hooks.OnAtomDone(m, a, played)
	}
	switch at := a.(type) {
	case *Record:
		at.setLength(played)
	case *DTMF:
		if !at.Advance() {
			// More digits to drain before the atom is complete.
			s.step()
			return
		}
		at.Reset()
	}

	if m.Mode.Has(ModeLoop) && m.Current+1 == len(m.Atoms) {
		m.Current = 0
	} else {
		m.Current++
	}

	if m.Complete() && !m.Mode.Has(ModeLoop) {
		s.queue.Remove(m)
		s.finish(m, FinishCompleted)
	}
	s.step()
}

// releaseCurrent stops whichever audio operation is outstanding and
// invalidates its pending completion. Idempotent. Callers hold s.mu.
func (s *Scheduler) releaseCurrent() {
	s.seq++
	if s.curPlay != nil {
		s.curPlay.Stop()
		s.curPlay = nil
	}
	if s.curRec != nil {
		s.curRec.Stop()
		s.curRec = nil
	}
}

// finish reports a molecule's terminal removal. Callers hold s.mu.
func (s *Scheduler) finish(m *Molecule, reason FinishReason) {
	slog.Debug("vqueue: molecule finished", "id", m.ID, "reason", reason.String())
	if s.hooks.OnFinish != nil {
		s.hooks.OnFinish(m, reason)
	}
}
