// Package mock provides in-memory fakes of the [audio.Player],
// [audio.Capture], and [audio.Clock] contracts for use in unit tests.
//
// All mocks are safe for concurrent use. Every started operation is
// recorded as an [Op]; the test drives the scheduler by finishing or
// cancelling ops explicitly, which delivers the completion callback the
// way the host dispatcher would.
//
// Typical usage:
//
//	player := &mock.Player{}
//	clock := mock.NewClock(time.Unix(0, 0))
//	s := vqueue.NewScheduler(vqueue.SchedulerConfig{Player: player, Clock: clock})
//	s.Enqueue(m)
//	clock.Advance(2 * time.Second)
//	player.Last().Finish(2 * time.Second)
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// ─── Op ───────────────────────────────────────────────────────────────────────

// Op is one recorded playback or capture operation. Tests inspect its
// fields and call [Op.Finish] or [Op.Cancel] to deliver the completion.
type Op struct {
	mu sync.Mutex

	// Filename passed to Start.
	Filename string

	// Offset passed to Player.Start; zero for captures.
	Offset time.Duration

	// Params passed to Capture.Start; zero value for playbacks.
	Params audio.CaptureParams

	// MaxSilence passed to Capture.Start; zero for playbacks.
	MaxSilence time.Duration

	done     audio.CompletionFunc
	stopped  bool
	finished bool
}

// Stop implements [audio.Handle]. The pending completion is suppressed,
// matching the contract of a released host operation.
func (o *Op) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
}

// Stopped reports whether the scheduler released this operation.
func (o *Op) Stopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// Finish delivers a natural completion. It is a no-op on a stopped or
// already finished op, so tests can finish unconditionally.
func (o *Op) Finish(played time.Duration) {
	o.complete(played, false)
}

// Cancel delivers a host-side cancellation (device teardown, hangup): the
// completion fires with the cancelled flag set.
func (o *Op) Cancel(played time.Duration) {
	o.complete(played, true)
}

func (o *Op) complete(played time.Duration, cancelled bool) {
	o.mu.Lock()
	if o.stopped || o.finished {
		o.mu.Unlock()
		return
	}
	o.finished = true
	done := o.done
	o.mu.Unlock()
	done(played, cancelled)
}

// ─── Player ───────────────────────────────────────────────────────────────────

// Player is a mock [audio.Player]. Set StartErr to make Start fail;
// inspect Ops (in start order) afterwards.
type Player struct {
	mu sync.Mutex

	// StartErr, when non-nil, is returned by every Start call.
	StartErr error

	// Ops records every started playback in order.
	Ops []*Op
}

// Start implements [audio.Player].
func (p *Player) Start(filename string, offset time.Duration, done audio.CompletionFunc) (audio.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	op := &Op{Filename: filename, Offset: offset, done: done}
	p.Ops = append(p.Ops, op)
	return op, nil
}

// Last returns the most recently started op, or nil if none was started.
func (p *Player) Last() *Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Ops) == 0 {
		return nil
	}
	return p.Ops[len(p.Ops)-1]
}

// Started returns the number of Start calls that succeeded.
func (p *Player) Started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Ops)
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is a mock [audio.Capture] with the same shape as [Player].
type Capture struct {
	mu sync.Mutex

	// StartErr, when non-nil, is returned by every Start call.
	StartErr error

	// Ops records every started recording in order.
	Ops []*Op
}

// Start implements [audio.Capture].
func (c *Capture) Start(prm audio.CaptureParams, filename string, maxSilence time.Duration, done audio.CompletionFunc) (audio.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StartErr != nil {
		return nil, c.StartErr
	}
	op := &Op{Filename: filename, Params: prm, MaxSilence: maxSilence, done: done}
	c.Ops = append(c.Ops, op)
	return op, nil
}

// Last returns the most recently started op, or nil if none was started.
func (c *Capture) Last() *Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Ops) == 0 {
		return nil
	}
	return c.Ops[len(c.Ops)-1]
}

// ─── Clock ────────────────────────────────────────────────────────────────────

// Clock is a manually advanced [audio.Clock].
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now implements [audio.Clock].
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ─── Prober ───────────────────────────────────────────────────────────────────

// Prober is a mock [audio.FileProber] backed by a filename→length map.
type Prober struct {
	// Lengths maps filenames to the duration Probe reports. Filenames not
	// present yield ProbeErr.
	Lengths map[string]time.Duration

	// ProbeErr is returned for unknown filenames. When nil, a generic
	// error is returned instead.
	ProbeErr error
}

// Probe implements [audio.FileProber].
func (p *Prober) Probe(path string) (time.Duration, error) {
	if d, ok := p.Lengths[path]; ok {
		return d, nil
	}
	if p.ProbeErr != nil {
		return 0, p.ProbeErr
	}
	return 0, errUnknownFile
}

var errUnknownFile = &probeError{}

type probeError struct{}

func (*probeError) Error() string { return "mock: unknown audio file" }
