package vqueue

import (
	"strconv"
	"strings"
	"time"
)

// Mode is the bitset of molecule behaviour flags. At most one of the
// interrupt policies (Discard, Pause, Mute, Restart, DontInterrupt) may be
// set; Loop and DtmfStop are independent.
type Mode uint

const (
	// ModeDiscard drops the molecule when it is preempted.
	ModeDiscard Mode = 1 << iota

	// ModePause resumes at the start of the interrupted atom.
	ModePause

	// ModeMute keeps time running virtually while preempted and resumes
	// at the position the molecule would have reached.
	ModeMute

	// ModeRestart resumes from the first atom at offset zero.
	ModeRestart

	// ModeDontInterrupt shields the molecule from preemption entirely.
	ModeDontInterrupt

	// ModeLoop wraps to the first atom instead of completing.
	ModeLoop

	// ModeDtmfStop cancels the molecule when a live DTMF digit arrives
	// while it is running.
	ModeDtmfStop
)

// interruptPolicies masks the mutually-exclusive preemption policies.
const interruptPolicies = ModeDiscard | ModePause | ModeMute | ModeRestart | ModeDontInterrupt

// modeWords lists all flags in canonical command-text order.
var modeWords = []struct {
	flag Mode
	word string
}{
	{ModeDiscard, "discard"},
	{ModePause, "pause"},
	{ModeMute, "mute"},
	{ModeRestart, "restart"},
	{ModeDontInterrupt, "dont_interrupt"},
	{ModeLoop, "loop"},
	{ModeDtmfStop, "dtmf_stop"},
}

// Has reports whether all bits of f are set.
func (m Mode) Has(f Mode) bool { return m&f == f }

// InterruptPolicy returns the molecule's preemption policy bit. The zero
// value means no policy keyword was given; the parser defaults to Discard.
func (m Mode) InterruptPolicy() Mode { return m & interruptPolicies }

// String renders the set flags pipe-separated for logging, e.g.
// "mute|loop".
func (m Mode) String() string {
	var b strings.Builder
	for _, mw := range modeWords {
		if m.Has(mw.flag) {
			if b.Len() > 0 {
				b.WriteByte('|')
			}
			b.WriteString(mw.word)
		}
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}

// Molecule is an ordered sequence of atoms submitted as one command,
// together with its priority, mode flags, and playback position state.
//
// A molecule lives in its priority lane from enqueue until it either
// completes terminally, is cancelled, or is discarded by preemption.
// The scheduler owns all cursor and timing fields; callers outside this
// package treat a Molecule as opaque after enqueueing it.
type Molecule struct {
	// ID is the handle returned to the command issuer, assigned by the
	// queue at enqueue time. IDs start at 1; 0 is the parse-failure reply.
	ID int64

	// Priority in [0, NumPriorities). Higher runs first.
	Priority int

	// Mode flags.
	Mode Mode

	// Atoms is the non-empty action sequence.
	Atoms []Atom

	// Current is the index of the atom being (or about to be) executed.
	// Current == len(Atoms) means the molecule is complete.
	Current int

	// Position is the cumulative played duration, maintained by the
	// scheduler and consumed by the Mute resume logic.
	Position time.Duration

	// Preemption timing, stamped by the scheduler.
	timeStarted time.Time
	timeStopped time.Time
	preempted   bool
}

// Complete reports whether every atom has run.
func (m *Molecule) Complete() bool { return m.Current >= len(m.Atoms) }

// TotalLength is the summed play time of all atoms.
func (m *Molecule) TotalLength() time.Duration {
	return m.LengthBetween(0, len(m.Atoms))
}

// LengthBetween sums atom lengths over [start, end).
func (m *Molecule) LengthBetween(start, end int) time.Duration {
	var l time.Duration
	for i := start; i < end && i < len(m.Atoms); i++ {
		if i >= 0 {
			l += m.Atoms[i].Length()
		}
	}
	return l
}

// Seek positions the molecule at pos, a cumulative play-time offset from
// the start of the atom sequence.
//
// With Loop set, pos wraps modulo the total length. With the Pause policy,
// Seek only latches Position — the interrupted atom replays from its own
// start. Otherwise Current is moved to the atom containing pos, and for a
// Mute molecule the intra-atom remainder is pushed into the atom itself:
// a Play atom gets its file offset advanced, a DTMF atom gets its cursor
// moved to the digit in progress. Record atoms restart from the beginning
// of the capture; a half-written recording cannot be resumed mid-file.
func (m *Molecule) Seek(pos time.Duration) {
	total := m.TotalLength()
	if m.Mode.Has(ModeLoop) && total > 0 {
		pos %= total
	}
	m.Position = pos

	if m.Mode.Has(ModePause) {
		return
	}

	var acc time.Duration
	for i, a := range m.Atoms {
		l := a.Length()
		if pos < acc+l {
			m.Current = i
			if m.Mode.Has(ModeMute) {
				intra := pos - acc
				switch at := a.(type) {
				case *Play:
					at.Offset = intra
				case *DTMF:
					at.seekTo(intra)
				}
			}
			return
		}
		acc += l
	}
	m.Current = len(m.Atoms)
}

// Describe round-trips the molecule to its command-text form. Parameters
// equal to the package defaults are omitted; parsing the result yields an
// equal molecule.
func (m *Molecule) Describe() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(m.Priority))
	for _, mw := range modeWords {
		if m.Mode.Has(mw.flag) {
			b.WriteByte(' ')
			b.WriteString(mw.word)
		}
	}
	for _, a := range m.Atoms {
		b.WriteByte(' ')
		a.describe(&b)
	}
	return b.String()
}

// stopClock accumulates played time up to now and stamps the stop time.
// Called when the molecule is preempted or its running atom ends.
func (m *Molecule) stopClock(now time.Time) {
	if !m.timeStarted.IsZero() {
		m.Position += now.Sub(m.timeStarted)
		if total := m.TotalLength(); total > 0 {
			if m.Mode.Has(ModeLoop) {
				m.Position %= total
			} else if m.Position > total {
				m.Position = total
			}
		}
	}
	m.timeStopped = now
	m.timeStarted = time.Time{}
}
