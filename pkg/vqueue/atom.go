package vqueue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// Defaults for atom parameters. The parser can be configured with different
// values; Describe omits a parameter when it equals the package default.
const (
	// DefaultToneDuration is the length of one rendered DTMF tone.
	DefaultToneDuration = 100 * time.Millisecond

	// DefaultInterDigitDelay is the pause between two rendered DTMF tones.
	DefaultInterDigitDelay = 40 * time.Millisecond

	// DefaultMaxSilence is the silence timeout that ends a recording.
	DefaultMaxSilence = 500 * time.Millisecond
)

// AtomKind identifies the concrete type of an [Atom].
type AtomKind int

const (
	KindPlay AtomKind = iota
	KindRecord
	KindDTMF
)

// String returns the command keyword for the kind.
func (k AtomKind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindRecord:
		return "record"
	case KindDTMF:
		return "dtmf"
	default:
		return "unknown"
	}
}

// Atom is one indivisible audio action inside a [Molecule]: play a file,
// record to a file, or emit a DTMF digit string. The three implementations
// are [Play], [Record], and [DTMF]; dispatch is by type switch.
type Atom interface {
	// Kind identifies the concrete type without a type assertion.
	Kind() AtomKind

	// Length is the atom's play time. For Record it is zero until the
	// recording has completed.
	Length() time.Duration

	// describe appends the atom's command-text form to b.
	describe(b *strings.Builder)
}

// ─── Play ─────────────────────────────────────────────────────────────────────

// Play renders an audio file on the playback device, optionally starting at
// an offset into the file.
type Play struct {
	// Filename of the audio file, resolved by the player against the
	// host's audio path.
	Filename string

	// Offset from the start of the file at which playback begins. A Mute
	// resume moves this forward via [Molecule.Seek].
	Offset time.Duration

	length time.Duration
}

// NewPlay builds a Play atom. The file is probed immediately so that the
// atom always carries a known length; a file that cannot be opened is a
// parse-time error, not a dispatch-time one.
func NewPlay(prober audio.FileProber, filename string, offset time.Duration) (*Play, error) {
	length, err := prober.Probe(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadFile, filename, err)
	}
	return &Play{Filename: filename, Offset: offset, length: length}, nil
}

// Kind implements [Atom].
func (p *Play) Kind() AtomKind { return KindPlay }

// Length implements [Atom]. It is the full file length; Offset does not
// shorten it.
func (p *Play) Length() time.Duration { return p.length }

func (p *Play) describe(b *strings.Builder) {
	b.WriteString("p ")
	b.WriteString(p.Filename)
	if p.Offset != 0 {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(p.Offset.Milliseconds(), 10))
	}
}

// ─── Record ───────────────────────────────────────────────────────────────────

// Record captures the call's audio into a file until the capture device
// detects MaxSilence of continuous silence.
type Record struct {
	// Filename of the WAV file to write.
	Filename string

	// MaxSilence is the silence timeout that completes the recording.
	MaxSilence time.Duration

	length time.Duration
}

// NewRecord builds a Record atom. maxSilence ≤ 0 selects the default.
func NewRecord(filename string, maxSilence time.Duration) *Record {
	if maxSilence <= 0 {
		maxSilence = DefaultMaxSilence
	}
	return &Record{Filename: filename, MaxSilence: maxSilence}
}

// Kind implements [Atom].
func (r *Record) Kind() AtomKind { return KindRecord }

// Length implements [Atom]. Zero until the recording has completed.
func (r *Record) Length() time.Duration { return r.length }

// setLength stores the captured duration reported by the capture device.
func (r *Record) setLength(d time.Duration) { r.length = d }

func (r *Record) describe(b *strings.Builder) {
	b.WriteString("r ")
	b.WriteString(r.Filename)
	if r.MaxSilence != DefaultMaxSilence {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(r.MaxSilence.Milliseconds(), 10))
	}
}

// ─── DTMF ─────────────────────────────────────────────────────────────────────

// DTMF emits a digit string by playing one pre-recorded tone file per digit.
// The cursor is the index of the next digit to play; the atom is done when
// the cursor reaches the end of the digit string.
type DTMF struct {
	// Digits over 0-9*#A-D, letters stored upper-case.
	Digits string

	// InterDigitDelay is the pause inserted after each tone.
	InterDigitDelay time.Duration

	// ToneDuration is the fixed length of one tone file.
	ToneDuration time.Duration

	cursor int
}

// NewDTMF builds a DTMF atom, validating and normalising the digit string.
// delay ≤ 0 selects the default inter-digit delay; tone ≤ 0 the default
// tone duration.
func NewDTMF(digits string, delay, tone time.Duration) (*DTMF, error) {
	if digits == "" {
		return nil, fmt.Errorf("%w: dtmf digits", ErrMissingArgument)
	}
	for i := 0; i < len(digits); i++ {
		if !audio.IsDTMFDigit(digits[i]) {
			return nil, fmt.Errorf("%w: %q is not a DTMF digit string", ErrUnknownToken, digits)
		}
	}
	if delay <= 0 {
		delay = DefaultInterDigitDelay
	}
	if tone <= 0 {
		tone = DefaultToneDuration
	}
	return &DTMF{
		Digits:          audio.NormalizeDigits(digits),
		InterDigitDelay: delay,
		ToneDuration:    tone,
	}, nil
}

// Kind implements [Atom].
func (d *DTMF) Kind() AtomKind { return KindDTMF }

// PerDigit is the play time of a single digit: one tone plus one delay.
// It is the single source of truth for DTMF timing.
func (d *DTMF) PerDigit() time.Duration { return d.ToneDuration + d.InterDigitDelay }

// Length implements [Atom].
func (d *DTMF) Length() time.Duration {
	return time.Duration(len(d.Digits)) * d.PerDigit()
}

// Current returns the next digit to play. Only valid while !Done.
func (d *DTMF) Current() byte { return d.Digits[d.cursor] }

// Advance moves the cursor past the digit that just finished playing and
// reports whether the whole digit string has drained.
func (d *DTMF) Advance() bool {
	d.cursor++
	return d.Done()
}

// Done reports whether every digit has been played.
func (d *DTMF) Done() bool { return d.cursor >= len(d.Digits) }

// Reset rewinds the cursor to the first digit.
func (d *DTMF) Reset() { d.cursor = 0 }

// seekTo positions the cursor at the digit containing offset.
func (d *DTMF) seekTo(offset time.Duration) {
	c := int(offset / d.PerDigit())
	if c > len(d.Digits) {
		c = len(d.Digits)
	}
	d.cursor = c
}

func (d *DTMF) describe(b *strings.Builder) {
	b.WriteString("d ")
	b.WriteString(d.Digits)
	if d.InterDigitDelay != DefaultInterDigitDelay {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(d.InterDigitDelay.Milliseconds(), 10))
	}
}
