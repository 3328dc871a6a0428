// Package audio defines the contracts between the scheduler core and the
// host user-agent's audio subsystem.
//
// The two primary abstractions are:
//
//   - [Player] — starts playback of an audio file on the call's playback
//     device and reports completion through a callback.
//   - [Capture] — starts a recording on the call's capture device and
//     reports completion when the silence timeout elapses.
//
// Implementations of these interfaces are provided by host-specific adapter
// packages; the scheduler never talks to a device directly. The interfaces
// are intentionally narrow so that tests can substitute the in-memory fakes
// from [github.com/MrWong99/voxqueue/pkg/audio/mock].
//
// This package lives under pkg/ because external code (host integrations,
// alternative device backends) is expected to implement [Player] and
// [Capture].
package audio

import "time"

// CaptureParams describes the PCM format of a recording. Values are taken
// from the process configuration; the zero value is not valid — use
// [DefaultCaptureParams].
type CaptureParams struct {
	// SampleRate in Hz (e.g. 16000).
	SampleRate int

	// Channels is the channel count, 1 for mono.
	Channels int

	// Ptime is the packet interval the capture device is driven at.
	Ptime time.Duration
}

// DefaultCaptureParams returns the capture format used when the
// configuration does not override it: 16 kHz mono, 40 ms ptime, 16-bit LE.
func DefaultCaptureParams() CaptureParams {
	return CaptureParams{
		SampleRate: 16000,
		Channels:   1,
		Ptime:      40 * time.Millisecond,
	}
}

// CompletionFunc is invoked exactly once when an audio operation ends.
//
// For playback, played is the duration actually rendered. For capture it is
// the duration written to the file before the silence timeout fired.
// cancelled reports that the operation was cut short by the host (device
// teardown, call hangup) rather than running to its natural end; the
// scheduler treats a cancelled completion as "do not advance".
//
// Implementations must deliver the callback from the host's dispatcher
// context, never synchronously from within Start or [Handle.Stop]. A device
// error mid-operation is reported as an ordinary completion with whatever
// was played so far, not as a separate error path — the scheduler moves on
// either way.
type CompletionFunc func(played time.Duration, cancelled bool)

// Handle represents one in-flight playback or capture operation.
type Handle interface {
	// Stop releases the underlying device operation. Stop is idempotent.
	// A completion callback that has not yet been delivered when Stop
	// returns is suppressed; the caller is expected to continue scheduling
	// on its own.
	Stop()
}

// Player starts playback of an audio file on the call's playback device.
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Start begins playing filename at the given offset from the start of
	// the file. The filename is resolved against the host's configured
	// audio path. done is invoked when the file ends or the host cancels
	// the operation.
	Start(filename string, offset time.Duration, done CompletionFunc) (Handle, error)
}

// Capture starts a recording on the call's capture device.
//
// Implementations must be safe for concurrent use.
type Capture interface {
	// Start begins recording to filename with the given PCM parameters.
	// The operation completes when no speech is detected for maxSilence.
	Start(prm CaptureParams, filename string, maxSilence time.Duration, done CompletionFunc) (Handle, error)
}

// FileProber reports the playable length of an audio file. The parser uses
// it to reject play commands whose file cannot be opened and to cache the
// file's duration before the file is ever dispatched.
type FileProber interface {
	// Probe opens path read-only and returns its duration.
	Probe(path string) (time.Duration, error)
}

// Clock abstracts the monotonic time source used for position accounting.
// Production code uses [SystemClock]; tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the [Clock] backed by time.Now. Go's time.Time carries a
// monotonic reading, so differences are immune to wall-clock steps.
type SystemClock struct{}

// Now implements [Clock].
func (SystemClock) Now() time.Time { return time.Now() }
