// Package aufiledev implements the [audio.Player] and [audio.Capture]
// contracts on plain audio files and wall-clock timers.
//
// The player "renders" a file by waiting out its remaining duration; the
// capture writes a silence-filled WAV once its silence timeout elapses.
// This is the device pair the standalone voxqueue daemon runs with — it
// exercises the full scheduler, parser, and file layer without a live
// user-agent, and doubles as a deterministic integration harness.
package aufiledev

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio"
	"github.com/MrWong99/voxqueue/pkg/audio/aufile"
)

// handle is a stoppable timer-backed operation. Stopping suppresses the
// pending completion, per the [audio.Handle] contract.
type handle struct {
	stopOnce sync.Once
	stop     chan struct{}
}

func newHandle() *handle {
	return &handle{stop: make(chan struct{})}
}

// Stop implements [audio.Handle].
func (h *handle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Player plays files by waiting out their duration.
type Player struct {
	// Root is the audio path relative filenames resolve against.
	Root string
}

// Start implements [audio.Player]. The file is probed up front so that a
// missing file fails the dispatch instead of completing instantly.
func (p *Player) Start(filename string, offset time.Duration, done audio.CompletionFunc) (audio.Handle, error) {
	path := resolve(p.Root, filename)
	r, err := aufile.Open(path)
	if err != nil {
		return nil, err
	}
	length := r.Duration
	r.Close()

	remaining := length - offset
	if remaining < 0 {
		remaining = 0
	}

	h := newHandle()
	go func() {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-timer.C:
			done(remaining, false)
		case <-h.stop:
		}
	}()
	return h, nil
}

// Capture records silence until the silence timeout fires, then finalises
// a WAV file of that length.
type Capture struct {
	// Root is the directory recordings are written into.
	Root string
}

// Start implements [audio.Capture].
func (c *Capture) Start(prm audio.CaptureParams, filename string, maxSilence time.Duration, done audio.CompletionFunc) (audio.Handle, error) {
	if prm.SampleRate <= 0 || prm.Channels <= 0 {
		return nil, fmt.Errorf("aufiledev: invalid capture params %+v", prm)
	}
	path := resolve(c.Root, filename)

	h := newHandle()
	go func() {
		timer := time.NewTimer(maxSilence)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-h.stop:
			return
		}

		recorded, err := writeSilence(path, prm, maxSilence)
		if err != nil {
			// No usable file was written; the completion still fires,
			// reporting zero recorded time.
			recorded = 0
		}
		done(recorded, false)
	}()
	return h, nil
}

// writeSilence emits a WAV of d silence at the capture format.
func writeSilence(path string, prm audio.CaptureParams, d time.Duration) (time.Duration, error) {
	w, err := aufile.NewWriter(path, prm)
	if err != nil {
		return 0, err
	}
	frames := int(d.Seconds() * float64(prm.SampleRate))
	samples := make([]int16, frames*prm.Channels)
	if err := w.WritePCM(samples); err != nil {
		w.Close()
		return 0, err
	}
	recorded := w.Duration()
	if err := w.Close(); err != nil {
		return 0, err
	}
	return recorded, nil
}

func resolve(root, filename string) string {
	if filepath.IsAbs(filename) || root == "" {
		return filename
	}
	return filepath.Join(root, filename)
}
