package aufile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// writeTestWav writes one second of a ramp signal at 16 kHz mono and
// returns its path.
func writeTestWav(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	prm := audio.CaptureParams{SampleRate: 16000, Channels: 1}

	w, err := NewWriter(path, prm)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(i % 1024)
	}
	if err := w.WritePCM(samples); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if got := w.Duration(); got != time.Second {
		t.Fatalf("writer duration = %v, want 1s", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestWriteThenRead(t *testing.T) {
	path := writeTestWav(t, "roundtrip.wav")

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.SampleRate != 16000 || r.Channels != 1 {
		t.Errorf("format = %d Hz, %d ch", r.SampleRate, r.Channels)
	}
	if r.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", r.Duration)
	}

	buf := make([]int16, 4096)
	n, err := r.ReadPCM(buf)
	if err != nil {
		t.Fatalf("ReadPCM: %v", err)
	}
	if n == 0 {
		t.Fatal("no samples read")
	}
	for i := 0; i < n; i++ {
		if buf[i] != int16(i%1024) {
			t.Fatalf("sample %d = %d, want %d", i, buf[i], i%1024)
		}
	}
}

func TestProber(t *testing.T) {
	path := writeTestWav(t, "probe.wav")
	dir := filepath.Dir(path)

	p := Prober{Root: dir}

	d, err := p.Probe(filepath.Base(path))
	if err != nil {
		t.Fatalf("Probe relative: %v", err)
	}
	if d != time.Second {
		t.Errorf("duration = %v, want 1s", d)
	}

	if _, err := p.Probe(path); err != nil {
		t.Errorf("Probe absolute: %v", err)
	}
	if _, err := p.Probe("nosuch.wav"); err == nil {
		t.Error("missing file probed without error")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("missing file opened")
	}
}
