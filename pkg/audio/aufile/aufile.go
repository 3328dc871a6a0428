// Package aufile reads and writes the audio files the scheduler plays and
// records.
//
// Supported input formats are RIFF/WAVE containers holding 16-bit LE PCM or
// companded G.711 (A-law format tag 6, µ-law format tag 7). Companded
// samples are widened to 16-bit LE PCM on read, so the rest of the system
// only ever sees linear PCM. Output is always 16-bit LE PCM WAV at the
// configured sample rate and channel count.
package aufile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/zaf/g711"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// WAVE format tags this package understands.
const (
	formatPCM  = 1
	formatAlaw = 6
	formatUlaw = 7
)

// Prober resolves filenames against a root directory and reports their
// play length. It implements [audio.FileProber] for the parser.
type Prober struct {
	// Root is the host's configured audio path. Absolute filenames are
	// used as-is.
	Root string
}

// Probe implements [audio.FileProber].
func (p Prober) Probe(path string) (time.Duration, error) {
	r, err := Open(p.resolve(path))
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.Duration, nil
}

func (p Prober) resolve(path string) string {
	if filepath.IsAbs(path) || p.Root == "" {
		return path
	}
	return filepath.Join(p.Root, path)
}

// Reader decodes one audio file to 16-bit LE PCM.
type Reader struct {
	// SampleRate and Channels are taken from the file's fmt chunk.
	SampleRate int
	Channels   int

	// Duration is the file's play length.
	Duration time.Duration

	f      *os.File
	dec    *wav.Decoder
	format uint16
}

// Open opens path and parses its header. Files that are not WAV, or whose
// format tag is not PCM or G.711, are rejected.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aufile: %w", err)
	}
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("aufile: %s: %w", path, err)
	}
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("aufile: %s: not a wav file", path)
	}

	format := dec.WavAudioFormat
	switch format {
	case formatPCM:
		if dec.BitDepth != 16 {
			f.Close()
			return nil, fmt.Errorf("aufile: %s: unsupported pcm bit depth %d", path, dec.BitDepth)
		}
	case formatAlaw, formatUlaw:
		// 8-bit companded, widened on read.
	default:
		f.Close()
		return nil, fmt.Errorf("aufile: %s: unsupported wav format tag %d", path, format)
	}

	// The play length comes from the data chunk alone; the RIFF size would
	// also count the header bytes.
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("aufile: %s: %w", path, err)
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec <= 0 {
		f.Close()
		return nil, fmt.Errorf("aufile: %s: invalid format header", path)
	}
	d := time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec)

	return &Reader{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Duration:   d,
		f:          f,
		dec:        dec,
		format:     format,
	}, nil
}

// ReadPCM fills buf with 16-bit LE PCM samples, widening companded input.
// It returns the number of samples written; 0 at end of file.
func (r *Reader) ReadPCM(buf []int16) (int, error) {
	ib := &goaudio.IntBuffer{Data: make([]int, len(buf))}
	n, err := r.dec.PCMBuffer(ib)
	if err != nil {
		return 0, fmt.Errorf("aufile: read: %w", err)
	}
	for i := 0; i < n; i++ {
		switch r.format {
		case formatAlaw:
			buf[i] = g711.DecodeAlawFrame(uint8(ib.Data[i]))
		case formatUlaw:
			buf[i] = g711.DecodeUlawFrame(uint8(ib.Data[i]))
		default:
			buf[i] = int16(ib.Data[i])
		}
	}
	return n, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer records 16-bit LE PCM into a WAV file. The header is finalised on
// Close; an unfinished recording is not a valid file.
type Writer struct {
	f      *os.File
	enc    *wav.Encoder
	prm    audio.CaptureParams
	frames int
}

// NewWriter creates (truncating) the WAV file at path with the given
// capture format.
func NewWriter(path string, prm audio.CaptureParams) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("aufile: %w", err)
	}
	enc := wav.NewEncoder(f, prm.SampleRate, 16, prm.Channels, formatPCM)
	return &Writer{f: f, enc: enc, prm: prm}, nil
}

// WritePCM appends samples to the file.
func (w *Writer) WritePCM(samples []int16) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.prm.Channels, SampleRate: w.prm.SampleRate},
		SourceBitDepth: 16,
		Data:           data,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("aufile: write: %w", err)
	}
	w.frames += len(samples) / w.prm.Channels
	return nil
}

// Duration is the play length of the audio written so far.
func (w *Writer) Duration() time.Duration {
	if w.prm.SampleRate == 0 {
		return 0
	}
	return time.Duration(w.frames) * time.Second / time.Duration(w.prm.SampleRate)
}

// Close finalises the WAV header and closes the file.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("aufile: close: %w", err)
	}
	return w.f.Close()
}
