package vqueue

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxqueue/pkg/audio/mock"
)

func testParser() *Parser {
	return NewParser(&mock.Prober{Lengths: map[string]time.Duration{
		"hello.wav":    2000 * time.Millisecond,
		"long.wav":     10000 * time.Millisecond,
		"beep.wav":     1000 * time.Millisecond,
		"prompt.wav":   1500 * time.Millisecond,
		"ringback.wav": 4000 * time.Millisecond,
		"music.wav":    10000 * time.Millisecond,
		"jingle.wav":   3000 * time.Millisecond,
		"announce.wav": 5000 * time.Millisecond,
	}})
}

func TestParse(t *testing.T) {
	p := testParser()

	t.Run("simple play", func(t *testing.T) {
		m, err := p.Parse("0 discard p hello.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Priority != 0 {
			t.Errorf("priority = %d, want 0", m.Priority)
		}
		if !m.Mode.Has(ModeDiscard) {
			t.Errorf("mode = %v, want discard", m.Mode)
		}
		if len(m.Atoms) != 1 {
			t.Fatalf("got %d atoms, want 1", len(m.Atoms))
		}
		play, ok := m.Atoms[0].(*Play)
		if !ok {
			t.Fatalf("atom is %T, want *Play", m.Atoms[0])
		}
		if play.Filename != "hello.wav" || play.Offset != 0 {
			t.Errorf("play = %q offset %v", play.Filename, play.Offset)
		}
		if play.Length() != 2*time.Second {
			t.Errorf("length = %v, want 2s", play.Length())
		}
	})

	t.Run("long keywords", func(t *testing.T) {
		m, err := p.Parse("2 mute play hello.wav record memo.wav dtmf 42")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.Atoms) != 3 {
			t.Fatalf("got %d atoms, want 3", len(m.Atoms))
		}
		if m.Atoms[0].Kind() != KindPlay || m.Atoms[1].Kind() != KindRecord || m.Atoms[2].Kind() != KindDTMF {
			t.Errorf("kinds = %v %v %v", m.Atoms[0].Kind(), m.Atoms[1].Kind(), m.Atoms[2].Kind())
		}
	})

	t.Run("numeric parameters", func(t *testing.T) {
		m, err := p.Parse("1 restart p hello.wav 250 r memo.wav 800 d 123 60")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.Atoms[0].(*Play).Offset; got != 250*time.Millisecond {
			t.Errorf("offset = %v, want 250ms", got)
		}
		if got := m.Atoms[1].(*Record).MaxSilence; got != 800*time.Millisecond {
			t.Errorf("max silence = %v, want 800ms", got)
		}
		if got := m.Atoms[2].(*DTMF).InterDigitDelay; got != 60*time.Millisecond {
			t.Errorf("delay = %v, want 60ms", got)
		}
	})

	t.Run("lookahead on atom start letters", func(t *testing.T) {
		// prompt.wav begins with 'p' but sits in filename position; the
		// token after it begins with 'd' so it opens the next atom.
		m, err := p.Parse("0 discard p prompt.wav d 12")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.Atoms) != 2 {
			t.Fatalf("got %d atoms, want 2", len(m.Atoms))
		}
		if got := m.Atoms[0].(*Play).Offset; got != 0 {
			t.Errorf("offset = %v, want 0", got)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		m, err := p.Parse("0 pause r memo.wav d 5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.Atoms[0].(*Record).MaxSilence; got != DefaultMaxSilence {
			t.Errorf("max silence = %v, want %v", got, DefaultMaxSilence)
		}
		d := m.Atoms[1].(*DTMF)
		if d.InterDigitDelay != DefaultInterDigitDelay {
			t.Errorf("delay = %v, want %v", d.InterDigitDelay, DefaultInterDigitDelay)
		}
		if d.ToneDuration != DefaultToneDuration {
			t.Errorf("tone = %v, want %v", d.ToneDuration, DefaultToneDuration)
		}
	})

	t.Run("flags accumulate with default policy", func(t *testing.T) {
		m, err := p.Parse("0 loop dtmf_stop p hello.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []Mode{ModeLoop, ModeDtmfStop, ModeDiscard} {
			if !m.Mode.Has(want) {
				t.Errorf("mode %v missing %v", m.Mode, want)
			}
		}
	})

	t.Run("dtmf digits normalised", func(t *testing.T) {
		m, err := p.Parse("0 discard d a1*#d")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.Atoms[0].(*DTMF).Digits; got != "A1*#D" {
			t.Errorf("digits = %q, want A1*#D", got)
		}
	})

	t.Run("dtmf length accounting", func(t *testing.T) {
		m, err := p.Parse("0 discard d 123 50")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 3 * (DefaultToneDuration + 50*time.Millisecond)
		if got := m.Atoms[0].Length(); got != want {
			t.Errorf("length = %v, want %v", got, want)
		}
	})
}

func TestParseErrors(t *testing.T) {
	p := testParser()

	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty line", "", ErrInvalidPriority},
		{"non-numeric priority", "x discard p hello.wav", ErrInvalidPriority},
		{"negative priority", "-1 discard p hello.wav", ErrInvalidPriority},
		{"priority out of range", "5 discard p hello.wav", ErrInvalidPriority},
		{"conflicting policies", "0 discard pause p hello.wav", ErrConflictingModes},
		{"duplicate policy", "0 mute mute p hello.wav", ErrConflictingModes},
		{"no mode keyword", "0 p hello.wav", ErrUnknownToken},
		{"line ends after priority", "3", ErrMissingArgument},
		{"no atoms", "0 discard", ErrEmptyMolecule},
		{"unknown atom keyword", "0 discard x foo", ErrUnknownToken},
		{"typoed mode", "0 disard p hello.wav", ErrUnknownToken},
		{"bad play file", "0 discard p nosuch.wav", ErrBadFile},
		{"missing play filename", "0 discard p", ErrMissingArgument},
		{"missing record filename", "0 discard r", ErrMissingArgument},
		{"missing dtmf digits", "0 discard d", ErrMissingArgument},
		{"bad dtmf digits", "0 discard d 12x4", ErrUnknownToken},
		{"garbage numeric parameter", "0 discard d 123 x40", ErrUnknownToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.line)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want %v", tt.line, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestParseSuggestsKeyword(t *testing.T) {
	p := testParser()
	_, err := p.Parse("0 disard p hello.wav")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "discard") {
		t.Errorf("error %q carries no suggestion", got)
	}
}

func TestDescribeRoundTrip(t *testing.T) {
	p := testParser()

	lines := []string{
		"0 discard p hello.wav",
		"1 mute p long.wav 250",
		"2 pause loop p hello.wav d 123",
		"4 restart dtmf_stop r memo.wav 800",
		"3 dont_interrupt p prompt.wav r memo.wav d 42 60",
		"0 loop d *#9",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			m1, err := p.Parse(line)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			text := m1.Describe()
			m2, err := p.Parse(text)
			if err != nil {
				t.Fatalf("reparse %q: %v", text, err)
			}
			if got := m2.Describe(); got != text {
				t.Errorf("round trip drifted: %q -> %q", text, got)
			}
			if m2.Priority != m1.Priority || m2.Mode != m1.Mode || len(m2.Atoms) != len(m1.Atoms) {
				t.Errorf("reparse differs: %+v vs %+v", m2, m1)
			}
		})
	}
}
