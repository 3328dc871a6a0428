package vqueue

import (
	"testing"
	"time"
)

// buildMolecule assembles a molecule without going through the parser.
func buildMolecule(mode Mode, atoms ...Atom) *Molecule {
	return &Molecule{Mode: mode, Atoms: atoms}
}

func playAtom(name string, length time.Duration) *Play {
	return &Play{Filename: name, length: length}
}

func dtmfAtom(digits string) *DTMF {
	d, err := NewDTMF(digits, DefaultInterDigitDelay, DefaultToneDuration)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMoleculeTotalLength(t *testing.T) {
	m := buildMolecule(ModeDiscard,
		playAtom("a.wav", 2*time.Second),
		playAtom("b.wav", 3*time.Second),
		dtmfAtom("12"),
	)
	want := 5*time.Second + 2*(DefaultToneDuration+DefaultInterDigitDelay)
	if got := m.TotalLength(); got != want {
		t.Errorf("TotalLength = %v, want %v", got, want)
	}
	if got := m.LengthBetween(1, 2); got != 3*time.Second {
		t.Errorf("LengthBetween(1,2) = %v, want 3s", got)
	}
}

func TestMoleculeSeek(t *testing.T) {
	t.Run("mute advances play offset", func(t *testing.T) {
		m := buildMolecule(ModeMute,
			playAtom("a.wav", 2*time.Second),
			playAtom("b.wav", 3*time.Second),
		)
		m.Seek(2500 * time.Millisecond)
		if m.Current != 1 {
			t.Fatalf("current = %d, want 1", m.Current)
		}
		if got := m.Atoms[1].(*Play).Offset; got != 500*time.Millisecond {
			t.Errorf("offset = %v, want 500ms", got)
		}
	})

	t.Run("mute positions dtmf cursor", func(t *testing.T) {
		m := buildMolecule(ModeMute, dtmfAtom("1234"))
		per := m.Atoms[0].(*DTMF).PerDigit()
		m.Seek(2*per + per/2)
		d := m.Atoms[0].(*DTMF)
		if d.cursor != 2 {
			t.Errorf("cursor = %d, want 2", d.cursor)
		}
	})

	t.Run("pause latches position only", func(t *testing.T) {
		m := buildMolecule(ModePause,
			playAtom("a.wav", 2*time.Second),
			playAtom("b.wav", 3*time.Second),
		)
		m.Current = 1
		m.Seek(2500 * time.Millisecond)
		if m.Current != 1 {
			t.Errorf("current moved to %d", m.Current)
		}
		if m.Position != 2500*time.Millisecond {
			t.Errorf("position = %v", m.Position)
		}
		if got := m.Atoms[1].(*Play).Offset; got != 0 {
			t.Errorf("offset = %v, want untouched", got)
		}
	})

	t.Run("loop wraps modulo total", func(t *testing.T) {
		m := buildMolecule(ModeMute|ModeLoop,
			playAtom("a.wav", 2*time.Second),
			playAtom("b.wav", 3*time.Second),
		)
		m.Seek(5*time.Second + 500*time.Millisecond)
		if m.Current != 0 {
			t.Fatalf("current = %d, want 0", m.Current)
		}
		if got := m.Atoms[0].(*Play).Offset; got != 500*time.Millisecond {
			t.Errorf("offset = %v, want 500ms", got)
		}
	})

	t.Run("past the end completes", func(t *testing.T) {
		m := buildMolecule(ModeMute, playAtom("a.wav", 2*time.Second))
		m.Seek(3 * time.Second)
		if !m.Complete() {
			t.Errorf("current = %d, want complete", m.Current)
		}
	})
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{0, "none"},
		{ModeDiscard, "discard"},
		{ModeMute | ModeLoop, "mute|loop"},
		{ModeRestart | ModeDtmfStop | ModeLoop, "restart|loop|dtmf_stop"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%b).String() = %q, want %q", uint(tt.mode), got, tt.want)
		}
	}
}
