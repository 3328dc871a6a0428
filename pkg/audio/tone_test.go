package audio

import "testing"

func TestToneFilename(t *testing.T) {
	tests := []struct {
		digit byte
		want  string
	}{
		{'0', "sound0.wav"},
		{'9', "sound9.wav"},
		{'*', "soundstar.wav"},
		{'#', "soundroute.wav"},
		{'A', "soundA.wav"},
		{'d', "soundD.wav"},
	}
	for _, tt := range tests {
		if got := ToneFilename(tt.digit); got != tt.want {
			t.Errorf("ToneFilename(%q) = %q, want %q", tt.digit, got, tt.want)
		}
	}
}

func TestIsDTMFDigit(t *testing.T) {
	for _, c := range []byte("0123456789*#ABCDabcd") {
		if !IsDTMFDigit(c) {
			t.Errorf("IsDTMFDigit(%q) = false", c)
		}
	}
	for _, c := range []byte("eExX !+-.") {
		if IsDTMFDigit(c) {
			t.Errorf("IsDTMFDigit(%q) = true", c)
		}
	}
}

func TestNormalizeDigits(t *testing.T) {
	if got := NormalizeDigits("1a*#d"); got != "1A*#D" {
		t.Errorf("NormalizeDigits = %q", got)
	}
}
