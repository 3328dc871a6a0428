package audio

import "strings"

// dtmfDigits is the full DTMF alphabet. Letters are stored upper-case.
const dtmfDigits = "0123456789*#ABCD"

// IsDTMFDigit reports whether c is a valid DTMF digit. Letters are accepted
// in either case.
func IsDTMFDigit(c byte) bool {
	if c >= 'a' && c <= 'd' {
		c -= 'a' - 'A'
	}
	return strings.IndexByte(dtmfDigits, c) >= 0
}

// NormalizeDigits upper-cases the letter digits of s. It does not validate;
// use [IsDTMFDigit] per digit first.
func NormalizeDigits(s string) string {
	return strings.ToUpper(s)
}

// ToneFilename maps a DTMF digit to the pre-recorded tone file that renders
// it. The files live under the host's configured audio path:
//
//	sound0.wav .. sound9.wav, soundA.wav .. soundD.wav,
//	soundstar.wav for '*' and soundroute.wav for '#'.
func ToneFilename(digit byte) string {
	switch digit {
	case '*':
		return "soundstar.wav"
	case '#':
		return "soundroute.wav"
	default:
		if digit >= 'a' && digit <= 'd' {
			digit -= 'a' - 'A'
		}
		return "sound" + string(digit) + ".wav"
	}
}
