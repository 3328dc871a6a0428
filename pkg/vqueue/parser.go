package vqueue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voxqueue/pkg/audio"
)

// wordToMode maps mode keywords to their flag bits.
var wordToMode = map[string]Mode{
	"discard":        ModeDiscard,
	"pause":          ModePause,
	"mute":           ModeMute,
	"restart":        ModeRestart,
	"dont_interrupt": ModeDontInterrupt,
	"loop":           ModeLoop,
	"dtmf_stop":      ModeDtmfStop,
}

// keywords is every word the grammar accepts in keyword position, used for
// "did you mean" suggestions on unknown tokens.
var keywords = []string{
	"discard", "pause", "mute", "restart", "dont_interrupt", "loop", "dtmf_stop",
	"p", "play", "r", "record", "d", "dtmf",
}

// Parser lowers a whitespace-separated command line into a [Molecule].
//
// A Parser is immutable after construction and safe for concurrent use.
type Parser struct {
	prober          audio.FileProber
	toneDuration    time.Duration
	interDigitDelay time.Duration
	maxSilence      time.Duration
}

// ParserOption configures a [Parser].
type ParserOption func(*Parser)

// WithToneDuration overrides the fixed DTMF tone length used for length
// accounting. The default is [DefaultToneDuration].
func WithToneDuration(d time.Duration) ParserOption {
	return func(p *Parser) {
		if d > 0 {
			p.toneDuration = d
		}
	}
}

// WithInterDigitDelay overrides the default delay between DTMF tones used
// when a dtmf atom carries no explicit delay parameter.
func WithInterDigitDelay(d time.Duration) ParserOption {
	return func(p *Parser) {
		if d > 0 {
			p.interDigitDelay = d
		}
	}
}

// WithMaxSilence overrides the default silence timeout used when a record
// atom carries no explicit parameter.
func WithMaxSilence(d time.Duration) ParserOption {
	return func(p *Parser) {
		if d > 0 {
			p.maxSilence = d
		}
	}
}

// NewParser creates a Parser. prober is consulted once per play atom so
// that a molecule never enters the queue with an unknown play length.
func NewParser(prober audio.FileProber, opts ...ParserOption) *Parser {
	p := &Parser{
		prober:          prober,
		toneDuration:    DefaultToneDuration,
		interDigitDelay: DefaultInterDigitDelay,
		maxSilence:      DefaultMaxSilence,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse lowers one command line into a molecule.
//
// Grammar (whitespace-separated):
//
//	line     := priority mode+ atom+
//	mode     := discard | pause | mute | restart | dont_interrupt | loop | dtmf_stop
//	atom     := (p|play) file offset_ms?
//	          | (r|record) file max_silence_ms?
//	          | (d|dtmf) digits inter_digit_delay_ms?
//
// A trailing token after a filename or digit string is taken as the numeric
// parameter only when it does not begin with one of the atom-start letters
// p, r, d; otherwise it opens the next atom.
func (p *Parser) Parse(line string) (*Molecule, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidPriority)
	}

	prio, err := strconv.Atoi(tokens[0])
	if err != nil || prio < 0 || prio >= NumPriorities {
		return nil, fmt.Errorf("%w: %q (want 0..%d)", ErrInvalidPriority, tokens[0], NumPriorities-1)
	}

	m := &Molecule{Priority: prio}
	i := 1

	// Modes.
	nmodes := 0
	for i < len(tokens) {
		flag, ok := wordToMode[tokens[i]]
		if !ok {
			break
		}
		if flag&interruptPolicies != 0 && m.Mode.InterruptPolicy() != 0 {
			return nil, fmt.Errorf("%w: %q conflicts with %q",
				ErrConflictingModes, tokens[i], m.Mode.InterruptPolicy())
		}
		m.Mode |= flag
		nmodes++
		i++
	}
	if nmodes == 0 {
		if i >= len(tokens) {
			return nil, fmt.Errorf("%w: mode keyword", ErrMissingArgument)
		}
		return nil, unknownToken(tokens[i], "mode keyword")
	}
	if m.Mode.InterruptPolicy() == 0 {
		m.Mode |= ModeDiscard
	}

	// Atoms.
	for i < len(tokens) {
		switch tokens[i] {
		case "p", "play":
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%w: filename after play", ErrMissingArgument)
			}
			filename := tokens[i]
			i++
			offset, rest, err := p.numericParam(tokens, i, "play offset")
			if err != nil {
				return nil, err
			}
			i = rest
			play, err := NewPlay(p.prober, filename, offset)
			if err != nil {
				return nil, err
			}
			m.Atoms = append(m.Atoms, play)

		case "r", "record":
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%w: filename after record", ErrMissingArgument)
			}
			filename := tokens[i]
			i++
			maxSilence, rest, err := p.numericParam(tokens, i, "record max_silence")
			if err != nil {
				return nil, err
			}
			i = rest
			if maxSilence == 0 {
				maxSilence = p.maxSilence
			}
			m.Atoms = append(m.Atoms, NewRecord(filename, maxSilence))

		case "d", "dtmf":
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%w: digits after dtmf", ErrMissingArgument)
			}
			digits := tokens[i]
			i++
			delay, rest, err := p.numericParam(tokens, i, "dtmf inter_digit_delay")
			if err != nil {
				return nil, err
			}
			i = rest
			if delay == 0 {
				delay = p.interDigitDelay
			}
			dtmf, err := NewDTMF(digits, delay, p.toneDuration)
			if err != nil {
				return nil, err
			}
			m.Atoms = append(m.Atoms, dtmf)

		default:
			return nil, unknownToken(tokens[i], "atom keyword")
		}
	}

	if len(m.Atoms) == 0 {
		return nil, ErrEmptyMolecule
	}
	return m, nil
}

// numericParam consumes tokens[i] as a millisecond parameter if it is
// present and does not open the next atom. It returns the parsed duration
// (zero when absent) and the next token index.
//
// An explicit "0" is indistinguishable from an absent parameter: both
// report zero, and the caller substitutes its default. That collapse is
// intentional — a zero silence timeout or inter-digit delay has no
// meaning, so "0" reads as "use the default".
func (p *Parser) numericParam(tokens []string, i int, what string) (time.Duration, int, error) {
	if i >= len(tokens) || isAtomStart(tokens[i]) {
		return 0, i, nil
	}
	ms, err := strconv.Atoi(tokens[i])
	if err != nil || ms < 0 {
		return 0, i, unknownToken(tokens[i], what)
	}
	return time.Duration(ms) * time.Millisecond, i + 1, nil
}

// isAtomStart reports whether token opens a new atom per the lookahead
// rule: any token beginning with p, r, or d.
func isAtomStart(token string) bool {
	return token != "" && (token[0] == 'p' || token[0] == 'r' || token[0] == 'd')
}

// unknownToken builds an [ErrUnknownToken] error, attaching a closest-
// keyword suggestion when one is plausibly a typo.
func unknownToken(token, expected string) error {
	if s := suggestKeyword(token); s != "" {
		return fmt.Errorf("%w: %q (expected %s; did you mean %q?)", ErrUnknownToken, token, expected, s)
	}
	return fmt.Errorf("%w: %q (expected %s)", ErrUnknownToken, token, expected)
}

// suggestKeyword returns the grammar keyword closest to token, or "" when
// nothing is close enough to be a likely typo.
func suggestKeyword(token string) string {
	best := ""
	bestScore := 0.0
	for _, kw := range keywords {
		if s := matchr.JaroWinkler(token, kw, false); s > bestScore {
			best, bestScore = kw, s
		}
	}
	if bestScore < 0.85 {
		return ""
	}
	return best
}
