package vqueue

import "errors"

// Parse errors. The command surface maps any of these to the id-0 reject
// reply; callers that need to distinguish use errors.Is.
var (
	// ErrInvalidPriority — the priority token is missing, not a number, or
	// outside [0, NumPriorities).
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrConflictingModes — more than one interrupt policy keyword given.
	ErrConflictingModes = errors.New("conflicting interrupt modes")

	// ErrUnknownToken — a token that is neither a mode keyword, an atom
	// keyword, nor a valid parameter in its position.
	ErrUnknownToken = errors.New("unknown token")

	// ErrEmptyMolecule — the command contains no atoms.
	ErrEmptyMolecule = errors.New("molecule has no atoms")

	// ErrBadFile — a play atom references a file that cannot be opened.
	ErrBadFile = errors.New("cannot open audio file")

	// ErrMissingArgument — the line ends after the priority with no mode
	// keyword, or an atom keyword at the end of the line has no filename or
	// digit string after it.
	ErrMissingArgument = errors.New("missing argument")
)
