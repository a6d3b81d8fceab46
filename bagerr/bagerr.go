// Package bagerr defines the errors returned by the bag engine.
//
// Every failure is an *Error carrying a Kind. Callers switch on the Kind
// (or on its Category) rather than on concrete types. Consistency problems
// found while validating a bag are not errors; they are reported as
// findings in a bagit.Report.
package bagerr

import (
	"fmt"
	"github.com/pkg/errors"
)

// Kind identifies a specific failure.
type Kind int

const (
	// Structural
	InvalidDeclaration Kind = iota + 1
	MalformedManifestLine
	DuplicateManifestEntry
	PathTraversal
	InvalidTagFile

	// Configuration
	UnsupportedAlgorithm
	NoAlgorithms
	UndeclaredAlgorithm
	EmptyPayload
	SourceNotFound
	InvalidOption

	// IO
	IoFailure
)

var kindNames = map[Kind]string{
	InvalidDeclaration:     "InvalidDeclaration",
	MalformedManifestLine:  "MalformedManifestLine",
	DuplicateManifestEntry: "DuplicateManifestEntry",
	PathTraversal:          "PathTraversal",
	InvalidTagFile:         "InvalidTagFile",
	UnsupportedAlgorithm:   "UnsupportedAlgorithm",
	NoAlgorithms:           "NoAlgorithms",
	UndeclaredAlgorithm:    "UndeclaredAlgorithm",
	EmptyPayload:           "EmptyPayload",
	SourceNotFound:         "SourceNotFound",
	InvalidOption:          "InvalidOption",
	IoFailure:              "IoFailure",
}

func (kind Kind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(kind))
}

// Category groups kinds the way callers usually want to treat them.
type Category int

const (
	Structural Category = iota + 1
	Configuration
	IOError
)

func (category Category) String() string {
	switch category {
	case Structural:
		return "StructuralError"
	case Configuration:
		return "ConfigurationError"
	case IOError:
		return "IoFailure"
	}
	return fmt.Sprintf("Category(%d)", int(category))
}

// Category returns the taxonomy group this kind belongs to.
func (kind Kind) Category() Category {
	switch kind {
	case InvalidDeclaration, MalformedManifestLine, DuplicateManifestEntry,
		PathTraversal, InvalidTagFile:
		return Structural
	case IoFailure:
		return IOError
	}
	return Configuration
}

// Error is the single error type returned by the engine.
type Error struct {
	Kind Kind

	// Path is the file the error concerns, if any. For manifest and
	// tag file errors this is the bag-relative name of that file.
	Path string

	// Line is the 1-based line number for parse errors, or zero.
	Line int

	// Algorithm is the algorithm name for algorithm-related errors.
	Algorithm string

	// Message is a human-readable detail.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += fmt.Sprintf(" '%s'", e.Path)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Algorithm != "" {
		msg += fmt.Sprintf(" [%s]", e.Algorithm)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Cause satisfies github.com/pkg/errors' causer interface.
func (e *Error) Cause() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, path, format string, a ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Path:    path,
		Message: fmt.Sprintf(format, a...),
	}
}

// Wrap returns an error of the given kind whose cause is err.
// Returns nil if err is nil.
func Wrap(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Path: path, Err: err}
}

// IO wraps an OS-level error, attaching the offending path. The cause
// is annotated with the operation that failed.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: IoFailure, Path: path, Err: errors.Wrap(err, op)}
}

// Line returns a parse error of the given kind at a line of a file.
func Line(kind Kind, path string, line int, format string, a ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Path:    path,
		Line:    line,
		Message: fmt.Sprintf(format, a...),
	}
}

// Unsupported returns an UnsupportedAlgorithm error for name.
func Unsupported(name string) *Error {
	return &Error{
		Kind:      UnsupportedAlgorithm,
		Algorithm: name,
		Message:   "no such checksum algorithm",
	}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// CategoryOf returns the Category of err, if it is an engine error.
func CategoryOf(err error) (Category, bool) {
	k, ok := KindOf(err)
	if !ok {
		return 0, false
	}
	return k.Category(), true
}
