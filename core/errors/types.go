// Package errors implements the error taxonomy shared by the reasoner packages.
//
// Errors are sorted into classes with fixed handling behavior. Invariant
// violations are fatal and never retried: once the indexed ontology graph is
// found in a state it can never legally reach, none of the derived state can be
// trusted. Interruption is an ordinary termination mode. Input and storage
// errors are reported to the caller unchanged.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error.
type ErrorClass int

const (
	// ClassInvariant indicates a broken internal invariant of the indexed
	// ontology graph or the saturation state. Fatal.
	ClassInvariant ErrorClass = iota

	// ClassInterrupted indicates a computation stopped before reaching its
	// fixpoint because its context was cancelled.
	ClassInterrupted

	// ClassInput indicates a request the reasoner cannot honor, such as
	// removing an axiom that was never loaded.
	ClassInput

	// ClassStorage indicates a failure of the persistence layer.
	ClassStorage
)

var classNames = map[ErrorClass]string{
	ClassInvariant:   "invariant",
	ClassInterrupted: "interrupted",
	ClassInput:       "input",
	ClassStorage:     "storage",
}

func (c ErrorClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// ClassBehavior defines the handling behavior for an error class.
type ClassBehavior struct {
	// Fatal indicates the computation must abort and the shared state is suspect.
	Fatal bool

	// Resumable indicates re-entering the computation later is safe.
	Resumable bool
}

// DefaultBehaviors returns the behavior for each error class.
func DefaultBehaviors() map[ErrorClass]ClassBehavior {
	return map[ErrorClass]ClassBehavior{
		ClassInvariant:   {Fatal: true, Resumable: false},
		ClassInterrupted: {Fatal: false, Resumable: true},
		ClassInput:       {Fatal: false, Resumable: true},
		ClassStorage:     {Fatal: false, Resumable: true},
	}
}

// Error wraps an error with class information and the operation that failed.
type Error struct {
	Class      ErrorClass
	Op         string
	Message    string
	Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Class)
	if e.Op != "" {
		prefix += " " + e.Op + ":"
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is an *Error of the same class and message.
// A target without a message matches on class alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Class != t.Class {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates an Error of the given class.
func New(class ErrorClass, op, message string, underlying error) *Error {
	return &Error{
		Class:      class,
		Op:         op,
		Message:    message,
		Underlying: underlying,
	}
}

// Invariantf creates a fatal invariant violation wrapping ErrUnexpectedIndexing.
func Invariantf(op, format string, args ...any) error {
	return New(ClassInvariant, op, fmt.Sprintf(format, args...), ErrUnexpectedIndexing)
}

// GetClass extracts the ErrorClass from an error, defaulting to ClassInput.
func GetClass(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassInput
}

// IsFatal reports whether err signals a broken invariant.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return DefaultBehaviors()[GetClass(err)].Fatal
}

// Wrap wraps err with a class and operation. Existing classification is kept.
func Wrap(class ErrorClass, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Class: e.Class, Op: op, Message: e.Message, Underlying: err}
	}
	return New(class, op, err.Error(), err)
}

// Sentinel errors.
var (
	// ErrUnexpectedIndexing marks a violation of the indexing invariants:
	// negative occurrence counts, removal of an unregistered rule, or
	// reassignment of an assign-once slot.
	ErrUnexpectedIndexing = errors.New("unexpected indexing state")

	// ErrInterrupted is returned by computations stopped by cancellation.
	ErrInterrupted = New(ClassInterrupted, "", "computation interrupted", nil)

	// ErrAxiomNotFound is returned when removing an axiom that is not loaded.
	ErrAxiomNotFound = New(ClassInput, "", "axiom not found", nil)

	// ErrInconsistentOntology is returned by taxonomy queries on an
	// inconsistent ontology.
	ErrInconsistentOntology = New(ClassInput, "", "ontology is inconsistent", nil)

	// ErrClosed is returned by operations on a closed reasoner or store.
	ErrClosed = New(ClassInput, "", "closed", nil)
)
