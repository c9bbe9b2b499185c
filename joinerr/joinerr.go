// Package joinerr defines the join engine's error taxonomy: a fixed set of
// kinds, each with a documented propagation policy. Local,
// recoverable-by-the-caller conditions (InvalidPlan, InvalidPrefix,
// IteratorAtEnd, UnmappedInput) are built with golang.org/x/xerrors.
// Fatal conditions (WitnessUnderflow, UpstreamOrderingViolation) are built
// with github.com/cockroachdb/errors so the node id, atom index, and
// offending tuple travel with the error as structured detail and a stack
// trace, giving an operator enough to diagnose without reproducing.
package joinerr

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/xerrors"
)

// Kind identifies one of the join engine's error kinds.
type Kind string

const (
	InvalidPlan               Kind = "InvalidPlan"
	InvalidPrefix             Kind = "InvalidPrefix"
	IteratorAtEnd             Kind = "IteratorAtEnd"
	UnmappedInput             Kind = "UnmappedInput"
	WitnessUnderflow          Kind = "WitnessUnderflow"
	UpstreamOrderingViolation Kind = "UpstreamOrderingViolation"
	// CyclicPlan fires at graph-wiring time, before any delta flows.
	CyclicPlan Kind = "CyclicPlan"
)

// Error is the concrete error type returned for every kind above.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Local constructs a construction-time / single-call error (InvalidPlan,
// InvalidPrefix, IteratorAtEnd, UnmappedInput, CyclicPlan).
func Local(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: xerrors.Errorf(format, args...).Error()}
}

// Fatal constructs a fatal, surfaced-and-stop error (WitnessUnderflow,
// UpstreamOrderingViolation), carrying diagnosable context.
func Fatal(kind Kind, nodeID string, atomIndex int, tupleBytes []byte, format string, args ...interface{}) error {
	base := errors.Newf(format, args...)
	base = errors.WithDetailf(base, "node=%s atom_index=%d tuple=%x", nodeID, atomIndex, tupleBytes)
	return &Error{Kind: kind, Message: base.Error(), cause: base}
}

// Is reports whether err, or an error it wraps, is an *Error of the given
// kind. *Error has no Is method, so errors.Is cannot match on a Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
