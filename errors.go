package digitchain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the host can render a message and decide
// whether the user can fix it (switch network, redraw, re-upload).
type Kind uint8

const (
	// KindUnknown is never produced by this module; KindOf returns it
	// for foreign errors.
	KindUnknown Kind = iota
	// KindMalformedInput: pixel buffer or parameter document violates a
	// precondition. Nothing was sent downstream.
	KindMalformedInput
	// KindWrongNetwork: a mint was blocked because the wallet network
	// differs from the configured endpoint.
	KindWrongNetwork
	// KindNotConnected: a mint was attempted without a signer.
	KindNotConnected
	// KindRemoteCallFailed: transport or execution failure of a
	// read-only call, fee lookup, connect or receipt wait.
	KindRemoteCallFailed
	// KindEstimationFailed: gas estimation failed, usually because the
	// call would revert.
	KindEstimationFailed
	// KindSubmissionFailed: the transaction could not be signed or
	// broadcast, or it was mined with a failed status.
	KindSubmissionFailed
	// KindReceiptMissingEvent: the transaction was mined but the
	// minted id could not be read from its logs.
	KindReceiptMissingEvent
)

var kindNames = [...]string{
	KindUnknown:             "Unknown",
	KindMalformedInput:      "MalformedInput",
	KindWrongNetwork:        "WrongNetwork",
	KindNotConnected:        "NotConnected",
	KindRemoteCallFailed:    "RemoteCallFailed",
	KindEstimationFailed:    "EstimationFailed",
	KindSubmissionFailed:    "SubmissionFailed",
	KindReceiptMissingEvent: "ReceiptMissingEvent",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String. Unrecognized names map to
// KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return Kind(k)
		}
	}
	return KindUnknown
}

// Error is the single error type returned by sessions and connections.
type Error struct {
	Kind Kind
	// Op names the failed step, e.g. "estimate gas".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error of the given kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an Error whose cause is formatted from the arguments.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// AsError checks whether err is, or wraps, an *Error and returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
