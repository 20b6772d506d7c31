package inventory

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidValue
	KindUnitMismatch
	KindUnderflow
	KindInsufficientAvailable
	KindInsufficientOnHand
	KindInvariantViolation
	KindNotFound
	KindAlreadyExists
	KindIOFailure
	KindConflict
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindInvalidValue:          "InvalidValue",
	KindUnitMismatch:          "UnitMismatch",
	KindUnderflow:             "Underflow",
	KindInsufficientAvailable: "InsufficientAvailable",
	KindInsufficientOnHand:    "InsufficientOnHand",
	KindInvariantViolation:    "InvariantViolation",
	KindNotFound:              "NotFound",
	KindAlreadyExists:         "AlreadyExists",
	KindIOFailure:             "IOFailure",
	KindConflict:              "Conflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidValue          = &Error{Kind: KindInvalidValue}
	ErrUnitMismatch          = &Error{Kind: KindUnitMismatch}
	ErrUnderflow             = &Error{Kind: KindUnderflow}
	ErrInsufficientAvailable = &Error{Kind: KindInsufficientAvailable}
	ErrInsufficientOnHand    = &Error{Kind: KindInsufficientOnHand}
	ErrInvariantViolation    = &Error{Kind: KindInvariantViolation}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrAlreadyExists         = &Error{Kind: KindAlreadyExists}
	ErrIOFailure             = &Error{Kind: KindIOFailure}
	ErrConflict              = &Error{Kind: KindConflict}
)

// Error is the single error type returned by the aggregate and the service.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ioFailure tags an unclassified storage error. Errors that already carry a
// kind pass through untouched.
func ioFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: KindIOFailure, Op: op, Err: err}
}
