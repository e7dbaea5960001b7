// Package apperr classifies failures so callers can react per kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	Unknown Kind = iota
	Configuration
	Input
	NotFound
	Upstream
	DataCorruption
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Input:
		return "input"
	case NotFound:
		return "not_found"
	case Upstream:
		return "upstream"
	case DataCorruption:
		return "data_corruption"
	default:
		return "unknown"
	}
}

// ErrNotPDF marks inputs rejected by the content-type check.
var ErrNotPDF = errors.New("not a PDF document")

// Error carries a Kind, the failing operation and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind and op. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a new Error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func Configurationf(format string, args ...any) error {
	return Errorf(Configuration, "config", format, args...)
}

func Inputf(op, format string, args ...any) error {
	return Errorf(Input, op, format, args...)
}

func NotFoundf(op, format string, args ...any) error {
	return Errorf(NotFound, op, format, args...)
}

// UpstreamErr wraps a failure of an external capability.
func UpstreamErr(op string, err error) error {
	return E(Upstream, op, err)
}

func Corruptf(op, format string, args ...any) error {
	return Errorf(DataCorruption, op, format, args...)
}

// KindOf returns the outermost Kind found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
