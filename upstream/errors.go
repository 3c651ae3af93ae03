package upstream

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure. Transient failures are retried
// with bounded backoff; permanent failures surface as a missing field in
// the final result.
type ErrorKind string

const (
	Transient ErrorKind = "transient"
	Permanent ErrorKind = "permanent"
)

// Error is a classified provider failure
type Error struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a transient failure for the given source
func NewTransient(source string, err error) *Error {
	return &Error{Source: source, Kind: Transient, Err: err}
}

// NewPermanent wraps err as a permanent failure for the given source
func NewPermanent(source string, err error) *Error {
	return &Error{Source: source, Kind: Permanent, Err: err}
}

// KindOf extracts the classification from err. Context expiry counts as
// transient: the caller simply ran out of deadline.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient
	}
	return Permanent
}
