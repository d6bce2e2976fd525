// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package fault classifies the errors that cross component boundaries.
//
// Every error the service surfaces to a caller carries a Kind. Handlers map
// kinds to HTTP statuses; store adapters decide retry eligibility from them.
// Errors created elsewhere are wrapped with fmt.Errorf("...: %w", err) as
// usual and classified at the boundary where the kind is known.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies the failure class of an error.
type Kind int

// Failure classes, in rough order of how often they occur.
const (
	// Unknown is the zero value; errors without an explicit kind.
	Unknown Kind = iota

	// NotFound: a requested entity does not exist. Not retryable.
	NotFound

	// InvalidWeights: a weight tuple does not sum to 1 within tolerance,
	// or contains a negative entry.
	InvalidWeights

	// InvalidParam: malformed id, non-numeric weight, limit out of range.
	InvalidParam

	// ShapeMismatch: vector dimension disagreement.
	ShapeMismatch

	// Unauthorized: missing or invalid credentials.
	Unauthorized

	// Cancelled: the caller abandoned the operation.
	Cancelled

	// Timeout: the operation exceeded its deadline.
	Timeout

	// StoreFault: a transport-level store failure that survived the retry
	// policy.
	StoreFault

	// ProjectorStepFailed: a sync projector step aborted the run.
	ProjectorStepFailed
)

// String returns the kind name used in logs and error codes.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidWeights:
		return "invalid_weights"
	case InvalidParam:
		return "invalid_param"
	case ShapeMismatch:
		return "shape_mismatch"
	case Unauthorized:
		return "unauthorized"
	case Cancelled:
		return "cancelled"
	case Timeout:
		return "timeout"
	case StoreFault:
		return "store_fault"
	case ProjectorStepFailed:
		return "projector_step_failed"
	default:
		return "unknown"
	}
}

// Error is a classified error. It implements error and unwraps to the
// underlying cause when one exists.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New creates a classified error with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. The message may be empty, in which case
// the wrapped error's text is used.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		return e.kind.String()
	}
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// KindOf extracts the kind of err. Context errors classify as Cancelled or
// Timeout even when they were never wrapped; everything else without an
// explicit kind is Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromContext classifies a context error after ctx.Err() became non-nil.
func FromContext(ctx context.Context) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Wrap(Timeout, "operation deadline exceeded", ctx.Err())
	}
	return Wrap(Cancelled, "operation cancelled", ctx.Err())
}
