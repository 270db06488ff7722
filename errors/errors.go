// Package errors provides error handling for lhjobs.
//
// This package re-exports github.com/cockroachdb/errors so that every
// package gets stack traces, wrapping and structured details from one import:
//
//	if err := store.UpdateStatus(ctx, id, job.StatusCompleted, job.StatusProcessing); err != nil {
//	    return errors.Wrapf(err, "complete job %d", id)
//	}
//
//	if errors.Is(err, errors.ErrConcurrencyConflict) {
//	    // another process changed the row first
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
	CombineErrors  = crdb.CombineErrors
)

// GetStack returns the reportable stack trace of an error, if any.
var GetStack = crdb.GetReportableStackTrace

// Common sentinel errors.
// Use these with errors.Is() and wrap them with errors.Wrap() to add context.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the input was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConcurrencyConflict indicates a compare-and-swap update found a
	// stored value other than the one the caller expected.
	ErrConcurrencyConflict = New("concurrency conflict")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsConcurrencyConflict checks if an error is or wraps ErrConcurrencyConflict.
func IsConcurrencyConflict(err error) bool {
	return err != nil && Is(err, ErrConcurrencyConflict)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidRequest, format, args...)
}

// NewConcurrencyConflict creates a conflict error with a formatted message
func NewConcurrencyConflict(format string, args ...interface{}) error {
	return Wrapf(ErrConcurrencyConflict, format, args...)
}
