package model

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline errors.
// Codes are strings so they read well in logs and JSON.
type ErrorCode string

const (
	// CodeTransientFetch is a network or non-2xx failure that may be retried.
	CodeTransientFetch ErrorCode = "TRANSIENT_FETCH_ERROR"

	// CodePermanentFetch is a fetch whose retry budget is exhausted.
	CodePermanentFetch ErrorCode = "PERMANENT_FETCH_ERROR"

	// CodeTransform is any failure inside the transform sequence. Never retried.
	CodeTransform ErrorCode = "TRANSFORM_ERROR"

	// CodeStorage is a failure writing or reading local storage.
	CodeStorage ErrorCode = "STORAGE_ERROR"

	// CodeCancelled means the batch was cancelled before the item resolved.
	CodeCancelled ErrorCode = "CANCELLED"

	// CodeInvalidConfig is a configuration error that prevents the batch from starting.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeInternal is an unexpected internal failure.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// PipelineError carries a code and the item it belongs to
type PipelineError struct {
	Code     ErrorCode
	ItemID   int
	Attempts int
	Err      error
}

func (e *PipelineError) Error() string {
	if e.ItemID > 0 {
		if e.Attempts > 0 {
			return fmt.Sprintf("%s: item %d after %d attempt(s): %v", e.Code, e.ItemID, e.Attempts, e.Err)
		}
		return fmt.Sprintf("%s: item %d: %v", e.Code, e.ItemID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError wraps err with a code
func NewError(code ErrorCode, itemID int, err error) *PipelineError {
	return &PipelineError{Code: code, ItemID: itemID, Err: err}
}

// CodeOf returns the code of the first PipelineError in err's chain, or CodeInternal
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}

// IsRetryable reports whether a fetch error may be retried. Uncoded errors
// count as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeCancelled, CodePermanentFetch, CodeStorage, CodeInvalidConfig:
		return false
	}
	return true
}
