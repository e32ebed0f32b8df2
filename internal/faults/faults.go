// Package faults classifies errors so callers can tell request-level
// failures from retryable backend failures without string matching.
package faults

import "errors"

// Category groups errors by how a caller should react to them.
type Category string

const (
	CategoryInvalidInput        Category = "invalid_input"
	CategoryUnknownMode         Category = "unknown_mode"
	CategoryCompileFailed       Category = "compile_failed"
	CategoryConstraintViolation Category = "constraint_violation"
	CategoryBackendFailure      Category = "backend_failure"
	CategoryTimeout             Category = "timeout"
	CategoryExhausted           Category = "exhausted"
	CategoryInternalFailure     Category = "internal_failure"
)

type classifiedError struct {
	category  Category
	code      string
	hint      string
	retryable bool
	cause     error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// Wrap attaches a classification to cause. A nil cause yields nil.
func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category:  category,
		code:      code,
		hint:      hint,
		retryable: retryable,
		cause:     cause,
	}
}

// New is Wrap over errors.New(msg).
func New(category Category, code, msg string) error {
	return Wrap(errors.New(msg), category, code, "", false)
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

func RetryableOf(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}
	return false
}

// IsFatal reports whether err aborts a request rather than being retried.
func IsFatal(err error) bool {
	switch CategoryOf(err) {
	case CategoryInvalidInput, CategoryUnknownMode, CategoryCompileFailed, CategoryConstraintViolation:
		return true
	}
	return false
}
