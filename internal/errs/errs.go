// Package errs classifies failures so callers can branch on what went wrong
// without string matching.
package errs

import (
	"errors"
	"fmt"
)

type Category string

const (
	CategoryRender       Category = "render"
	CategoryResolution   Category = "resolution"
	CategoryValidation   Category = "validation"
	CategoryModelCall    Category = "model_call"
	CategoryCache        Category = "cache"
	CategoryInvalidInput Category = "invalid_input"
	CategoryNotFound     Category = "not_found"
	CategoryInternal     Category = "internal"
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

func (e *classifiedError) Category() Category {
	return e.category
}

func (e *classifiedError) Code() string {
	return e.code
}

func (e *classifiedError) Hint() string {
	return e.hint
}

func (e *classifiedError) Retryable() bool {
	return e.retryable
}

// Wrap attaches a category and code to cause. A nil cause stays nil.
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

// New builds a classified error from a formatted message.
func New(category Category, code, format string, args ...any) error {
	return &classifiedError{
		category: category,
		code:     code,
		cause:    fmt.Errorf(format, args...),
	}
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

// Is reports whether err carries the given category anywhere in its chain.
func Is(err error, category Category) bool {
	return CategoryOf(err) == category
}
