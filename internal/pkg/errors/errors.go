package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrCourseNotFound is fatal for the operation that needed the course.
	ErrCourseNotFound = errors.New("course not found")
	// ErrBlockNotFound is recoverable: the block is treated as no longer
	// present and skipped.
	ErrBlockNotFound = errors.New("block not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// TransformerError indicates misuse of the transformer pipeline: an
// unregistered transformer requested at transform time, or a transformer
// declaring a non-positive version. It is always fatal.
type TransformerError struct {
	Transformer string
	Reason      string
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("transformer %q: %s", e.Transformer, e.Reason)
}

// NewTransformerError builds a TransformerError for the named transformer.
func NewTransformerError(name, reason string) *TransformerError {
	return &TransformerError{Transformer: name, Reason: reason}
}
