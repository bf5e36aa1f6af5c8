// Package errors provides custom error types for the shelfsync engine.
// These errors enable programmatic error checking, keep every failure
// correlated to the record that caused it, and separate failures that
// abort a call from failures that are isolated per item.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the shelfsync engine
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotApplicable indicates a strategy was asked to resolve a
	// conflict it declared itself inapplicable to
	ErrNotApplicable = errors.New("strategy not applicable")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrMemoryLimit indicates the configured memory limit was exhausted
	ErrMemoryLimit = errors.New("memory limit exceeded")

	// ErrInvalidTransition indicates a workflow action that is not legal
	// from the workflow's current state
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// ValidationError represents malformed conflict or record input.
// Validation failures fail the call fast; they are never silently dropped.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NotApplicableError reports an attempt to execute a strategy against a
// conflict it is not applicable to. It is reported inside the resolution
// result, never thrown past the executor.
type NotApplicableError struct {
	Strategy string
	Conflict string
	BookID   string
}

// Error implements the error interface
func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("strategy %s not applicable to %s conflict for book %s", e.Strategy, e.Conflict, e.BookID)
}

// Is implements errors.Is support
func (e *NotApplicableError) Is(target error) bool {
	return target == ErrNotApplicable
}

// NewNotApplicableError creates a new NotApplicableError
func NewNotApplicableError(strategy, conflict, bookID string) *NotApplicableError {
	return &NotApplicableError{Strategy: strategy, Conflict: conflict, BookID: bookID}
}

// ProcessingError represents a per-item failure inside a batch. Processing
// errors are collected into the batch result and never abort the batch.
type ProcessingError struct {
	BookID  string
	Stage   string // "detect", "select", "execute"
	Message string
	Err     error
}

// Error implements the error interface
func (e *ProcessingError) Error() string {
	if e.BookID != "" {
		return fmt.Sprintf("processing failed for book %s during %s: %s", e.BookID, e.Stage, e.Message)
	}
	return fmt.Sprintf("processing failed during %s: %s", e.Stage, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError creates a new ProcessingError
func NewProcessingError(bookID, stage string, err error) *ProcessingError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ProcessingError{BookID: bookID, Stage: stage, Message: message, Err: err}
}

// InitializationError is fatal: a dependency misconfiguration (such as a
// missing event surface) prevents the engine from starting.
type InitializationError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *InitializationError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("initialization failed for %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("initialization failed: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// NewInitializationError creates a new InitializationError
func NewInitializationError(component, message string, err error) *InitializationError {
	return &InitializationError{Component: component, Message: message, Err: err}
}

// TransitionError reports a workflow action that is not valid from the
// workflow's current state. Invalid transitions fail loudly, they are
// never silently ignored.
type TransitionError struct {
	WorkflowID string
	From       string
	Action     string
}

// Error implements the error interface
func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow %s: action %s not allowed from state %s", e.WorkflowID, e.Action, e.From)
}

// Is implements errors.Is support
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NewTransitionError creates a new TransitionError
func NewTransitionError(workflowID, from, action string) *TransitionError {
	return &TransitionError{WorkflowID: workflowID, From: from, Action: action}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotApplicable checks if an error reports an inapplicable strategy
func IsNotApplicable(err error) bool {
	return errors.Is(err, ErrNotApplicable)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsInvalidTransition checks if an error is a workflow transition error
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapProcessing wraps an error as a ProcessingError
func WrapProcessing(bookID, stage string, err error) error {
	if err == nil {
		return nil
	}
	return NewProcessingError(bookID, stage, err)
}
