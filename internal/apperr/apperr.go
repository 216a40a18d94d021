// Package apperr defines the error taxonomy shared by all notex services.
package apperr

import "fmt"

// ValidationError reports caller-supplied data that fails a precondition.
// It is always raised before any write happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a target that does not exist or is not owned by
// the caller. The two cases are deliberately indistinguishable.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and id.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// StoreError wraps a failed store call.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store wraps err as a StoreError.
func Store(err error) *StoreError {
	return &StoreError{Err: err}
}

// PartialAggregateError reports a multi-step note write that completed the
// note row but failed a later step. NoteID identifies the row that now
// exists in a possibly inconsistent state; nothing is rolled back.
type PartialAggregateError struct {
	NoteID string
	Err    error
}

func (e *PartialAggregateError) Error() string {
	return fmt.Sprintf("note %s written but aggregate incomplete: %v", e.NoteID, e.Err)
}

func (e *PartialAggregateError) Unwrap() error {
	return e.Err
}
