package scanlog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is matched by *InvalidPathError.
	ErrInvalidPath = errors.New("invalid path")
	// ErrStoreNotFound is matched by *StoreNotFoundError.
	ErrStoreNotFound = errors.New("store not found")
	// ErrPrecondition is matched by *PreconditionError.
	ErrPrecondition = errors.New("precondition failed")
	// ErrUnsupported is matched by *UnsupportedError.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrInvalidTransition is returned in strict mode when a status change is
	// not allowed by the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InvalidPathError reports a folder path that does not start with "/".
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: must be absolute", e.Path)
}

func (e *InvalidPathError) Is(target error) bool { return target == ErrInvalidPath }

// StoreNotFoundError reports that no store file exists at the resolved
// location and the caller did not ask for one to be created.
type StoreNotFoundError struct {
	Path string
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("store not found: %s", e.Path)
}

func (e *StoreNotFoundError) Is(target error) bool { return target == ErrStoreNotFound }

// PreconditionError reports a required key field that is missing or empty.
type PreconditionError struct {
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s is required", e.Field)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// UnsupportedError reports a request for a combination that is not
// implemented, such as device-scoped status filtering.
type UnsupportedError struct {
	Op     string
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: unsupported", e.Op)
	}
	return fmt.Sprintf("%s: unsupported: %s", e.Op, e.Reason)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// StoreError wraps a failure reported by the storage engine.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TransitionError reports a status change rejected in strict mode.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
