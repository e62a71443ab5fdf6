package model

import (
	"errors"
	"fmt"
)

// Entity kinds used in error values and cache keys.
const (
	KindTask          = "task"
	KindProject       = "project"
	KindChecklistItem = "checklist item"
)

// ErrStoreUnavailable marks transient infrastructure failures. Callers may
// retry with backoff; it never means the write succeeded.
var ErrStoreUnavailable = errors.New("store unavailable")

// NotFoundError reports a referenced entity or checklist item that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidStatusError reports a status value outside the defined enum.
type InvalidStatusError struct {
	Kind  string
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid %s status %q", e.Kind, e.Value)
}

// InvalidValueError reports a patch or entity field that failed validation.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// ConflictError reports a stale write: the stored version moved on since
// the caller's read. The losing writer must re-read before retrying.
type ConflictError struct {
	Kind    string
	ID      string
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (stale version %d)", e.Kind, e.ID, e.Version)
}

// UnavailableError wraps a transient infrastructure failure.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStoreUnavailable) hold for any UnavailableError.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidStatus reports whether err (or any error in its chain) is an InvalidStatusError.
func IsInvalidStatus(err error) bool {
	var is *InvalidStatusError
	return errors.As(err, &is)
}

// IsConflict reports whether err (or any error in its chain) is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsUnavailable reports whether err signals a transient store failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Retryable reports whether the caller may retry the same operation
// unchanged. Conflicts are not retryable as-is: they need a fresh read.
func Retryable(err error) bool {
	return IsUnavailable(err)
}
