package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrNotAuthorized     = errors.New("not a member of this group")
	ErrInvalidTransition = errors.New("invitation has already been answered")
)

// ValidationError reports malformed input caught before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RemoteError wraps a failed backend call. errors.Is sees through it.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error { return e.Err }

func remote(op string, err error) error {
	return &RemoteError{Op: op, Err: err}
}

// describe renders err for a user-facing notice.
func describe(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Err.Error()
	}
	return err.Error()
}
