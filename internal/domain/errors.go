package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input to a single call. Always
	// correctable by the caller.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState marks an operation that is not legal given the
	// current state of the entity.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound marks a referenced entity that does not exist or has
	// been soft-deleted.
	ErrNotFound = errors.New("not found")
)

// Error is the typed failure returned by every domain operation. It
// unwraps to one of the sentinel kinds above.
type Error struct {
	Kind   error
	Entity string
	ID     string
	State  string
	Op     string
	Msg    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Entity)
	if e.ID != "" {
		b.WriteString(" ")
		b.WriteString(e.ID)
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.State != "" {
		fmt.Fprintf(&b, " (state %s)", e.State)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func validationErr(entity, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func invalidStateErr(entity, id, state, op, format string, args ...any) error {
	return &Error{
		Kind:   ErrInvalidState,
		Entity: entity,
		ID:     id,
		State:  state,
		Op:     op,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// NotFoundErr builds a not-found failure for the given entity and id.
func NotFoundErr(entity, id string) error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: id, Msg: "not found"}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInvalidState reports whether err is an invalid-state failure.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
