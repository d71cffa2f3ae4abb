package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Store when no row has the requested id.
	ErrNotFound = errors.New("booking not found")
	// ErrStale is returned by Store.Transition when the row is no longer in the expected status.
	ErrStale = errors.New("booking status changed concurrently")
)

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindValidation        Kind = "VALIDATION_FAILED"
	KindInvalidSchedule   Kind = "INVALID_SCHEDULE"
	KindCarwashClosed     Kind = "CARWASH_CLOSED"
	KindStorage           Kind = "STORAGE"
)

// Error is the typed result of a rejected booking operation.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a booking error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Shown for both missing and foreign bookings so existence does not leak.
const msgUnmodifiable = "this booking can no longer be modified"

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func invalidTransition(from, to Status) error {
	return &Error{Kind: KindInvalidTransition, Message: msgUnmodifiable, Err: fmt.Errorf("%s -> %s not allowed", from, to)}
}

func validation(fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: "please correct the highlighted fields", Fields: fields}
}

func invalidSchedule(msg string) error {
	return &Error{Kind: KindInvalidSchedule, Message: msg}
}

func storage(op string, err error) error {
	return &Error{Kind: KindStorage, Message: op + " failed", Err: err}
}
