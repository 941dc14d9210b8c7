package quotes

import (
	"errors"
	"fmt"
)

// Kind classifies quote failures. The set is closed.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidStatus     Kind = "invalid_status"
	KindInsufficientStock Kind = "insufficient_stock"
	KindStorage           Kind = "storage"
	KindConflict          Kind = "conflict"
)

// Error carries the kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("quotes: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("quotes: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrNotFound is returned by repositories for a missing quote.
	ErrNotFound = errors.New("quote not found")
	// ErrStatusChanged is returned when a guarded status update matched no row.
	ErrStatusChanged = errors.New("quote status changed concurrently")
)

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, defaulting to KindStorage for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindStorage
}

// wrapStorage tags repository failures, keeping not-found distinct.
func wrapStorage(op string, err error) error {
	var qe *Error
	if errors.As(err, &qe) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return newError(KindNotFound, op, err)
	}
	return newError(KindStorage, op, err)
}
