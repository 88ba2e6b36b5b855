package containers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies driver failures so callers can branch without
// inspecting messages.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConflict
	KindNotFound
	KindBackend
	KindInitialization
	KindShutdown
)

var (
	ErrConflict       = errors.New("instance already exists")
	ErrNotFound       = errors.New("container not found")
	ErrBackend        = errors.New("backend fault")
	ErrInitialization = errors.New("driver initialization failed")
	ErrShutdown       = errors.New("driver is shut down")
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindBackend:
		return "backend"
	case KindInitialization:
		return "initialization"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindBackend:
		return ErrBackend
	case KindInitialization:
		return ErrInitialization
	case KindShutdown:
		return ErrShutdown
	default:
		return nil
	}
}

// Error is the structured error returned by driver operations.
type Error struct {
	Kind ErrorKind
	Op   string
	ID   string
	Err  error
}

func NewError(kind ErrorKind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	msg := ""
	if sentinel := e.Kind.sentinel(); sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Err != nil && !errors.Is(e.Err, e.Kind.sentinel()) {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if msg == "" {
		msg = "driver error"
	}
	if len(parts) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", strings.Join(parts, " "), msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel := e.Kind.sentinel()
	return sentinel != nil && target == sentinel
}

// KindOf returns the ErrorKind carried by err, or KindNone.
func KindOf(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	switch {
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBackend):
		return KindBackend
	case errors.Is(err, ErrInitialization):
		return KindInitialization
	case errors.Is(err, ErrShutdown):
		return KindShutdown
	}
	return KindNone
}
