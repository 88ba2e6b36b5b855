package containers

import "fmt"

const StatusOkay = "okay"

// Status is the result of a steady-state transition. Exactly one of Status
// or Error is set.
type Status struct {
	Status string    `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
	Kind   ErrorKind `json:"-"`
}

func Okay() Status {
	return Status{Status: StatusOkay}
}

func Failed(kind ErrorKind, format string, args ...any) Status {
	return Status{Error: fmt.Sprintf(format, args...), Kind: kind}
}

// FailedErr builds a failure status from err, keeping its kind when it has one.
func FailedErr(fallback ErrorKind, err error) Status {
	kind := KindOf(err)
	if kind == KindNone {
		kind = fallback
	}
	return Status{Error: err.Error(), Kind: kind}
}

func NotFoundStatus() Status {
	return Status{Error: ErrNotFound.Error(), Kind: KindNotFound}
}

func (s Status) OK() bool {
	return s.Status == StatusOkay && s.Error == ""
}

// Err converts a failed status into an *Error, or nil when the status is okay.
func (s Status) Err(op, id string) error {
	if s.OK() {
		return nil
	}
	kind := s.Kind
	if kind == KindNone {
		kind = KindBackend
	}
	return NewError(kind, op, id, fmt.Errorf("%s", s.Error))
}
