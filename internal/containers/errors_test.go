package containers

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsSentinel(t *testing.T) {
	err := NewError(KindConflict, "create", "p1", nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("errors.Is(%v, ErrConflict)=false", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict error matched ErrNotFound")
	}
	if got := err.Error(); got != "create p1: instance already exists" {
		t.Fatalf("Error()=%q", got)
	}
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("init: %w", NewError(KindInitialization, "init", "", cause))
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("expected ErrInitialization in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if KindOf(err) != KindInitialization {
		t.Fatalf("KindOf()=%v, want %v", KindOf(err), KindInitialization)
	}
}

func TestKindOfPlainSentinel(t *testing.T) {
	if KindOf(fmt.Errorf("x: %w", ErrNotFound)) != KindNotFound {
		t.Fatalf("KindOf(wrapped ErrNotFound) != KindNotFound")
	}
	if KindOf(errors.New("other")) != KindNone {
		t.Fatalf("KindOf(other) != KindNone")
	}
}

func TestStatusErr(t *testing.T) {
	if err := Okay().Err("start", "p1"); err != nil {
		t.Fatalf("Okay().Err()=%v, want nil", err)
	}
	err := NotFoundStatus().Err("start", "p1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("NotFoundStatus().Err()=%v, want ErrNotFound", err)
	}
	if NotFoundStatus().Error != "container not found" {
		t.Fatalf("NotFoundStatus().Error=%q", NotFoundStatus().Error)
	}
	backend := FailedErr(KindBackend, errors.New("docker stop failed"))
	if backend.Kind != KindBackend || backend.OK() {
		t.Fatalf("FailedErr()=%+v", backend)
	}
}
