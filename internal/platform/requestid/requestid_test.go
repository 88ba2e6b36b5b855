package requestid

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if len(id) != 32 {
		t.Fatalf("len(New())=%d, want 32", len(id))
	}
}

func TestEnsureReusesContextID(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatalf("Ensure() returned empty id")
	}
	_, again := Ensure(ctx)
	if again != id {
		t.Fatalf("Ensure()=%q, want %q", again, id)
	}
	if FromContext(context.Background()) != "" {
		t.Fatalf("FromContext(empty) should be empty")
	}
}
