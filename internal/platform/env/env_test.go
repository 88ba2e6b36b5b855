package env

import (
	"testing"
	"time"
)

func TestString_Default(t *testing.T) {
	got := String("FORGE_TEST_STRING_DOES_NOT_EXIST", "fallback")
	if got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
}

func TestString_Override(t *testing.T) {
	t.Setenv("FORGE_TEST_STRING_KEY", "value")
	got := String("FORGE_TEST_STRING_KEY", "fallback")
	if got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func TestDuration_Override(t *testing.T) {
	t.Setenv("FORGE_TEST_DURATION_KEY", "250ms")
	got, err := Duration("FORGE_TEST_DURATION_KEY", 5*time.Second)
	if err != nil {
		t.Fatalf("Duration() err=%v", err)
	}
	if got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v, want 250ms", got)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Setenv("FORGE_TEST_DURATION_INVALID", "not-a-duration")
	if _, err := Duration("FORGE_TEST_DURATION_INVALID", 5*time.Second); err == nil {
		t.Fatalf("Duration() expected error")
	}
}

func TestBool(t *testing.T) {
	got, err := Bool("FORGE_TEST_BOOL_DOES_NOT_EXIST", true)
	if err != nil || got != true {
		t.Fatalf("Bool()=%v err=%v, want true", got, err)
	}
	t.Setenv("FORGE_TEST_BOOL_INVALID", "maybe")
	if _, err := Bool("FORGE_TEST_BOOL_INVALID", false); err == nil {
		t.Fatalf("Bool() expected error")
	}
}

func TestInt(t *testing.T) {
	t.Setenv("FORGE_TEST_INT_KEY", "42")
	got, err := Int("FORGE_TEST_INT_KEY", 1)
	if err != nil || got != 42 {
		t.Fatalf("Int()=%v err=%v, want 42", got, err)
	}
	t.Setenv("FORGE_TEST_INT_INVALID", "forty")
	if _, err := Int("FORGE_TEST_INT_INVALID", 1); err == nil {
		t.Fatalf("Int() expected error")
	}
}

func TestPrefixed(t *testing.T) {
	t.Setenv("FORGE_TEST_OPT_PORT_BASE", "13000")
	t.Setenv("FORGE_TEST_OPT_DOMAIN", "example.com")
	t.Setenv("FORGE_TEST_OPT_", "ignored")

	got := Prefixed("FORGE_TEST_OPT_")
	if len(got) != 2 {
		t.Fatalf("Prefixed()=%v, want 2 entries", got)
	}
	if got["port_base"] != "13000" || got["domain"] != "example.com" {
		t.Fatalf("Prefixed()=%v", got)
	}
}
