package domain

import "testing"

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"running":   StateRunning,
		" Stopped ": StateStopped,
		"ERROR":     StateError,
		"unknown":   StateUnknown,
	}
	for raw, want := range cases {
		got, err := ParseState(raw)
		if err != nil {
			t.Fatalf("ParseState(%q) err=%v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseState(%q)=%q, want %q", raw, got, want)
		}
	}
	if _, err := ParseState("starting"); err == nil {
		t.Fatalf("ParseState(starting) expected error")
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StateRunning, StateStopped) {
		t.Fatalf("running -> stopped should be allowed")
	}
	if !CanTransition(StateStopped, StateRunning) {
		t.Fatalf("stopped -> running should be allowed")
	}
	if !CanTransition(StateRunning, StateRunning) {
		t.Fatalf("running -> running should be allowed")
	}
	if CanTransition(StateError, StateStopped) {
		t.Fatalf("CanTransition(error, stopped)=true, want false")
	}
	if CanTransition(StateError, StateRunning) {
		t.Fatalf("error -> running should require remove and create")
	}
	if CanTransition(State("bogus"), State("bogus")) {
		t.Fatalf("invalid state should never transition")
	}
}

func TestInstanceCloneDoesNotAlias(t *testing.T) {
	orig := Instance{
		ID:          "p1",
		State:       StateRunning,
		Options:     map[string]any{"a": 1},
		Meta:        Metadata{"foo": "bar"},
		Credentials: &Credentials{ClientID: "id", ClientSecret: "secret"},
	}
	clone := orig.Clone()
	clone.Options["a"] = 2
	clone.Meta["foo"] = "baz"
	clone.Credentials.ClientSecret = "other"

	if orig.Options["a"] != 1 {
		t.Fatalf("Options aliased: %v", orig.Options)
	}
	if orig.Meta["foo"] != "bar" {
		t.Fatalf("Meta aliased: %v", orig.Meta)
	}
	if orig.Credentials.ClientSecret != "secret" {
		t.Fatalf("Credentials aliased")
	}
}

func TestProjectValidate(t *testing.T) {
	if err := (Project{ID: "p1", Name: "demo"}).Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	if err := (Project{ID: "p1"}).Validate(); err == nil {
		t.Fatalf("Validate() expected error for missing name")
	}
}
