package containers

import (
	"context"
	"testing"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
)

func TestRestartShortCircuitsOnStopFailure(t *testing.T) {
	stopFailure := Failed(KindBackend, "stop timed out")
	started := false

	got := Restart(
		func() Status { return stopFailure },
		func() Status {
			started = true
			return Okay()
		},
	)
	if got != stopFailure {
		t.Fatalf("Restart()=%+v, want %+v", got, stopFailure)
	}
	if started {
		t.Fatalf("start was attempted after a failed stop")
	}
}

func TestRestartRunsStartAfterStop(t *testing.T) {
	var calls []string
	got := Restart(
		func() Status {
			calls = append(calls, "stop")
			return Okay()
		},
		func() Status {
			calls = append(calls, "start")
			return Okay()
		},
	)
	if !got.OK() {
		t.Fatalf("Restart()=%+v, want okay", got)
	}
	if len(calls) != 2 || calls[0] != "stop" || calls[1] != "start" {
		t.Fatalf("calls=%v, want [stop start]", calls)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"stub":       KindStub,
		"Docker":     KindDocker,
		"kubernetes": KindKubernetes,
		"k8s":        KindKubernetes,
	}
	for raw, want := range cases {
		got, err := ParseKind(raw)
		if err != nil {
			t.Fatalf("ParseKind(%q) err=%v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q)=%q, want %q", raw, got, want)
		}
	}
	if _, err := ParseKind("localfs"); err == nil {
		t.Fatalf("ParseKind(localfs) expected error")
	}
}

func TestFilterMatch(t *testing.T) {
	running := domain.Instance{ID: "a", State: domain.StateRunning}
	if !(Filter{}).Match(running) {
		t.Fatalf("zero filter should match")
	}
	if (Filter{State: domain.StateStopped}).Match(running) {
		t.Fatalf("stopped filter matched running instance")
	}
}

func TestOptionsAccessors(t *testing.T) {
	opts := Options{"domain": "example.com", "port_base": "12080", "tail": 50, "timeout": "3s"}
	if got := opts.String("domain", ""); got != "example.com" {
		t.Fatalf("String()=%q", got)
	}
	if got := opts.String("missing", "fallback"); got != "fallback" {
		t.Fatalf("String() default=%q", got)
	}
	if got, err := opts.Int("port_base", 0); err != nil || got != 12080 {
		t.Fatalf("Int()=%d err=%v", got, err)
	}
	if got, err := opts.Int("tail", 0); err != nil || got != 50 {
		t.Fatalf("Int()=%d err=%v", got, err)
	}
	if got, err := opts.Duration("timeout", 0); err != nil || got != 3*time.Second {
		t.Fatalf("Duration()=%v err=%v", got, err)
	}
	if _, err := (Options{"n": "abc"}).Int("n", 0); err == nil {
		t.Fatalf("Int() expected parse error")
	}
}

func TestDetachOutlivesParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, release := Detach(parent, time.Minute)
	defer release()

	cancel()
	select {
	case <-ctx.Done():
		t.Fatalf("detached context cancelled with parent")
	default:
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("detached context has no deadline")
	}
}

func TestProjectURL(t *testing.T) {
	if got := ProjectURL("demo", "example.com"); got != "http://demo.example.com" {
		t.Fatalf("ProjectURL()=%q", got)
	}
	if got := ProjectURL("demo", " "); got != "http://demo.localhost" {
		t.Fatalf("ProjectURL() without domain=%q, want http://demo.localhost", got)
	}
}
