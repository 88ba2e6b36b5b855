package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/credentials"
	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/repo/memory"
)

type fakeResult struct {
	out string
	err error
}

// fakeRunner answers docker commands by verb and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	results map[string]fakeResult
	states  map[string]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: map[string]fakeResult{}, states: map[string]string{}}
}

func (f *fakeRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{bin}, args...))

	verb := args[0]
	if res, ok := f.results[verb]; ok {
		return []byte(res.out), res.err
	}
	name := args[len(args)-1]
	switch verb {
	case "inspect":
		status, ok := f.states[name]
		if !ok {
			return []byte("Error: No such object: " + name), errors.New("exit status 1")
		}
		return []byte(fmt.Sprintf(`{"Status":%q,"ExitCode":0}`, status)), nil
	case "logs":
		return []byte("2024-05-01T10:00:00.000000000Z Server now running\n2024-05-01T10:00:01.5Z Started flows\n"), nil
	}
	return nil, nil
}

func (f *fakeRunner) verbs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c[1])
	}
	return out
}

func (f *fakeRunner) lastCall(verb string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i][1] == verb {
			return f.calls[i]
		}
	}
	return nil
}

type fixture struct {
	driver   *Driver
	runner   *fakeRunner
	projects *memory.ProjectStore
	issuer   *credentials.Issuer
}

func newFixture(t *testing.T, projects ...domain.Project) fixture {
	t.Helper()
	store := memory.NewProjectStore(projects...)
	issuer, err := credentials.NewIssuer(memory.NewAuthClientStore(), "test-signing-key")
	if err != nil {
		t.Fatalf("NewIssuer() err=%v", err)
	}
	runner := newFakeRunner()
	return fixture{
		driver:   New(store, issuer, nil, WithRunner(runner)),
		runner:   runner,
		projects: store,
		issuer:   issuer,
	}
}

func (f fixture) init(t *testing.T, opts containers.Options) {
	t.Helper()
	if _, err := f.driver.Init(context.Background(), opts); err != nil {
		t.Fatalf("Init() err=%v", err)
	}
}

func TestInitQueriesBackendState(t *testing.T) {
	f := newFixture(t,
		domain.Project{ID: "a", Name: "a", Settings: domain.Metadata{"port": float64(12085)}},
		domain.Project{ID: "b", Name: "b"},
		domain.Project{ID: "c", Name: "c"},
	)
	f.runner.states["forge-a"] = "running"
	f.runner.states["forge-b"] = "exited"
	f.init(t, containers.Options{"port_base": "12080"})

	want := map[string]domain.State{"a": domain.StateRunning, "b": domain.StateStopped, "c": domain.StateUnknown}
	for id, state := range want {
		inst, ok, _ := f.driver.Details(context.Background(), id)
		if !ok || inst.State != state {
			t.Fatalf("Details(%s)=%+v, want %s", id, inst, state)
		}
	}
	if f.driver.nextPort != 12086 {
		t.Fatalf("nextPort=%d, want 12086", f.driver.nextPort)
	}
}

func TestInitFailsOnInspectError(t *testing.T) {
	f := newFixture(t, domain.Project{ID: "a", Name: "a"})
	f.runner.results["inspect"] = fakeResult{out: "Cannot connect to the Docker daemon", err: errors.New("exit status 1")}
	_, err := f.driver.Init(context.Background(), nil)
	if !errors.Is(err, containers.ErrInitialization) {
		t.Fatalf("Init() err=%v, want ErrInitialization", err)
	}
}

func TestInitRejectsBadOptions(t *testing.T) {
	f := newFixture(t)
	_, err := f.driver.Init(context.Background(), containers.Options{"op_timeout": "soon"})
	if !errors.Is(err, containers.ErrInitialization) {
		t.Fatalf("Init() err=%v, want ErrInitialization", err)
	}
}

func TestCreateRunsContainer(t *testing.T) {
	ctx := context.Background()
	p := domain.Project{ID: "p1", Name: "orders"}
	f := newFixture(t)
	f.init(t, containers.Options{"domain": "example.com", "network": "forge"})
	if _, err := f.projects.Create(ctx, p); err != nil {
		t.Fatalf("Create project err=%v", err)
	}

	inst, err := f.driver.Create(ctx, p, map[string]any{
		"env":    map[string]any{"TZ": "UTC", "FORGE_PROJECT_ID": "spoofed"},
		"memory": "256m",
	})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if inst.State != domain.StateRunning || inst.URL != "http://orders.example.com" {
		t.Fatalf("Create()=%+v", inst)
	}

	args := strings.Join(f.runner.lastCall("run"), " ")
	for _, want := range []string{
		"--name forge-p1",
		"--publish 12080:1880",
		"--network forge",
		"-e FORGE_PROJECT_ID=p1",
		"-e FORGE_CLIENT_ID=ffp_",
		"-e TZ=UTC",
		"--memory 256m",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("docker run args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "spoofed") {
		t.Fatalf("reserved env key passed through: %s", args)
	}
	if !strings.HasSuffix(args, defaultImage) {
		t.Fatalf("docker run args should end with image: %s", args)
	}

	stored, _ := f.projects.Get(ctx, "p1")
	if stored.URL != inst.URL || stored.Settings["port"] != 12080 {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestCreateWithoutDomainUsesLocalhost(t *testing.T) {
	ctx := context.Background()
	p := domain.Project{ID: "p1", Name: "orders"}
	f := newFixture(t, p)
	f.init(t, containers.Options{"port_base": 13000})
	f.driver.Remove(ctx, "p1")

	inst, err := f.driver.Create(ctx, p, nil)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if inst.URL != "http://localhost:13000" {
		t.Fatalf("URL=%q", inst.URL)
	}
}

func TestCreateConflict(t *testing.T) {
	p := domain.Project{ID: "p1", Name: "orders"}
	f := newFixture(t, p)
	f.runner.states["forge-p1"] = "running"
	f.init(t, nil)

	if _, err := f.driver.Create(context.Background(), p, nil); !errors.Is(err, containers.ErrConflict) {
		t.Fatalf("Create() err=%v, want ErrConflict", err)
	}
	for _, verb := range f.runner.verbs() {
		if verb == "run" {
			t.Fatalf("docker run called on conflict")
		}
	}
}

func TestCreateRunFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	p := domain.Project{ID: "p1", Name: "orders"}
	f := newFixture(t)
	f.init(t, nil)
	f.projects.Create(ctx, p)
	f.runner.results["run"] = fakeResult{out: "pull access denied", err: errors.New("exit status 125")}

	_, err := f.driver.Create(ctx, p, nil)
	if containers.KindOf(err) != containers.KindBackend {
		t.Fatalf("Create() err=%v, want backend kind", err)
	}
	if f.runner.lastCall("rm") == nil {
		t.Fatalf("expected rm -f after failed run")
	}
	if _, ok, _ := f.driver.Details(ctx, "p1"); ok {
		t.Fatalf("instance recorded after failed create")
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.Project{ID: "p1", Name: "orders"})
	f.init(t, nil)

	if _, err := f.driver.Remove(ctx, "ghost"); !errors.Is(err, containers.ErrNotFound) {
		t.Fatalf("Remove(ghost) err=%v, want ErrNotFound", err)
	}

	// The container never existed; rm -f reports that and removal still succeeds.
	f.runner.results["rm"] = fakeResult{out: "Error: No such container: forge-p1", err: errors.New("exit status 1")}
	st, err := f.driver.Remove(ctx, "p1")
	if err != nil || !st.OK() {
		t.Fatalf("Remove()=%+v err=%v", st, err)
	}
	if got := strings.Join(f.runner.lastCall("rm"), " "); got != "docker rm -f forge-p1" {
		t.Fatalf("rm call=%q", got)
	}
	if _, ok, _ := f.driver.Details(ctx, "p1"); ok {
		t.Fatalf("Details() after remove found instance")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.Project{ID: "p1", Name: "orders"})
	f.runner.states["forge-p1"] = "running"
	f.init(t, nil)

	if st := f.driver.Start(ctx, "p1"); !st.OK() {
		t.Fatalf("Start()=%+v", st)
	}
	if f.runner.lastCall("start") != nil {
		t.Fatalf("docker start called for running instance")
	}
	if st := f.driver.Stop(ctx, "p1"); !st.OK() {
		t.Fatalf("Stop()=%+v", st)
	}
	if st := f.driver.Stop(ctx, "p1"); !st.OK() {
		t.Fatalf("Stop() again=%+v", st)
	}
	stops := 0
	for _, verb := range f.runner.verbs() {
		if verb == "stop" {
			stops++
		}
	}
	if stops != 1 {
		t.Fatalf("docker stop calls=%d, want 1", stops)
	}
}

func TestRestartShortCircuitsOnStopFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.Project{ID: "p1", Name: "orders"})
	f.runner.states["forge-p1"] = "running"
	f.init(t, nil)
	f.runner.results["stop"] = fakeResult{out: "daemon timeout", err: errors.New("exit status 1")}

	st := f.driver.Restart(ctx, "p1")
	if st.OK() || st.Kind != containers.KindBackend {
		t.Fatalf("Restart()=%+v, want backend failure", st)
	}
	if !strings.Contains(st.Error, "docker stop failed") {
		t.Fatalf("Restart().Error=%q, want the stop failure", st.Error)
	}
	if f.runner.lastCall("start") != nil {
		t.Fatalf("docker start attempted after failed stop")
	}
	inst, _, _ := f.driver.Details(ctx, "p1")
	if inst.State != domain.StateRunning {
		t.Fatalf("State=%q, want running", inst.State)
	}
}

func TestErrorInstanceNeedsRecreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.Project{ID: "p1", Name: "orders"})
	f.runner.states["forge-p1"] = "dead"
	f.init(t, nil)

	for op, fn := range map[string]func(context.Context, string) containers.Status{
		"start":   f.driver.Start,
		"stop":    f.driver.Stop,
		"restart": f.driver.Restart,
	} {
		if st := fn(ctx, "p1"); st.OK() || st.Kind != containers.KindBackend {
			t.Fatalf("%s()=%+v, want backend failure", op, st)
		}
	}
	if f.runner.lastCall("start") != nil || f.runner.lastCall("stop") != nil {
		t.Fatalf("docker called for an instance in error: %v", f.runner.verbs())
	}
	inst, _, _ := f.driver.Details(ctx, "p1")
	if inst.State != domain.StateError {
		t.Fatalf("State=%q, want error", inst.State)
	}
}

func TestUnknownIDStatus(t *testing.T) {
	f := newFixture(t)
	f.init(t, nil)
	st := f.driver.Start(context.Background(), "ghost")
	if st.Kind != containers.KindNotFound {
		t.Fatalf("Start()=%+v, want not found", st)
	}
}

func TestSettingsHasNoSecrets(t *testing.T) {
	ctx := context.Background()
	p := domain.Project{ID: "p1", Name: "orders"}
	f := newFixture(t)
	f.init(t, containers.Options{"domain": "example.com"})
	f.projects.Create(ctx, p)
	if _, err := f.driver.Create(ctx, p, nil); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	settings, err := f.driver.Settings(ctx, "p1")
	if err != nil {
		t.Fatalf("Settings() err=%v", err)
	}
	if settings.Env["FORGE_PROJECT_URL"] != "http://orders.example.com" || settings.Env["FORGE_PORT"] != "1880" {
		t.Fatalf("Settings()=%v", settings.Env)
	}
	if _, ok := settings.Env["FORGE_CLIENT_SECRET"]; ok {
		t.Fatalf("Settings() leaked secret")
	}
}

func TestLogs(t *testing.T) {
	f := newFixture(t, domain.Project{ID: "p1", Name: "orders"})
	f.init(t, containers.Options{"log_tail": 50})

	lines, err := f.driver.Logs(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Logs() err=%v", err)
	}
	if len(lines) != 2 || lines[0].Message != "Server now running" || lines[0].Timestamp.IsZero() {
		t.Fatalf("Logs()=%+v", lines)
	}
	if got := strings.Join(f.runner.lastCall("logs"), " "); got != "docker logs --timestamps --tail 50 forge-p1" {
		t.Fatalf("logs call=%q", got)
	}
	if _, err := f.driver.Logs(context.Background(), "ghost"); !errors.Is(err, containers.ErrNotFound) {
		t.Fatalf("Logs(ghost) err=%v", err)
	}
}

func TestInstanceState(t *testing.T) {
	cases := map[string]domain.State{
		"running":    domain.StateRunning,
		"exited":     domain.StateStopped,
		"created":    domain.StateStopped,
		"paused":     domain.StateStopped,
		"dead":       domain.StateError,
		"restarting": domain.StateError,
		"":           domain.StateUnknown,
	}
	for in, want := range cases {
		if got := instanceState(in); got != want {
			t.Fatalf("instanceState(%q)=%q, want %q", in, got, want)
		}
	}
}
