// Package docker runs each project as a container managed through the docker
// CLI on the local host.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/keylock"
)

const (
	defaultBin       = "docker"
	defaultImage     = "nodered/node-red:latest"
	defaultPortBase  = 12080
	defaultOpTimeout = 2 * time.Minute
	defaultLogTail   = 200
	containerPort    = 1880
	inspectLimit     = 8
)

type config struct {
	domain    string
	bin       string
	image     string
	network   string
	portBase  int
	opTimeout time.Duration
	logTail   int
}

func parseConfig(opts containers.Options) (config, error) {
	cfg := config{
		domain:  opts.String("domain", ""),
		bin:     opts.String("docker_bin", defaultBin),
		image:   opts.String("image", defaultImage),
		network: opts.String("network", ""),
	}
	var err error
	if cfg.portBase, err = opts.Int("port_base", defaultPortBase); err != nil {
		return config{}, err
	}
	if cfg.portBase <= 0 || cfg.portBase > 65535 {
		return config{}, fmt.Errorf("port_base %d out of range", cfg.portBase)
	}
	if cfg.opTimeout, err = opts.Duration("op_timeout", defaultOpTimeout); err != nil {
		return config{}, err
	}
	if cfg.logTail, err = opts.Int("log_tail", defaultLogTail); err != nil {
		return config{}, err
	}
	if cfg.logTail <= 0 {
		cfg.logTail = defaultLogTail
	}
	return cfg, nil
}

type Driver struct {
	store  containers.RecordStore
	issuer containers.CredentialIssuer
	logger *slog.Logger
	locks  *keylock.Set
	run    Runner

	mu          sync.RWMutex
	cfg         config
	instances   map[string]domain.Instance
	nextPort    int
	initialized bool
	shutdown    bool
}

type Option func(*Driver)

// WithRunner replaces the docker CLI runner.
func WithRunner(r Runner) Option {
	return func(d *Driver) {
		d.run = r
	}
}

func New(store containers.RecordStore, issuer containers.CredentialIssuer, logger *slog.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Driver{
		store:     store,
		issuer:    issuer,
		logger:    logger,
		locks:     keylock.New(),
		instances: map[string]domain.Instance{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Kind() containers.Kind {
	return containers.KindDocker
}

func initErr(err error) error {
	return containers.NewError(containers.KindInitialization, "init", "", err)
}

// Init loads every persisted project and asks docker for the real state of
// its container.
func (d *Driver) Init(ctx context.Context, opts containers.Options) (containers.Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil, initErr(errors.New("driver already initialized"))
	}
	if d.store == nil || d.issuer == nil {
		return nil, initErr(errors.New("record store and credential issuer are required"))
	}
	cfg, err := parseConfig(opts)
	if err != nil {
		return nil, initErr(err)
	}
	if d.run == nil {
		if _, err := exec.LookPath(cfg.bin); err != nil {
			return nil, initErr(fmt.Errorf("docker binary not found: %w", err))
		}
		d.run = execRunner{}
	}
	d.cfg = cfg

	projects, err := d.store.FindAll(ctx)
	if err != nil {
		return nil, initErr(fmt.Errorf("load projects: %w", err))
	}

	states := make([]domain.State, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inspectLimit)
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			state, err := d.inspect(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", p.ID, err)
			}
			states[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, initErr(err)
	}

	d.nextPort = cfg.portBase
	for i, p := range projects {
		port := settingPort(p.Settings)
		if port >= d.nextPort {
			d.nextPort = port + 1
		}
		d.instances[p.ID] = domain.Instance{
			ID:    p.ID,
			State: states[i],
			URL:   p.URL,
			Meta:  domain.Metadata{"container": containerName(p.ID), "port": port},
		}
	}
	d.initialized = true
	d.logger.InfoContext(ctx, "docker driver initialized", "instances", len(projects), "next_port", d.nextPort)
	return containers.DefaultCapabilities(), nil
}

func (d *Driver) inspect(ctx context.Context, id string) (domain.State, error) {
	out, err := d.run.Run(ctx, d.cfg.bin, "inspect", "--format", "{{json .State}}", containerName(id))
	if err != nil {
		if isNoSuchContainer(out) {
			return domain.StateUnknown, nil
		}
		return "", fmt.Errorf("docker inspect failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	state, err := parseInspectState(out)
	if err != nil {
		return "", err
	}
	return instanceState(state.Status), nil
}

func (d *Driver) ready(op string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shutdown {
		return containers.NewError(containers.KindShutdown, op, "", nil)
	}
	if !d.initialized {
		return containers.NewError(containers.KindInitialization, op, "", errors.New("driver not initialized"))
	}
	return nil
}

func (d *Driver) lookup(id string) (domain.Instance, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	inst, ok := d.instances[id]
	return inst, ok
}

func (d *Driver) allocatePort() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	port := d.nextPort
	d.nextPort++
	return port
}

func (d *Driver) Create(ctx context.Context, project domain.Project, opts map[string]any) (domain.Instance, error) {
	if err := d.ready("create"); err != nil {
		return domain.Instance{}, err
	}
	if err := project.Validate(); err != nil {
		return domain.Instance{}, fmt.Errorf("create: %w", err)
	}
	unlock := d.locks.Lock(project.ID)
	defer unlock()

	if _, exists := d.lookup(project.ID); exists {
		return domain.Instance{}, containers.NewError(containers.KindConflict, "create", project.ID, nil)
	}
	fail := func(err error) (domain.Instance, error) {
		return domain.Instance{}, containers.NewError(containers.KindBackend, "create", project.ID, err)
	}

	project = project.Clone()
	port := d.allocatePort()
	name := containerName(project.ID)
	settings := map[string]any{"driver": string(containers.KindDocker), "port": port, "container": name}
	if err := containers.PersistSettings(ctx, d.store, &project, settings); err != nil {
		return fail(err)
	}
	creds, err := d.issuer.RefreshAuthTokens(ctx, project.ID)
	if err != nil {
		return fail(fmt.Errorf("issue credentials: %w", err))
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	if d.cfg.domain != "" {
		url = containers.ProjectURL(project.Name, d.cfg.domain)
	}
	inst := domain.Instance{
		ID:          project.ID,
		State:       domain.StateRunning,
		URL:         url,
		Options:     cloneOptions(opts),
		Meta:        domain.Metadata{"container": name, "port": port},
		Credentials: &creds,
	}

	runCtx, cancel := containers.Detach(ctx, d.cfg.opTimeout)
	defer cancel()
	if out, err := d.run.Run(runCtx, d.cfg.bin, d.runArgs(inst, opts)...); err != nil {
		runErr := fmt.Errorf("docker run failed: %w: %s", err, strings.TrimSpace(string(out)))
		return fail(errors.Join(runErr, d.cleanup(runCtx, project.ID)))
	}
	if err := containers.PersistURL(ctx, d.store, &project, url); err != nil {
		return fail(errors.Join(err, d.cleanup(runCtx, project.ID)))
	}

	d.mu.Lock()
	d.instances[project.ID] = inst
	d.mu.Unlock()
	return inst.Clone(), nil
}

func (d *Driver) runArgs(inst domain.Instance, opts map[string]any) []string {
	port := inst.Meta["port"].(int)
	args := []string{
		"run",
		"--detach",
		"--name", containerName(inst.ID),
		"--label", "forge.project_id=" + inst.ID,
		"--publish", fmt.Sprintf("%d:%d", port, containerPort),
	}
	if d.cfg.network != "" {
		args = append(args, "--network", d.cfg.network)
	}
	env := containers.BaseEnv(inst)
	args = append(args,
		"-e", "FORGE_PROJECT_ID="+env["FORGE_PROJECT_ID"],
		"-e", "FORGE_PROJECT_URL="+env["FORGE_PROJECT_URL"],
		"-e", "FORGE_PORT="+strconv.Itoa(containerPort),
	)
	if inst.Credentials != nil {
		args = append(args,
			"-e", "FORGE_CLIENT_ID="+inst.Credentials.ClientID,
			"-e", "FORGE_CLIENT_SECRET="+inst.Credentials.ClientSecret,
		)
	}
	for _, kv := range extraEnv(opts) {
		args = append(args, "-e", kv)
	}
	args = append(args, resourceArgs(opts)...)

	image := d.cfg.image
	if override, ok := opts["image"].(string); ok && strings.TrimSpace(override) != "" {
		image = strings.TrimSpace(override)
	}
	return append(args, image)
}

// cleanup removes a half-created container and revokes the pair issued for
// it.
func (d *Driver) cleanup(ctx context.Context, id string) error {
	var errs []error
	if out, err := d.run.Run(ctx, d.cfg.bin, "rm", "-f", containerName(id)); err != nil && !isNoSuchContainer(out) {
		errs = append(errs, fmt.Errorf("docker rm failed: %w: %s", err, strings.TrimSpace(string(out))))
	}
	if err := d.issuer.Revoke(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("revoke credentials: %w", err))
	}
	return errors.Join(errs...)
}

func (d *Driver) Remove(ctx context.Context, id string) (containers.Status, error) {
	if err := d.ready("remove"); err != nil {
		return containers.Status{}, err
	}
	unlock := d.locks.Lock(id)
	defer unlock()

	if _, ok := d.lookup(id); !ok {
		return containers.Status{}, containers.NewError(containers.KindNotFound, "remove", id, nil)
	}
	runCtx, cancel := containers.Detach(ctx, d.cfg.opTimeout)
	defer cancel()
	if err := d.cleanup(runCtx, id); err != nil {
		return containers.Status{}, containers.NewError(containers.KindBackend, "remove", id, err)
	}

	d.mu.Lock()
	delete(d.instances, id)
	d.mu.Unlock()
	return containers.Okay(), nil
}

func (d *Driver) Details(ctx context.Context, id string) (domain.Instance, bool, error) {
	inst, ok := d.lookup(id)
	if !ok {
		return domain.Instance{}, false, nil
	}
	return inst.Clone(), true, nil
}

func (d *Driver) Settings(ctx context.Context, id string) (containers.Settings, error) {
	inst, ok := d.lookup(id)
	if !ok {
		return containers.Settings{}, containers.NewError(containers.KindNotFound, "settings", id, nil)
	}
	env := containers.BaseEnv(inst)
	env["FORGE_PORT"] = strconv.Itoa(containerPort)
	return containers.Settings{Env: env}, nil
}

func (d *Driver) List(ctx context.Context, filter containers.Filter) (map[string]domain.Instance, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]domain.Instance, len(d.instances))
	for id, inst := range d.instances {
		if filter.Match(inst) {
			out[id] = inst.Clone()
		}
	}
	return out, nil
}

func (d *Driver) Start(ctx context.Context, id string) containers.Status {
	if err := d.ready("start"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.transition(ctx, id, "start", domain.StateRunning)
}

func (d *Driver) Stop(ctx context.Context, id string) containers.Status {
	if err := d.ready("stop"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.transition(ctx, id, "stop", domain.StateStopped)
}

func (d *Driver) Restart(ctx context.Context, id string) containers.Status {
	if err := d.ready("restart"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return containers.Restart(
		func() containers.Status { return d.transition(ctx, id, "stop", domain.StateStopped) },
		func() containers.Status { return d.transition(ctx, id, "start", domain.StateRunning) },
	)
}

// transition runs `docker <verb>` and records the new state. It must be
// called with the id's lock held. An instance already in the target state
// is left alone.
func (d *Driver) transition(ctx context.Context, id, verb string, to domain.State) containers.Status {
	inst, ok := d.lookup(id)
	if !ok {
		return containers.NotFoundStatus()
	}
	if inst.State == to {
		return containers.Okay()
	}
	if !domain.CanTransition(inst.State, to) {
		return containers.Failed(containers.KindBackend, "cannot move instance from %s to %s", inst.State, to)
	}

	runCtx, cancel := containers.Detach(ctx, d.cfg.opTimeout)
	defer cancel()
	out, err := d.run.Run(runCtx, d.cfg.bin, verb, containerName(id))
	if err != nil {
		if isNoSuchContainer(out) {
			d.setState(id, domain.StateUnknown)
			return containers.Failed(containers.KindBackend, "container %s is missing", containerName(id))
		}
		return containers.Failed(containers.KindBackend, "docker %s failed: %v: %s", verb, err, strings.TrimSpace(string(out)))
	}
	d.setState(id, to)
	return containers.Okay()
}

func (d *Driver) setState(id string, state domain.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if inst, ok := d.instances[id]; ok {
		inst.State = state
		d.instances[id] = inst
	}
}

func (d *Driver) Logs(ctx context.Context, id string) ([]containers.LogLine, error) {
	if _, ok := d.lookup(id); !ok {
		return nil, containers.NewError(containers.KindNotFound, "logs", id, nil)
	}
	out, err := d.run.Run(ctx, d.cfg.bin, "logs", "--timestamps", "--tail", strconv.Itoa(d.cfg.logTail), containerName(id))
	if err != nil {
		if isNoSuchContainer(out) {
			return []containers.LogLine{}, nil
		}
		return nil, containers.NewError(containers.KindBackend, "logs", id, fmt.Errorf("docker logs failed: %w: %s", err, strings.TrimSpace(string(out))))
	}
	lines, err := containers.ParseLogLines(bytes.NewReader(out), "docker")
	if err != nil {
		return nil, containers.NewError(containers.KindBackend, "logs", id, fmt.Errorf("read docker logs: %w", err))
	}
	return lines, nil
}

// Shutdown stops accepting operations. Containers keep running; they are
// owned by the docker daemon, not by this process.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = true
	return nil
}

func cloneOptions(opts map[string]any) map[string]any {
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
