// Package stub is an in-memory driver. It performs no backend calls: every
// instance lives in the driver's table and transitions succeed immediately.
// It is the reference implementation of the driver contract.
package stub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/keylock"
)

var (
	errNotInitialized     = errors.New("driver not initialized")
	errAlreadyInitialized = errors.New("driver already initialized")
)

type Driver struct {
	store  containers.RecordStore
	issuer containers.CredentialIssuer
	logger *slog.Logger
	locks  *keylock.Set

	mu          sync.RWMutex
	instances   map[string]domain.Instance
	domain      string
	initialized bool
	shutdown    bool
}

func New(store containers.RecordStore, issuer containers.CredentialIssuer, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{
		store:     store,
		issuer:    issuer,
		logger:    logger,
		locks:     keylock.New(),
		instances: map[string]domain.Instance{},
	}
}

func (d *Driver) Kind() containers.Kind {
	return containers.KindStub
}

// Init loads every persisted project as a running instance. The stub has no
// backend to query, so running is assumed.
func (d *Driver) Init(ctx context.Context, opts containers.Options) (containers.Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil, containers.NewError(containers.KindInitialization, "init", "", errAlreadyInitialized)
	}
	if d.store == nil || d.issuer == nil {
		return nil, containers.NewError(containers.KindInitialization, "init", "", errors.New("record store and credential issuer are required"))
	}
	projects, err := d.store.FindAll(ctx)
	if err != nil {
		return nil, containers.NewError(containers.KindInitialization, "init", "", fmt.Errorf("load projects: %w", err))
	}

	d.domain = opts.String("domain", "")
	for _, p := range projects {
		d.instances[p.ID] = domain.Instance{
			ID:    p.ID,
			State: domain.StateRunning,
			URL:   p.URL,
			Meta:  domain.Metadata{"foo": "bar"},
		}
	}
	d.initialized = true
	d.logger.InfoContext(ctx, "stub driver initialized", "instances", len(projects), "domain", d.domain)
	return containers.DefaultCapabilities(), nil
}

func (d *Driver) ready(op string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shutdown {
		return containers.NewError(containers.KindShutdown, op, "", nil)
	}
	if !d.initialized {
		return containers.NewError(containers.KindInitialization, op, "", errNotInitialized)
	}
	return nil
}

func (d *Driver) lookup(id string) (domain.Instance, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	inst, ok := d.instances[id]
	return inst, ok
}

func (d *Driver) put(inst domain.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instances[inst.ID] = inst
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
	d.logger.InfoContext(ctx, "creating", "project_id", project.ID)

	project = project.Clone()
	if err := containers.PersistSettings(ctx, d.store, &project, map[string]any{"driver": string(containers.KindStub)}); err != nil {
		return domain.Instance{}, containers.NewError(containers.KindBackend, "create", project.ID, err)
	}
	creds, err := d.issuer.RefreshAuthTokens(ctx, project.ID)
	if err != nil {
		return domain.Instance{}, containers.NewError(containers.KindBackend, "create", project.ID, fmt.Errorf("issue credentials: %w", err))
	}
	if err := containers.PersistURL(ctx, d.store, &project, containers.ProjectURL(project.Name, d.domain)); err != nil {
		return domain.Instance{}, containers.NewError(containers.KindBackend, "create", project.ID, err)
	}

	options := make(map[string]any, len(opts))
	for k, v := range opts {
		options[k] = v
	}
	inst := domain.Instance{
		ID:          project.ID,
		State:       domain.StateRunning,
		URL:         project.URL,
		Options:     options,
		Meta:        domain.Metadata{"foo": "bar"},
		Credentials: &creds,
	}
	d.put(inst)
	return inst.Clone(), nil
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
	d.logger.InfoContext(ctx, "removing", "project_id", id)
	if err := d.issuer.Revoke(ctx, id); err != nil {
		return containers.Status{}, containers.NewError(containers.KindBackend, "remove", id, fmt.Errorf("revoke credentials: %w", err))
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

// Settings is empty for the stub: nothing is launched that would read it.
func (d *Driver) Settings(ctx context.Context, id string) (containers.Settings, error) {
	if _, ok := d.lookup(id); !ok {
		return containers.Settings{}, containers.NewError(containers.KindNotFound, "settings", id, nil)
	}
	return containers.Settings{Env: map[string]string{}}, nil
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
	return d.transition(id, domain.StateRunning)
}

func (d *Driver) Stop(ctx context.Context, id string) containers.Status {
	if err := d.ready("stop"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.transition(id, domain.StateStopped)
}

func (d *Driver) Restart(ctx context.Context, id string) containers.Status {
	if err := d.ready("restart"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return containers.Restart(
		func() containers.Status { return d.transition(id, domain.StateStopped) },
		func() containers.Status { return d.transition(id, domain.StateRunning) },
	)
}

// transition must be called with the id's lock held.
func (d *Driver) transition(id string, to domain.State) containers.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	inst, ok := d.instances[id]
	if !ok {
		return containers.NotFoundStatus()
	}
	if !domain.CanTransition(inst.State, to) {
		return containers.Failed(containers.KindBackend, "cannot move instance from %s to %s", inst.State, to)
	}
	inst.State = to
	d.instances[id] = inst
	return containers.Okay()
}

// Logs always returns an empty sequence; the stub runs nothing.
func (d *Driver) Logs(ctx context.Context, id string) ([]containers.LogLine, error) {
	return []containers.LogLine{}, nil
}

func (d *Driver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.shutdown {
		d.logger.InfoContext(ctx, "stub driver shut down", "instances", len(d.instances))
	}
	d.shutdown = true
	return nil
}

