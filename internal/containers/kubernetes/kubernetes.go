// Package kubernetes runs each project as a Deployment, Service and
// credentials Secret in one namespace. Stop scales the deployment to zero.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	typedappsv1 "k8s.io/client-go/kubernetes/typed/apps/v1"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/k8s"
	"github.com/flowforge/forge-go/internal/platform/keylock"
)

const (
	defaultImage     = "nodered/node-red:latest"
	defaultOpTimeout = 2 * time.Minute
	defaultLogTail   = 200
	getLimit         = 8
)

type config struct {
	domain    string
	namespace string
	image     string
	opTimeout time.Duration
	logTail   int64
}

type Driver struct {
	store  containers.RecordStore
	issuer containers.CredentialIssuer
	logger *slog.Logger
	locks  *keylock.Set
	client *k8s.Client

	mu          sync.RWMutex
	cfg         config
	instances   map[string]domain.Instance
	initialized bool
	shutdown    bool
}

type Option func(*Driver)

// WithClient uses c instead of building a clientset from options.
func WithClient(c *k8s.Client) Option {
	return func(d *Driver) {
		d.client = c
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
	return containers.KindKubernetes
}

func initErr(err error) error {
	return containers.NewError(containers.KindInitialization, "init", "", err)
}

func (d *Driver) Init(ctx context.Context, opts containers.Options) (containers.Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil, initErr(errors.New("driver already initialized"))
	}
	if d.store == nil || d.issuer == nil {
		return nil, initErr(errors.New("record store and credential issuer are required"))
	}
	if d.client == nil {
		client, err := k8s.NewClient(k8s.Config{
			Kubeconfig: opts.String("kubeconfig", ""),
			Namespace:  opts.String("namespace", ""),
		})
		if err != nil {
			return nil, initErr(err)
		}
		d.client = client
	}

	cfg := config{
		domain:    opts.String("domain", ""),
		namespace: opts.String("namespace", d.client.Namespace()),
		image:     opts.String("image", defaultImage),
	}
	var err error
	if cfg.opTimeout, err = opts.Duration("op_timeout", defaultOpTimeout); err != nil {
		return nil, initErr(err)
	}
	tail, err := opts.Int("log_tail", defaultLogTail)
	if err != nil {
		return nil, initErr(err)
	}
	if tail <= 0 {
		tail = defaultLogTail
	}
	cfg.logTail = int64(tail)
	d.cfg = cfg

	projects, err := d.store.FindAll(ctx)
	if err != nil {
		return nil, initErr(fmt.Errorf("load projects: %w", err))
	}

	states := make([]domain.State, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(getLimit)
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			dep, err := d.deployments().Get(gctx, resourceName(p.ID), metav1.GetOptions{})
			if err != nil {
				if errors.Is(k8s.Classify(err), k8s.ErrNotFound) {
					states[i] = domain.StateUnknown
					return nil
				}
				return fmt.Errorf("get deployment for %s: %w", p.ID, k8s.Classify(err))
			}
			states[i] = deploymentState(dep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, initErr(err)
	}

	for i, p := range projects {
		d.instances[p.ID] = domain.Instance{
			ID:    p.ID,
			State: states[i],
			URL:   p.URL,
			Meta:  domain.Metadata{"namespace": cfg.namespace, "deployment": resourceName(p.ID)},
		}
	}
	d.initialized = true
	d.logger.InfoContext(ctx, "kubernetes driver initialized", "instances", len(projects), "namespace", cfg.namespace)
	return containers.DefaultCapabilities(), nil
}

func (d *Driver) deployments() typedappsv1.DeploymentInterface {
	return d.client.Clientset.AppsV1().Deployments(d.cfg.namespace)
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

func (d *Driver) setState(id string, state domain.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if inst, ok := d.instances[id]; ok {
		inst.State = state
		d.instances[id] = inst
	}
}

func (d *Driver) url(project domain.Project) string {
	if d.cfg.domain != "" {
		return containers.ProjectURL(project.Name, d.cfg.domain)
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local", resourceName(project.ID), d.cfg.namespace)
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
	settings := map[string]any{
		"driver":     string(containers.KindKubernetes),
		"namespace":  d.cfg.namespace,
		"deployment": resourceName(project.ID),
	}
	if err := containers.PersistSettings(ctx, d.store, &project, settings); err != nil {
		return fail(err)
	}
	creds, err := d.issuer.RefreshAuthTokens(ctx, project.ID)
	if err != nil {
		return fail(fmt.Errorf("issue credentials: %w", err))
	}

	inst := domain.Instance{
		ID:          project.ID,
		State:       domain.StateRunning,
		URL:         d.url(project),
		Options:     cloneOptions(opts),
		Meta:        domain.Metadata{"namespace": d.cfg.namespace, "deployment": resourceName(project.ID)},
		Credentials: &creds,
	}
	dep, err := deployment(inst, d.cfg.namespace, d.cfg.image, 1, opts)
	if err != nil {
		return fail(errors.Join(err, d.cleanup(ctx, project.ID)))
	}

	runCtx, cancel := containers.Detach(ctx, d.cfg.opTimeout)
	defer cancel()
	if err := d.apply(runCtx, inst, dep); err != nil {
		return fail(errors.Join(err, d.cleanup(runCtx, project.ID)))
	}
	if err := containers.PersistURL(ctx, d.store, &project, inst.URL); err != nil {
		return fail(errors.Join(err, d.cleanup(runCtx, project.ID)))
	}

	d.mu.Lock()
	d.instances[project.ID] = inst
	d.mu.Unlock()
	return inst.Clone(), nil
}

// apply creates the secret first so the deployment's pods can mount it.
func (d *Driver) apply(ctx context.Context, inst domain.Instance, dep *appsv1.Deployment) error {
	core := d.client.Clientset.CoreV1()
	if _, err := core.Secrets(d.cfg.namespace).Create(ctx, credentialSecret(inst.ID, d.cfg.namespace, *inst.Credentials), metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("create secret: %w", k8s.Classify(err))
	}
	if _, err := d.deployments().Create(ctx, dep, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("create deployment: %w", k8s.Classify(err))
	}
	if _, err := core.Services(d.cfg.namespace).Create(ctx, service(inst.ID, d.cfg.namespace), metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("create service: %w", k8s.Classify(err))
	}
	return nil
}

// cleanup deletes every resource of the project, tolerating ones that never
// existed, and revokes its credentials.
func (d *Driver) cleanup(ctx context.Context, id string) error {
	core := d.client.Clientset.CoreV1()
	name := resourceName(id)
	deletes := []struct {
		kind string
		fn   func() error
	}{
		{"deployment", func() error { return d.deployments().Delete(ctx, name, metav1.DeleteOptions{}) }},
		{"service", func() error { return core.Services(d.cfg.namespace).Delete(ctx, name, metav1.DeleteOptions{}) }},
		{"secret", func() error { return core.Secrets(d.cfg.namespace).Delete(ctx, secretName(id), metav1.DeleteOptions{}) }},
	}
	var errs []error
	for _, del := range deletes {
		if err := k8s.Classify(del.fn()); err != nil && !errors.Is(err, k8s.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", del.kind, err))
		}
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
	env := make(map[string]string)
	for _, v := range containerEnv(inst, nil) {
		env[v.Name] = v.Value
	}
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
	return d.scale(ctx, id, 1, domain.StateRunning)
}

func (d *Driver) Stop(ctx context.Context, id string) containers.Status {
	if err := d.ready("stop"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.scale(ctx, id, 0, domain.StateStopped)
}

func (d *Driver) Restart(ctx context.Context, id string) containers.Status {
	if err := d.ready("restart"); err != nil {
		return containers.FailedErr(containers.KindInitialization, err)
	}
	unlock := d.locks.Lock(id)
	defer unlock()
	return containers.Restart(
		func() containers.Status { return d.scale(ctx, id, 0, domain.StateStopped) },
		func() containers.Status { return d.scale(ctx, id, 1, domain.StateRunning) },
	)
}

// scale sets the deployment's replica count. It must be called with the
// id's lock held.
func (d *Driver) scale(ctx context.Context, id string, replicas int32, to domain.State) containers.Status {
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
	dep, err := d.deployments().Get(runCtx, resourceName(id), metav1.GetOptions{})
	if err != nil {
		err = k8s.Classify(err)
		if errors.Is(err, k8s.ErrNotFound) {
			d.setState(id, domain.StateUnknown)
			return containers.Failed(containers.KindBackend, "deployment %s is missing", resourceName(id))
		}
		return containers.FailedErr(containers.KindBackend, fmt.Errorf("get deployment: %w", err))
	}
	dep.Spec.Replicas = &replicas
	if _, err := d.deployments().Update(runCtx, dep, metav1.UpdateOptions{}); err != nil {
		return containers.FailedErr(containers.KindBackend, fmt.Errorf("scale deployment to %d: %w", replicas, k8s.Classify(err)))
	}
	d.setState(id, to)
	return containers.Okay()
}

// Logs reads the tail of the newest pod's log. A project with no pods, for
// example one scaled to zero, has no logs.
func (d *Driver) Logs(ctx context.Context, id string) ([]containers.LogLine, error) {
	if _, ok := d.lookup(id); !ok {
		return nil, containers.NewError(containers.KindNotFound, "logs", id, nil)
	}
	pods, err := d.client.Clientset.CoreV1().Pods(d.cfg.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector(id)})
	if err != nil {
		return nil, containers.NewError(containers.KindBackend, "logs", id, fmt.Errorf("list pods: %w", k8s.Classify(err)))
	}
	if len(pods.Items) == 0 {
		return []containers.LogLine{}, nil
	}
	newest := pods.Items[0]
	for _, pod := range pods.Items[1:] {
		if pod.CreationTimestamp.After(newest.CreationTimestamp.Time) {
			newest = pod
		}
	}

	tail := d.cfg.logTail
	stream, err := d.client.Clientset.CoreV1().Pods(d.cfg.namespace).GetLogs(newest.Name, &corev1.PodLogOptions{
		Container:  containerName,
		Timestamps: true,
		TailLines:  &tail,
	}).Stream(ctx)
	if err != nil {
		return nil, containers.NewError(containers.KindBackend, "logs", id, fmt.Errorf("stream logs: %w", k8s.Classify(err)))
	}
	defer stream.Close()

	lines, err := containers.ParseLogLines(stream, newest.Name)
	if err != nil {
		return nil, containers.NewError(containers.KindBackend, "logs", id, fmt.Errorf("read logs: %w", err))
	}
	return lines, nil
}

// Shutdown stops accepting operations. Workloads stay in the cluster.
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
