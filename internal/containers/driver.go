package containers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
)

// Kind names a concrete driver implementation.
type Kind string

const (
	KindStub       Kind = "stub"
	KindDocker     Kind = "docker"
	KindKubernetes Kind = "kubernetes"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindStub:
		return KindStub, nil
	case KindDocker:
		return KindDocker, nil
	case KindKubernetes, "k8s":
		return KindKubernetes, nil
	default:
		return "", fmt.Errorf("unsupported driver kind %q", raw)
	}
}

// Driver is the lifecycle contract implemented by every backend. Init must be
// called once before any other operation. Implementations serialize
// operations on the same instance id.
type Driver interface {
	Kind() Kind
	Init(ctx context.Context, opts Options) (Capabilities, error)
	Create(ctx context.Context, project domain.Project, opts map[string]any) (domain.Instance, error)
	Remove(ctx context.Context, id string) (Status, error)
	Details(ctx context.Context, id string) (domain.Instance, bool, error)
	Settings(ctx context.Context, id string) (Settings, error)
	List(ctx context.Context, filter Filter) (map[string]domain.Instance, error)
	Start(ctx context.Context, id string) Status
	Stop(ctx context.Context, id string) Status
	Restart(ctx context.Context, id string) Status
	Logs(ctx context.Context, id string) ([]LogLine, error)
	Shutdown(ctx context.Context) error
}

// RecordStore is the subset of the project record store a driver uses.
type RecordStore interface {
	FindAll(ctx context.Context) ([]domain.Project, error)
	UpdateSetting(ctx context.Context, id string, key string, value any) error
	UpdateSettings(ctx context.Context, id string, settings map[string]any) error
	Save(ctx context.Context, project domain.Project) error
}

// CredentialIssuer issues the single active credential pair of a project.
type CredentialIssuer interface {
	RefreshAuthTokens(ctx context.Context, projectID string) (domain.Credentials, error)
	Revoke(ctx context.Context, projectID string) error
}

// Filter narrows List. The zero value matches every instance.
type Filter struct {
	State domain.State
}

func (f Filter) Match(inst domain.Instance) bool {
	if f.State != "" && inst.State != f.State {
		return false
	}
	return true
}

// Settings is the launch/reconfigure payload for a running instance.
type Settings struct {
	Env map[string]string `json:"env"`
}

type LogLine struct {
	Timestamp time.Time `json:"ts"`
	Source    string    `json:"src,omitempty"`
	Message   string    `json:"msg"`
}

// BaseEnv is the environment every non-stub driver hands to an instance.
// Secrets are never part of it.
func BaseEnv(inst domain.Instance) map[string]string {
	return map[string]string{
		"FORGE_PROJECT_ID":  inst.ID,
		"FORGE_PROJECT_URL": inst.URL,
	}
}

// ProjectURL builds the externally reachable address of a project under the
// configured base domain, or under localhost when no domain is set.
func ProjectURL(name, domainName string) string {
	domainName = strings.TrimSpace(domainName)
	if domainName == "" {
		domainName = "localhost"
	}
	return fmt.Sprintf("http://%s.%s", strings.TrimSpace(name), domainName)
}

// Restart stops and then starts, but only when stop succeeded. A failed stop
// status is returned unchanged and start is never attempted.
func Restart(stop, start func() Status) Status {
	rep := stop()
	if !rep.OK() {
		return rep
	}
	return start()
}

// Detach returns a context that is not cancelled with ctx, bounded by
// timeout. Backend transitions run on it so that, once begun, they complete.
func Detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}
