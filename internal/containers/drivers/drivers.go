// Package drivers selects and assembles the configured driver once at
// startup.
package drivers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/containers/docker"
	"github.com/flowforge/forge-go/internal/containers/kubernetes"
	"github.com/flowforge/forge-go/internal/containers/stub"
	"github.com/flowforge/forge-go/internal/platform/k8s"
)

// Deps are the collaborators every driver needs, plus optional decorators.
type Deps struct {
	Store  containers.RecordStore
	Issuer containers.CredentialIssuer
	Logger *slog.Logger

	// Audit, when set, records every mutating operation.
	Audit      containers.EventRecorder
	AuditActor string
	// Archive, when set, keeps the logs of removed instances.
	Archive containers.LogArchiver

	DockerRunner docker.Runner
	K8sClient    *k8s.Client
}

// New returns the driver for kind wrapped in the configured decorators.
// Logging is outermost so it sees audit and archive failures.
func New(kind containers.Kind, deps Deps) (containers.Driver, error) {
	if deps.Store == nil {
		return nil, errors.New("record store is required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("credential issuer is required")
	}

	var d containers.Driver
	switch kind {
	case containers.KindStub:
		d = stub.New(deps.Store, deps.Issuer, deps.Logger)
	case containers.KindDocker:
		var opts []docker.Option
		if deps.DockerRunner != nil {
			opts = append(opts, docker.WithRunner(deps.DockerRunner))
		}
		d = docker.New(deps.Store, deps.Issuer, deps.Logger, opts...)
	case containers.KindKubernetes:
		var opts []kubernetes.Option
		if deps.K8sClient != nil {
			opts = append(opts, kubernetes.WithClient(deps.K8sClient))
		}
		d = kubernetes.New(deps.Store, deps.Issuer, deps.Logger, opts...)
	default:
		return nil, fmt.Errorf("unsupported driver kind %q", kind)
	}

	if deps.Archive != nil {
		d = containers.WithLogArchive(d, deps.Archive)
	}
	if deps.Audit != nil {
		d = containers.WithAudit(d, deps.Audit, deps.AuditActor)
	}
	if deps.Logger != nil {
		d = containers.WithLogging(d, deps.Logger)
	}
	return d, nil
}
