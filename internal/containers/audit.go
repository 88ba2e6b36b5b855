package containers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/auditlog"
	"github.com/flowforge/forge-go/internal/platform/requestid"
)

// EventRecorder persists lifecycle audit events.
type EventRecorder interface {
	Record(ctx context.Context, event auditlog.Event) error
}

type auditDriver struct {
	Driver
	recorder EventRecorder
	actor    string
	now      func() time.Time
}

// WithAudit records every mutating operation before it reaches d. When the
// event cannot be written the operation is not attempted and the failure is
// returned to the caller.
func WithAudit(d Driver, recorder EventRecorder, actor string) Driver {
	if recorder == nil {
		return d
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "forge-containers"
	}
	return &auditDriver{
		Driver:   d,
		recorder: recorder,
		actor:    actor,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *auditDriver) record(ctx context.Context, op, id string, payload map[string]any) (context.Context, error) {
	ctx, opID := requestid.Ensure(ctx)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["driver"] = string(a.Kind())
	err := a.recorder.Record(ctx, auditlog.Event{
		OccurredAt:   a.now(),
		Actor:        a.actor,
		Action:       "container." + op,
		ResourceType: "project",
		ResourceID:   id,
		RequestID:    opID,
		Payload:      payload,
	})
	if err != nil {
		return ctx, fmt.Errorf("audit %s: %w", op, err)
	}
	return ctx, nil
}

func (a *auditDriver) Create(ctx context.Context, project domain.Project, opts map[string]any) (domain.Instance, error) {
	ctx, err := a.record(ctx, "create", project.ID, map[string]any{"name": project.Name})
	if err != nil {
		return domain.Instance{}, err
	}
	return a.Driver.Create(ctx, project, opts)
}

func (a *auditDriver) Remove(ctx context.Context, id string) (Status, error) {
	ctx, err := a.record(ctx, "remove", id, nil)
	if err != nil {
		return Status{}, err
	}
	return a.Driver.Remove(ctx, id)
}

func (a *auditDriver) Start(ctx context.Context, id string) Status {
	ctx, err := a.record(ctx, "start", id, nil)
	if err != nil {
		return FailedErr(KindBackend, err)
	}
	return a.Driver.Start(ctx, id)
}

func (a *auditDriver) Stop(ctx context.Context, id string) Status {
	ctx, err := a.record(ctx, "stop", id, nil)
	if err != nil {
		return FailedErr(KindBackend, err)
	}
	return a.Driver.Stop(ctx, id)
}

func (a *auditDriver) Restart(ctx context.Context, id string) Status {
	ctx, err := a.record(ctx, "restart", id, nil)
	if err != nil {
		return FailedErr(KindBackend, err)
	}
	return a.Driver.Restart(ctx, id)
}
