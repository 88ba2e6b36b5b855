package containers

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/requestid"
)

type loggingDriver struct {
	Driver
	logger *slog.Logger
}

// WithLogging logs every operation on d with its outcome and duration. It
// never alters results.
func WithLogging(d Driver, logger *slog.Logger) Driver {
	if logger == nil {
		return d
	}
	return &loggingDriver{Driver: d, logger: logger.With("driver", string(d.Kind()))}
}

func (l *loggingDriver) begin(ctx context.Context) (context.Context, string, time.Time) {
	ctx, opID := requestid.Ensure(ctx)
	return ctx, opID, time.Now()
}

func (l *loggingDriver) logErr(ctx context.Context, op, id, opID string, started time.Time, err error) {
	attrs := []any{"op", op, "op_id", opID, "duration", time.Since(started)}
	if id != "" {
		attrs = append(attrs, "project_id", id)
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "driver operation failed", append(attrs, "kind", KindOf(err).String(), "error", err)...)
		return
	}
	l.logger.InfoContext(ctx, "driver operation", attrs...)
}

func (l *loggingDriver) logStatus(ctx context.Context, op, id, opID string, started time.Time, st Status) {
	attrs := []any{"op", op, "op_id", opID, "project_id", id, "duration", time.Since(started)}
	if !st.OK() {
		l.logger.WarnContext(ctx, "driver transition reported error", append(attrs, "kind", st.Kind.String(), "status_error", st.Error)...)
		return
	}
	l.logger.InfoContext(ctx, "driver transition", append(attrs, "status", st.Status)...)
}

func (l *loggingDriver) Init(ctx context.Context, opts Options) (Capabilities, error) {
	ctx, opID, started := l.begin(ctx)
	caps, err := l.Driver.Init(ctx, opts)
	l.logErr(ctx, "init", "", opID, started, err)
	return caps, err
}

func (l *loggingDriver) Create(ctx context.Context, project domain.Project, opts map[string]any) (domain.Instance, error) {
	ctx, opID, started := l.begin(ctx)
	l.logger.InfoContext(ctx, "creating", "op_id", opID, "project_id", project.ID, "name", project.Name)
	inst, err := l.Driver.Create(ctx, project, opts)
	l.logErr(ctx, "create", project.ID, opID, started, err)
	return inst, err
}

func (l *loggingDriver) Remove(ctx context.Context, id string) (Status, error) {
	ctx, opID, started := l.begin(ctx)
	l.logger.InfoContext(ctx, "removing", "op_id", opID, "project_id", id)
	st, err := l.Driver.Remove(ctx, id)
	l.logErr(ctx, "remove", id, opID, started, err)
	return st, err
}

func (l *loggingDriver) Details(ctx context.Context, id string) (domain.Instance, bool, error) {
	inst, ok, err := l.Driver.Details(ctx, id)
	if err != nil {
		l.logger.ErrorContext(ctx, "driver operation failed", "op", "details", "project_id", id, "error", err)
	} else {
		l.logger.DebugContext(ctx, "driver operation", "op", "details", "project_id", id, "found", ok)
	}
	return inst, ok, err
}

func (l *loggingDriver) Settings(ctx context.Context, id string) (Settings, error) {
	settings, err := l.Driver.Settings(ctx, id)
	if err != nil {
		l.logger.ErrorContext(ctx, "driver operation failed", "op", "settings", "project_id", id, "error", err)
	}
	return settings, err
}

func (l *loggingDriver) List(ctx context.Context, filter Filter) (map[string]domain.Instance, error) {
	out, err := l.Driver.List(ctx, filter)
	if err != nil {
		l.logger.ErrorContext(ctx, "driver operation failed", "op", "list", "error", err)
	} else {
		l.logger.DebugContext(ctx, "driver operation", "op", "list", "count", len(out))
	}
	return out, err
}

func (l *loggingDriver) Start(ctx context.Context, id string) Status {
	ctx, opID, started := l.begin(ctx)
	st := l.Driver.Start(ctx, id)
	l.logStatus(ctx, "start", id, opID, started, st)
	return st
}

func (l *loggingDriver) Stop(ctx context.Context, id string) Status {
	ctx, opID, started := l.begin(ctx)
	st := l.Driver.Stop(ctx, id)
	l.logStatus(ctx, "stop", id, opID, started, st)
	return st
}

func (l *loggingDriver) Restart(ctx context.Context, id string) Status {
	ctx, opID, started := l.begin(ctx)
	st := l.Driver.Restart(ctx, id)
	l.logStatus(ctx, "restart", id, opID, started, st)
	return st
}

func (l *loggingDriver) Logs(ctx context.Context, id string) ([]LogLine, error) {
	lines, err := l.Driver.Logs(ctx, id)
	if err != nil {
		l.logger.ErrorContext(ctx, "driver operation failed", "op", "logs", "project_id", id, "error", err)
	}
	return lines, err
}

func (l *loggingDriver) Shutdown(ctx context.Context) error {
	ctx, opID, started := l.begin(ctx)
	err := l.Driver.Shutdown(ctx)
	l.logErr(ctx, "shutdown", "", opID, started, err)
	return err
}
