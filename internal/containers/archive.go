package containers

import (
	"context"
	"errors"
	"fmt"
)

// LogArchiver stores the final logs of an instance before it is removed.
type LogArchiver interface {
	Archive(ctx context.Context, projectID string, lines []LogLine) error
}

type archiveDriver struct {
	Driver
	archiver LogArchiver
}

// WithLogArchive fetches and archives an instance's logs before removing it.
// If archiving fails the instance is left in place.
func WithLogArchive(d Driver, archiver LogArchiver) Driver {
	if archiver == nil {
		return d
	}
	return &archiveDriver{Driver: d, archiver: archiver}
}

func (a *archiveDriver) Remove(ctx context.Context, id string) (Status, error) {
	lines, err := a.Driver.Logs(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return a.Driver.Remove(ctx, id)
	case err != nil:
		return Status{}, fmt.Errorf("fetch logs before remove: %w", err)
	}
	if len(lines) > 0 {
		if err := a.archiver.Archive(ctx, id, lines); err != nil {
			return Status{}, fmt.Errorf("archive logs before remove: %w", err)
		}
	}
	return a.Driver.Remove(ctx, id)
}
