package containers

import (
	"context"
	"fmt"

	"github.com/flowforge/forge-go/internal/domain"
)

// PersistSettings merges driver settings into the record store and into
// project, so a later Save does not write back stale settings.
func PersistSettings(ctx context.Context, store RecordStore, project *domain.Project, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}
	if err := store.UpdateSettings(ctx, project.ID, settings); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	merged := project.Settings.Clone()
	for k, v := range settings {
		merged[k] = v
	}
	project.Settings = merged
	return nil
}

// PersistURL records the reachable address of project.
func PersistURL(ctx context.Context, store RecordStore, project *domain.Project, url string) error {
	project.URL = url
	if err := store.Save(ctx, *project); err != nil {
		return fmt.Errorf("persist url: %w", err)
	}
	return nil
}
