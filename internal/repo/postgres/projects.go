package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
)

const (
	selectProjectsQuery = `SELECT project_id, name, type, team_id, url, settings, created_at, updated_at
		 FROM projects
		 ORDER BY created_at ASC`

	selectProjectByIDQuery = `SELECT project_id, name, type, team_id, url, settings, created_at, updated_at
		 FROM projects
		 WHERE project_id = $1`

	mergeProjectSettingsQuery = `UPDATE projects
		 SET settings = COALESCE(settings, '{}'::jsonb) || $2::jsonb,
		     updated_at = $3
		 WHERE project_id = $1`

	saveProjectQuery = `UPDATE projects
		 SET name = $2,
		     type = $3,
		     team_id = $4,
		     url = $5,
		     settings = $6::jsonb,
		     updated_at = $7
		 WHERE project_id = $1`
)

// ProjectStore reads and writes the projects table. Rows are created by the
// platform; drivers only merge settings and save URL changes.
type ProjectStore struct {
	db DB
}

func NewProjectStore(db DB) *ProjectStore {
	if db == nil {
		return nil
	}
	return &ProjectStore{db: db}
}

func (s *ProjectStore) FindAll(ctx context.Context) ([]domain.Project, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("project store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, selectProjectsQuery)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var (
			p            domain.Project
			settingsJSON []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.TeamID, &p.URL, &settingsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		settings, err := decodeSettings(settingsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
		p.Settings = settings
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectStore) Get(ctx context.Context, id string) (domain.Project, error) {
	if s == nil || s.db == nil {
		return domain.Project{}, fmt.Errorf("project store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Project{}, fmt.Errorf("project id is required")
	}
	var (
		p            domain.Project
		settingsJSON []byte
	)
	row := s.db.QueryRowContext(ctx, selectProjectByIDQuery, id)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.TeamID, &p.URL, &settingsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Project{}, handleNotFound(err)
	}
	settings, err := decodeSettings(settingsJSON)
	if err != nil {
		return domain.Project{}, fmt.Errorf("decode settings: %w", err)
	}
	p.Settings = settings
	return p, nil
}

func (s *ProjectStore) UpdateSetting(ctx context.Context, id string, key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key is required")
	}
	return s.UpdateSettings(ctx, id, map[string]any{key: value})
}

func (s *ProjectStore) UpdateSettings(ctx context.Context, id string, settings map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("project store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("project id is required")
	}
	settingsJSON, err := encodeSettings(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, mergeProjectSettingsQuery, id, settingsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update project settings: %w", err)
	}
	return requireAffected(res)
}

func (s *ProjectStore) Save(ctx context.Context, project domain.Project) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("project store not initialized")
	}
	if err := project.Validate(); err != nil {
		return err
	}
	settingsJSON, err := encodeSettings(project.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		saveProjectQuery,
		strings.TrimSpace(project.ID),
		strings.TrimSpace(project.Name),
		strings.TrimSpace(project.Type),
		strings.TrimSpace(project.TeamID),
		strings.TrimSpace(project.URL),
		settingsJSON,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return requireAffected(res)
}
