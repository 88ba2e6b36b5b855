package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/repo"
	"github.com/google/uuid"
)

// ProjectStore keeps project records in process memory. It backs the stub
// driver in development and every driver in tests.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	now      func() time.Time
}

func NewProjectStore(projects ...domain.Project) *ProjectStore {
	s := &ProjectStore{
		projects: make(map[string]domain.Project, len(projects)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, p := range projects {
		s.projects[p.ID] = p.Clone()
	}
	return s
}

// Create inserts a new project, assigning an id when none is set.
func (s *ProjectStore) Create(ctx context.Context, project domain.Project) (domain.Project, error) {
	if strings.TrimSpace(project.ID) == "" {
		project.ID = uuid.NewString()
	}
	if err := project.Validate(); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; ok {
		return domain.Project{}, fmt.Errorf("project %s: %w", project.ID, repo.ErrAlreadyExists)
	}
	now := s.now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.Settings == nil {
		project.Settings = domain.Metadata{}
	}
	s.projects[project.ID] = project.Clone()
	return project.Clone(), nil
}

func (s *ProjectStore) FindAll(ctx context.Context) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProjectStore) Get(ctx context.Context, id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[strings.TrimSpace(id)]
	if !ok {
		return domain.Project{}, repo.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *ProjectStore) UpdateSetting(ctx context.Context, id string, key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key is required")
	}
	return s.UpdateSettings(ctx, id, map[string]any{key: value})
}

func (s *ProjectStore) UpdateSettings(ctx context.Context, id string, settings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[strings.TrimSpace(id)]
	if !ok {
		return repo.ErrNotFound
	}
	merged := p.Settings.Clone()
	for k, v := range settings {
		merged[k] = v
	}
	p.Settings = merged
	p.UpdatedAt = s.now()
	s.projects[p.ID] = p
	return nil
}

// Save writes the mutable fields of an existing project.
func (s *ProjectStore) Save(ctx context.Context, project domain.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return repo.ErrNotFound
	}
	existing.Name = project.Name
	existing.Type = project.Type
	existing.TeamID = project.TeamID
	existing.URL = project.URL
	if project.Settings != nil {
		existing.Settings = project.Settings.Clone()
	}
	existing.UpdatedAt = s.now()
	s.projects[project.ID] = existing
	return nil
}
