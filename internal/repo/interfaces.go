package repo

import (
	"context"
	"errors"

	"github.com/flowforge/forge-go/internal/domain"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// ProjectStore is the authoritative record store for projects. Drivers treat
// it as read-mostly and write back only URL and driver settings.
type ProjectStore interface {
	FindAll(ctx context.Context) ([]domain.Project, error)
	Get(ctx context.Context, id string) (domain.Project, error)
	UpdateSetting(ctx context.Context, id string, key string, value any) error
	UpdateSettings(ctx context.Context, id string, settings map[string]any) error
	Save(ctx context.Context, project domain.Project) error
}

// AuthClientStore persists credential pairs. ReplaceForOwner must swap the
// owner's pair atomically: a concurrent GetByClientID sees either the old or
// the new client, never a mix.
type AuthClientStore interface {
	ReplaceForOwner(ctx context.Context, client domain.AuthClient) error
	GetByClientID(ctx context.Context, clientID string) (domain.AuthClient, error)
	DeleteForOwner(ctx context.Context, ownerType, ownerID string) error
}
