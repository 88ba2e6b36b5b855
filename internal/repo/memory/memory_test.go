package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/repo"
)

func TestProjectStoreCreateAssignsID(t *testing.T) {
	store := NewProjectStore()
	p, err := store.Create(context.Background(), domain.Project{Name: "demo"})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if p.ID == "" {
		t.Fatalf("Create() did not assign an id")
	}
	if _, err := store.Create(context.Background(), p); !errors.Is(err, repo.ErrAlreadyExists) {
		t.Fatalf("Create() duplicate err=%v, want %v", err, repo.ErrAlreadyExists)
	}
}

func TestProjectStoreSettingsMerge(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore(domain.Project{ID: "p1", Name: "demo"})

	if err := store.UpdateSetting(ctx, "p1", "port", 12080); err != nil {
		t.Fatalf("UpdateSetting() err=%v", err)
	}
	if err := store.UpdateSettings(ctx, "p1", map[string]any{"container": "forge-p1"}); err != nil {
		t.Fatalf("UpdateSettings() err=%v", err)
	}
	p, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if p.Settings["port"] != 12080 || p.Settings["container"] != "forge-p1" {
		t.Fatalf("Settings=%v", p.Settings)
	}

	if err := store.UpdateSettings(ctx, "missing", nil); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("UpdateSettings() err=%v, want %v", err, repo.ErrNotFound)
	}
}

func TestProjectStoreSaveWritesURL(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore(domain.Project{ID: "p1", Name: "demo"})

	p, _ := store.Get(ctx, "p1")
	p.URL = "http://demo.example.com"
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() err=%v", err)
	}
	got, _ := store.Get(ctx, "p1")
	if got.URL != "http://demo.example.com" {
		t.Fatalf("URL=%q", got.URL)
	}
	if err := store.Save(ctx, domain.Project{ID: "nope", Name: "x"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Save() err=%v, want %v", err, repo.ErrNotFound)
	}
}

func TestAuthClientStoreReplaceDropsPrevious(t *testing.T) {
	ctx := context.Background()
	store := NewAuthClientStore()

	first := domain.AuthClient{ClientID: "ffp_a", SecretHash: "h1", OwnerType: domain.AuthClientOwnerProject, OwnerID: "p1"}
	second := domain.AuthClient{ClientID: "ffp_b", SecretHash: "h2", OwnerType: domain.AuthClientOwnerProject, OwnerID: "p1"}

	if err := store.ReplaceForOwner(ctx, first); err != nil {
		t.Fatalf("ReplaceForOwner() err=%v", err)
	}
	if err := store.ReplaceForOwner(ctx, second); err != nil {
		t.Fatalf("ReplaceForOwner() err=%v", err)
	}
	if _, err := store.GetByClientID(ctx, "ffp_a"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("GetByClientID(old) err=%v, want %v", err, repo.ErrNotFound)
	}
	got, err := store.GetByClientID(ctx, "ffp_b")
	if err != nil {
		t.Fatalf("GetByClientID(new) err=%v", err)
	}
	if got.SecretHash != "h2" {
		t.Fatalf("SecretHash=%q, want h2", got.SecretHash)
	}

	if err := store.DeleteForOwner(ctx, domain.AuthClientOwnerProject, "p1"); err != nil {
		t.Fatalf("DeleteForOwner() err=%v", err)
	}
	if _, err := store.GetByClientID(ctx, "ffp_b"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("GetByClientID after delete err=%v", err)
	}
}
