package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/repo"
)

type ownerKey struct {
	ownerType string
	ownerID   string
}

// AuthClientStore keeps at most one client per owner. Both indexes are
// updated under one lock so readers never see a half-replaced pair.
type AuthClientStore struct {
	mu       sync.RWMutex
	byClient map[string]domain.AuthClient
	byOwner  map[ownerKey]string
}

func NewAuthClientStore() *AuthClientStore {
	return &AuthClientStore{
		byClient: map[string]domain.AuthClient{},
		byOwner:  map[ownerKey]string{},
	}
}

func (s *AuthClientStore) ReplaceForOwner(ctx context.Context, client domain.AuthClient) error {
	if err := client.Validate(); err != nil {
		return err
	}
	key := ownerKey{ownerType: client.OwnerType, ownerID: client.OwnerID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.byOwner[key]; ok {
		delete(s.byClient, previous)
	}
	s.byClient[client.ClientID] = client
	s.byOwner[key] = client.ClientID
	return nil
}

func (s *AuthClientStore) GetByClientID(ctx context.Context, clientID string) (domain.AuthClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.byClient[strings.TrimSpace(clientID)]
	if !ok {
		return domain.AuthClient{}, repo.ErrNotFound
	}
	return client, nil
}

func (s *AuthClientStore) DeleteForOwner(ctx context.Context, ownerType, ownerID string) error {
	key := ownerKey{ownerType: ownerType, ownerID: ownerID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if clientID, ok := s.byOwner[key]; ok {
		delete(s.byClient, clientID)
		delete(s.byOwner, key)
	}
	return nil
}
