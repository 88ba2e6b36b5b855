package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowforge/forge-go/internal/domain"
)

// The owner's row is replaced by a single upsert so the swap of client id and
// secret hash is atomic for concurrent readers.
const (
	upsertAuthClientQuery = `INSERT INTO auth_clients (
			client_id,
			secret_hash,
			owner_type,
			owner_id,
			created_at
		) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (owner_type, owner_id) DO UPDATE
		SET client_id = EXCLUDED.client_id,
		    secret_hash = EXCLUDED.secret_hash,
		    created_at = EXCLUDED.created_at`

	selectAuthClientQuery = `SELECT client_id, secret_hash, owner_type, owner_id, created_at
		 FROM auth_clients
		 WHERE client_id = $1`

	deleteAuthClientQuery = `DELETE FROM auth_clients WHERE owner_type = $1 AND owner_id = $2`
)

type AuthClientStore struct {
	db DB
}

func NewAuthClientStore(db DB) *AuthClientStore {
	if db == nil {
		return nil
	}
	return &AuthClientStore{db: db}
}

func (s *AuthClientStore) ReplaceForOwner(ctx context.Context, client domain.AuthClient) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("auth client store not initialized")
	}
	if err := client.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		upsertAuthClientQuery,
		strings.TrimSpace(client.ClientID),
		strings.TrimSpace(client.SecretHash),
		strings.TrimSpace(client.OwnerType),
		strings.TrimSpace(client.OwnerID),
		normalizeTime(client.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("replace auth client: %w", err)
	}
	return nil
}

func (s *AuthClientStore) GetByClientID(ctx context.Context, clientID string) (domain.AuthClient, error) {
	if s == nil || s.db == nil {
		return domain.AuthClient{}, fmt.Errorf("auth client store not initialized")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return domain.AuthClient{}, fmt.Errorf("client id is required")
	}
	var client domain.AuthClient
	row := s.db.QueryRowContext(ctx, selectAuthClientQuery, clientID)
	if err := row.Scan(&client.ClientID, &client.SecretHash, &client.OwnerType, &client.OwnerID, &client.CreatedAt); err != nil {
		return domain.AuthClient{}, handleNotFound(err)
	}
	return client, nil
}

func (s *AuthClientStore) DeleteForOwner(ctx context.Context, ownerType, ownerID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("auth client store not initialized")
	}
	if _, err := s.db.ExecContext(ctx, deleteAuthClientQuery, strings.TrimSpace(ownerType), strings.TrimSpace(ownerID)); err != nil {
		return fmt.Errorf("delete auth client: %w", err)
	}
	return nil
}
