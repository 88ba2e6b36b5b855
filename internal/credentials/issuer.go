// Package credentials issues and verifies the client id/secret pairs that a
// running instance uses to authenticate back to the platform.
//
// Exactly one pair is valid per project: RefreshAuthTokens replaces the
// stored client for the owner in a single store operation, so the previous
// pair stops verifying at the same moment the new one starts.
package credentials

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/keylock"
	"github.com/flowforge/forge-go/internal/repo"
)

const (
	clientIDPrefix  = "ffp_"
	clientIDBytes   = 32
	secretBytes     = 48
	secretHashLabel = "forge-auth-client-v1\n"
)

var ErrInvalidCredentials = errors.New("credentials are invalid")

type Issuer struct {
	store repo.AuthClientStore
	key   []byte
	locks *keylock.Set
	now   func() time.Time
	rand  io.Reader
}

func NewIssuer(store repo.AuthClientStore, signingKey string) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("auth client store is required")
	}
	signingKey = strings.TrimSpace(signingKey)
	if signingKey == "" {
		return nil, errors.New("signing key is required")
	}
	return &Issuer{
		store: store,
		key:   []byte(signingKey),
		locks: keylock.New(),
		now:   func() time.Time { return time.Now().UTC() },
		rand:  rand.Reader,
	}, nil
}

// RefreshAuthTokens issues a fresh pair for the project and invalidates any
// pair issued before it.
func (i *Issuer) RefreshAuthTokens(ctx context.Context, projectID string) (domain.Credentials, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Credentials{}, errors.New("project id is required")
	}
	unlock := i.locks.Lock(projectID)
	defer unlock()

	clientID, err := i.randomToken(clientIDBytes)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("generate client id: %w", err)
	}
	clientID = clientIDPrefix + clientID
	secret, err := i.randomToken(secretBytes)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("generate client secret: %w", err)
	}

	client := domain.AuthClient{
		ClientID:   clientID,
		SecretHash: i.hashSecret(clientID, secret),
		OwnerType:  domain.AuthClientOwnerProject,
		OwnerID:    projectID,
		CreatedAt:  i.now(),
	}
	if err := i.store.ReplaceForOwner(ctx, client); err != nil {
		return domain.Credentials{}, fmt.Errorf("store auth client: %w", err)
	}
	return domain.Credentials{ClientID: clientID, ClientSecret: secret}, nil
}

// Verify returns the owning project id when the pair is the current one.
func (i *Issuer) Verify(ctx context.Context, clientID, secret string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	secret = strings.TrimSpace(secret)
	if clientID == "" || secret == "" || !strings.HasPrefix(clientID, clientIDPrefix) {
		return "", ErrInvalidCredentials
	}
	client, err := i.store.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("load auth client: %w", err)
	}
	expected, err := base64.RawURLEncoding.DecodeString(client.SecretHash)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	got, err := base64.RawURLEncoding.DecodeString(i.hashSecret(clientID, secret))
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !hmac.Equal(expected, got) {
		return "", ErrInvalidCredentials
	}
	return client.OwnerID, nil
}

// Revoke drops the project's pair, if any.
func (i *Issuer) Revoke(ctx context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return errors.New("project id is required")
	}
	unlock := i.locks.Lock(projectID)
	defer unlock()

	if err := i.store.DeleteForOwner(ctx, domain.AuthClientOwnerProject, projectID); err != nil {
		return fmt.Errorf("revoke auth client: %w", err)
	}
	return nil
}

func (i *Issuer) randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(i.rand, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (i *Issuer) hashSecret(clientID, secret string) string {
	mac := hmac.New(sha256.New, i.key)
	_, _ = mac.Write([]byte(secretHashLabel))
	_, _ = mac.Write([]byte(clientID))
	_, _ = mac.Write([]byte{'\n'})
	_, _ = mac.Write([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
