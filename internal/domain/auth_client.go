package domain

import (
	"errors"
	"strings"
	"time"
)

const AuthClientOwnerProject = "project"

// AuthClient is the persisted form of a credential pair. Only a keyed hash of
// the secret is stored.
type AuthClient struct {
	ClientID   string
	SecretHash string
	OwnerType  string
	OwnerID    string
	CreatedAt  time.Time
}

func (c AuthClient) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("client id is required")
	}
	if strings.TrimSpace(c.SecretHash) == "" {
		return errors.New("secret hash is required")
	}
	if strings.TrimSpace(c.OwnerType) == "" {
		return errors.New("owner type is required")
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	return nil
}
