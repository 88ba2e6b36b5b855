package credentials

import (
	"strings"

	"github.com/flowforge/forge-go/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsConfig lets a launcher exchange its pair for platform
// access tokens using the OAuth2 client credentials grant.
func ClientCredentialsConfig(creds domain.Credentials, tokenURL string, scopes ...string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     strings.TrimSpace(tokenURL),
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
}
