package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowforge/forge-go/internal/domain"
)

func TestClientCredentialsConfigSendsPair(t *testing.T) {
	creds := domain.Credentials{ClientID: "ffp_abc", ClientSecret: "s3cr3t"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != creds.ClientID || secret != creds.ClientSecret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := ClientCredentialsConfig(creds, srv.URL, "project")
	tok, err := cfg.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() err=%v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Fatalf("AccessToken=%q, want tok-1", tok.AccessToken)
	}
}
