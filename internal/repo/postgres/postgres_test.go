package postgres

import (
	"strings"
	"testing"
)

func TestAuthClientUpsertReplacesPerOwner(t *testing.T) {
	if !strings.Contains(upsertAuthClientQuery, "ON CONFLICT (owner_type, owner_id) DO UPDATE") {
		t.Fatalf("expected owner conflict clause in upsert query")
	}
	if !strings.Contains(upsertAuthClientQuery, "client_id = EXCLUDED.client_id") {
		t.Fatalf("expected client id to be replaced on conflict")
	}
	if !strings.Contains(upsertAuthClientQuery, "secret_hash = EXCLUDED.secret_hash") {
		t.Fatalf("expected secret hash to be replaced on conflict")
	}
}

func TestProjectQueriesScopeByID(t *testing.T) {
	for name, query := range map[string]string{
		"select": selectProjectByIDQuery,
		"merge":  mergeProjectSettingsQuery,
		"save":   saveProjectQuery,
	} {
		if !strings.Contains(query, "project_id = $1") {
			t.Fatalf("%s query missing project_id predicate: %s", name, query)
		}
	}
	if !strings.Contains(mergeProjectSettingsQuery, "|| $2::jsonb") {
		t.Fatalf("expected settings merge to use jsonb concatenation")
	}
}

func TestSchemaDeclaresOwnerUniqueness(t *testing.T) {
	if !strings.Contains(Schema, "UNIQUE (owner_type, owner_id)") {
		t.Fatalf("auth_clients must allow one client per owner")
	}
}

func TestDecodeSettingsEmpty(t *testing.T) {
	got, err := decodeSettings(nil)
	if err != nil {
		t.Fatalf("decodeSettings() err=%v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("decodeSettings()=%v, want empty map", got)
	}

	got, err = decodeSettings([]byte(`{"port":12080}`))
	if err != nil {
		t.Fatalf("decodeSettings() err=%v", err)
	}
	if got["port"] != float64(12080) {
		t.Fatalf("port=%v, want 12080", got["port"])
	}
}
