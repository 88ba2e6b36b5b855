package k8s

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
)

func TestClassify(t *testing.T) {
	gr := schema.GroupResource{Group: "apps", Resource: "deployments"}
	cases := []struct {
		err  error
		want error
	}{
		{apierrors.NewNotFound(gr, "forge-a"), ErrNotFound},
		{apierrors.NewAlreadyExists(gr, "forge-a"), ErrAlreadyExists},
		{apierrors.NewConflict(gr, "forge-a", errors.New("stale")), ErrConflict},
		{apierrors.NewUnauthorized("no token"), ErrUnauthorized},
		{apierrors.NewForbidden(gr, "forge-a", errors.New("rbac")), ErrForbidden},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("Classify(%v)=%v, want %v", tc.err, got, tc.want)
		}
	}
	plain := errors.New("dial tcp: refused")
	if got := Classify(plain); got != plain {
		t.Fatalf("Classify(plain)=%v, want unchanged", got)
	}
	if Classify(nil) != nil {
		t.Fatalf("Classify(nil) should be nil")
	}
}

func TestResolveNamespace(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "namespace")
	if got := ResolveNamespace("", file); got != "default" {
		t.Fatalf("ResolveNamespace(missing)=%q, want default", got)
	}
	if err := os.WriteFile(file, []byte("forge-system\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() err=%v", err)
	}
	if got := ResolveNamespace("", file); got != "forge-system" {
		t.Fatalf("ResolveNamespace(file)=%q, want forge-system", got)
	}
	if got := ResolveNamespace(" tenants ", file); got != "tenants" {
		t.Fatalf("ResolveNamespace(explicit)=%q, want tenants", got)
	}
}

func TestWrapClientsetDefaultsNamespace(t *testing.T) {
	c := WrapClientset(fake.NewSimpleClientset(), "")
	if c.Namespace() != "default" {
		t.Fatalf("Namespace()=%q, want default", c.Namespace())
	}
}
