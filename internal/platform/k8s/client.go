// Package k8s builds Kubernetes clientsets and maps API errors onto
// package sentinels.
package k8s

import (
	"errors"
	"fmt"
	"os"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const defaultNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

var (
	ErrNotFound      = errors.New("kubernetes resource not found")
	ErrAlreadyExists = errors.New("kubernetes resource already exists")
	ErrUnauthorized  = errors.New("kubernetes request unauthorized")
	ErrForbidden     = errors.New("kubernetes request forbidden")
	ErrConflict      = errors.New("kubernetes resource version conflict")
)

// Config selects how to reach the cluster. An empty Kubeconfig means the
// in-cluster service account.
type Config struct {
	Kubeconfig string
	Namespace  string
}

// Client is a clientset bound to a default namespace.
type Client struct {
	Clientset kubernetes.Interface
	namespace string
}

func NewClient(cfg Config) (*Client, error) {
	restConfig, err := restConfig(strings.TrimSpace(cfg.Kubeconfig))
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes clientset: %w", err)
	}
	return WrapClientset(clientset, ResolveNamespace(cfg.Namespace, defaultNamespaceFile)), nil
}

// WrapClientset binds an existing clientset, typically a fake one in tests.
func WrapClientset(clientset kubernetes.Interface, namespace string) *Client {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "default"
	}
	return &Client{Clientset: clientset, namespace: namespace}
}

func (c *Client) Namespace() string {
	return c.namespace
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("load in-cluster config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfig, err)
	}
	return cfg, nil
}

// ResolveNamespace returns explicit when set, else the service account
// namespace read from file, else "default".
func ResolveNamespace(explicit, file string) string {
	if ns := strings.TrimSpace(explicit); ns != "" {
		return ns
	}
	if raw, err := os.ReadFile(file); err == nil {
		if ns := strings.TrimSpace(string(raw)); ns != "" {
			return ns
		}
	}
	return "default"
}

// Classify wraps err with the matching sentinel so callers can use
// errors.Is without importing apimachinery.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case apierrors.IsAlreadyExists(err):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case apierrors.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case apierrors.IsUnauthorized(err):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case apierrors.IsForbidden(err):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	default:
		return err
	}
}
