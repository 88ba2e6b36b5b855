package kubernetes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/domain"
)

const (
	labelName        = "app.kubernetes.io/name"
	labelManagedBy   = "app.kubernetes.io/managed-by"
	labelProject     = "forge.flowforge.io/project"
	annotationID     = "forge.flowforge.io/project-id"
	appName          = "forge-project"
	managedBy        = "forge-containers"
	containerName    = "node-red"
	containerPort    = 1880
	maxResourceName  = 63
	resourcePrefix   = "forge-"
	credentialSuffix = "-credentials"
	idHashLen        = 8
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// resourceName turns a project id into a DNS-1123 label. Ids that are
// already valid labels map to forge-<id>; any id that had to be rewritten or
// shortened gets a hash of the original appended, so distinct ids never share
// a name.
func resourceName(id string) string {
	clean := strings.Trim(invalidNameChars.ReplaceAllString(strings.ToLower(id), "-"), "-")
	limit := maxResourceName - len(credentialSuffix)
	name := resourcePrefix + clean
	if clean == id && len(name) <= limit {
		return name
	}
	sum := sha256.Sum256([]byte(id))
	suffix := "-" + hex.EncodeToString(sum[:])[:idHashLen]
	if len(name) > limit-len(suffix) {
		name = name[:limit-len(suffix)]
	}
	return strings.TrimRight(name, "-") + suffix
}

func secretName(id string) string {
	return resourceName(id) + credentialSuffix
}

func labels(id string) map[string]string {
	return map[string]string{
		labelName:      appName,
		labelManagedBy: managedBy,
		labelProject:   resourceName(id),
	}
}

func selector(id string) string {
	return labelProject + "=" + resourceName(id)
}

func objectMeta(id, namespace, name string) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:        name,
		Namespace:   namespace,
		Labels:      labels(id),
		Annotations: map[string]string{annotationID: id},
	}
}

func credentialSecret(id, namespace string, creds domain.Credentials) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: objectMeta(id, namespace, secretName(id)),
		Type:       corev1.SecretTypeOpaque,
		StringData: map[string]string{
			"FORGE_CLIENT_ID":     creds.ClientID,
			"FORGE_CLIENT_SECRET": creds.ClientSecret,
		},
	}
}

func isReservedEnvKey(key string) bool {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "FORGE_PROJECT_ID", "FORGE_PROJECT_URL", "FORGE_PORT", "FORGE_CLIENT_ID", "FORGE_CLIENT_SECRET":
		return true
	default:
		return false
	}
}

func containerEnv(inst domain.Instance, opts map[string]any) []corev1.EnvVar {
	base := containers.BaseEnv(inst)
	env := []corev1.EnvVar{
		{Name: "FORGE_PROJECT_ID", Value: base["FORGE_PROJECT_ID"]},
		{Name: "FORGE_PROJECT_URL", Value: base["FORGE_PROJECT_URL"]},
		{Name: "FORGE_PORT", Value: strconv.Itoa(containerPort)},
	}
	extra, _ := opts["env"].(map[string]any)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		key := strings.TrimSpace(k)
		if key == "" || isReservedEnvKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, corev1.EnvVar{Name: key, Value: fmt.Sprint(extra[key])})
	}
	return env
}

// resourceRequests translates cpu/memory hints from create options into
// container requests. Unparseable quantities are rejected.
func resourceRequests(opts map[string]any) (corev1.ResourceRequirements, error) {
	req := corev1.ResourceRequirements{}
	for key, name := range map[string]corev1.ResourceName{"cpu": corev1.ResourceCPU, "memory": corev1.ResourceMemory} {
		raw, ok := opts[key].(string)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		q, err := resource.ParseQuantity(strings.TrimSpace(raw))
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("option %s: %w", key, err)
		}
		if req.Requests == nil {
			req.Requests = corev1.ResourceList{}
		}
		req.Requests[name] = q
	}
	return req, nil
}

func deployment(inst domain.Instance, namespace, image string, replicas int32, opts map[string]any) (*appsv1.Deployment, error) {
	resources, err := resourceRequests(opts)
	if err != nil {
		return nil, err
	}
	if override, ok := opts["image"].(string); ok && strings.TrimSpace(override) != "" {
		image = strings.TrimSpace(override)
	}
	podLabels := labels(inst.ID)
	return &appsv1.Deployment{
		ObjectMeta: objectMeta(inst.ID, namespace, resourceName(inst.ID)),
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{labelProject: podLabels[labelProject]}},
			Strategy: appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:      containerName,
						Image:     image,
						Ports:     []corev1.ContainerPort{{Name: "http", ContainerPort: containerPort}},
						Env:       containerEnv(inst, opts),
						EnvFrom:   []corev1.EnvFromSource{{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: secretName(inst.ID)}}}},
						Resources: resources,
					}},
				},
			},
		},
	}, nil
}

func service(id, namespace string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: objectMeta(id, namespace, resourceName(id)),
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{labelProject: resourceName(id)},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       80,
				TargetPort: intstr.FromInt32(containerPort),
			}},
		},
	}
}

// deploymentState maps a deployment onto the lifecycle states: scaled to
// zero is stopped, a ReplicaFailure condition is an error, anything else
// asked to run is running.
func deploymentState(dep *appsv1.Deployment) domain.State {
	for _, cond := range dep.Status.Conditions {
		if cond.Type == appsv1.DeploymentReplicaFailure && cond.Status == corev1.ConditionTrue {
			return domain.StateError
		}
	}
	if dep.Spec.Replicas != nil && *dep.Spec.Replicas == 0 {
		return domain.StateStopped
	}
	return domain.StateRunning
}
