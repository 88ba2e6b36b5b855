package docker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowforge/forge-go/internal/domain"
)

const containerPrefix = "forge-"

func containerName(id string) string {
	return containerPrefix + strings.TrimSpace(id)
}

func isNoSuchContainer(out []byte) bool {
	text := strings.ToLower(string(out))
	return strings.Contains(text, "no such container") || strings.Contains(text, "no such object")
}

type inspectState struct {
	Status   string `json:"Status"`
	ExitCode int    `json:"ExitCode"`
	Error    string `json:"Error"`
}

func parseInspectState(out []byte) (inspectState, error) {
	var state inspectState
	if err := json.Unmarshal(bytes.TrimSpace(out), &state); err != nil {
		return inspectState{}, fmt.Errorf("parse docker inspect: %w", err)
	}
	return state, nil
}

// instanceState maps a docker container status onto the lifecycle states.
func instanceState(status string) domain.State {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "running":
		return domain.StateRunning
	case "exited", "created", "paused":
		return domain.StateStopped
	case "dead", "restarting", "removing":
		return domain.StateError
	default:
		return domain.StateUnknown
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

// extraEnv returns the caller-supplied env entries from create options,
// sorted, without the keys the driver sets itself.
func extraEnv(opts map[string]any) []string {
	raw, ok := opts["env"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		key := strings.TrimSpace(k)
		if key == "" || isReservedEnvKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+fmt.Sprint(raw[key]))
	}
	return out
}

// resourceArgs translates cpu/memory hints from create options into docker
// run flags.
func resourceArgs(opts map[string]any) []string {
	var args []string
	if cpu, ok := opts["cpu"].(string); ok && strings.TrimSpace(cpu) != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(cpu), 64); err == nil && parsed > 0 {
			args = append(args, "--cpus", fmt.Sprintf("%g", parsed))
		}
	}
	if mem, ok := opts["memory"].(string); ok && strings.TrimSpace(mem) != "" {
		args = append(args, "--memory", strings.TrimSpace(mem))
	}
	return args
}

// settingPort reads the host port persisted for a project at create time.
func settingPort(settings domain.Metadata) int {
	switch t := settings["port"].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		p, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return p
	default:
		return 0
	}
}
