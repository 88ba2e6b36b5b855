package main

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/flowforge/forge-go/internal/domain"
)

// instanceView is the printed form of an instance. Credentials never leave
// the process through command output.
type instanceView struct {
	ID             string         `json:"id"`
	State          domain.State   `json:"state"`
	URL            string         `json:"url,omitempty"`
	Options        map[string]any `json:"options,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
	HasCredentials bool           `json:"has_credentials"`
}

func viewInstance(inst domain.Instance) instanceView {
	return instanceView{
		ID:             inst.ID,
		State:          inst.State,
		URL:            inst.URL,
		Options:        inst.Options,
		Meta:           inst.Meta,
		HasCredentials: inst.Credentials != nil && !inst.Credentials.Empty(),
	}
}

func viewInstances(instances map[string]domain.Instance) []instanceView {
	out := make([]instanceView, 0, len(instances))
	for _, inst := range instances {
		out = append(out, viewInstance(inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
