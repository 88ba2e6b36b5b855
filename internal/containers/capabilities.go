package containers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

const noderedVersionPattern = `^(0|[1-9]\d*)(\.(0|[1-9]\d*|x|\*)(\.(0|[1-9]\d*|x|\*))?)?$`

// Property describes one per-instance option the operator may set.
type Property struct {
	Label          string `json:"label"`
	Validate       string `json:"validate"`
	InvalidMessage string `json:"invalidMessage"`
}

type PropertyGroup struct {
	Properties map[string]Property `json:"properties"`
}

// Capabilities is returned once from Init, keyed by option group.
type Capabilities map[string]PropertyGroup

// DefaultCapabilities exposes the Node-RED stack version every driver accepts.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		"stack": {
			Properties: map[string]Property{
				"nodered": {
					Label:          "Node-RED Version",
					Validate:       noderedVersionPattern,
					InvalidMessage: "Invalid version number - expected x.y.z",
				},
			},
		},
	}
}

// ValidationError reports the first option that failed its rule.
type ValidationError struct {
	Group    string
	Property string
	Message  string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Group, e.Property, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Schema renders the capabilities as an OpenAPI object schema, one nested
// object per group.
func (c Capabilities) Schema() *openapi3.Schema {
	root := openapi3.NewObjectSchema()
	for group, spec := range c {
		groupSchema := openapi3.NewObjectSchema()
		for name, prop := range spec.Properties {
			groupSchema.WithProperty(name, prop.schema())
		}
		root.WithProperty(group, groupSchema)
	}
	return root
}

func (p Property) schema() *openapi3.Schema {
	s := openapi3.NewStringSchema()
	s.Title = p.Label
	if p.Validate != "" {
		s.WithPattern(p.Validate)
	}
	return s
}

// ValidateOptions checks create options shaped as {group: {property: value}}
// against the capability rules. Unknown groups and properties are ignored.
func (c Capabilities) ValidateOptions(opts map[string]any) error {
	groups := make([]string, 0, len(c))
	for group := range c {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		raw, ok := opts[group]
		if !ok || raw == nil {
			continue
		}
		values, ok := raw.(map[string]any)
		if !ok {
			return &ValidationError{Group: group, Message: "expected an object", Err: fmt.Errorf("unexpected type %T", raw)}
		}

		spec := c[group]
		names := make([]string, 0, len(spec.Properties))
		for name := range spec.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value, ok := values[name]
			if !ok {
				continue
			}
			prop := spec.Properties[name]
			if err := prop.schema().VisitJSON(value); err != nil {
				msg := prop.InvalidMessage
				if msg == "" {
					msg = "invalid value"
				}
				return &ValidationError{Group: group, Property: name, Message: msg, Err: err}
			}
		}
	}
	return nil
}

// IsValidationError reports whether err came from ValidateOptions.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
