package containers

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options is the backend-specific configuration handed to Init. Values come
// from YAML or the environment, so accessors accept strings as well as
// native types.
type Options map[string]any

func (o Options) String(key string, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return def
	}
	return s
}

func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("parse option %s: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, v)
	}
}

func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return def, nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("parse option %s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, v)
	}
}
