// Package config loads the forge-containers configuration from an optional
// YAML file and applies FORGE_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/platform/env"
)

const driverOptionPrefix = "FORGE_DRIVER_OPT_"

type Config struct {
	Driver      DriverConfig      `yaml:"driver"`
	Database    DatabaseConfig    `yaml:"database"`
	Logs        LogsConfig        `yaml:"logs"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Audit       AuditConfig       `yaml:"audit"`
	// Projects is the static record set used when the database is disabled.
	Projects []Project `yaml:"projects"`
}

type DriverConfig struct {
	Kind    string         `yaml:"kind"`
	Options map[string]any `yaml:"options"`
}

type DatabaseConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogsConfig struct {
	Archive bool `yaml:"archive"`
}

type CredentialsConfig struct {
	SigningKey string `yaml:"signing_key"`
	TokenURL   string `yaml:"token_url"`
}

type AuditConfig struct {
	Actor string `yaml:"actor"`
}

type Project struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

func Default() Config {
	return Config{
		Driver: DriverConfig{Kind: string(containers.KindStub), Options: map[string]any{}},
		Audit:  AuditConfig{Actor: "forge-containers"},
	}
}

// Parse decodes YAML over the defaults without applying the environment.
func Parse(input []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Driver.Options == nil {
		cfg.Driver.Options = map[string]any{}
	}
	return cfg, nil
}

// Load reads path (when set), applies the environment and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(raw); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() error {
	c.Driver.Kind = env.String("FORGE_DRIVER", c.Driver.Kind)
	if c.Driver.Options == nil {
		c.Driver.Options = map[string]any{}
	}
	for k, v := range env.Prefixed(driverOptionPrefix) {
		c.Driver.Options[k] = v
	}

	var err error
	if c.Database.Enabled, err = env.Bool("FORGE_DATABASE_ENABLED", c.Database.Enabled); err != nil {
		return err
	}
	if c.Logs.Archive, err = env.Bool("FORGE_LOGS_ARCHIVE", c.Logs.Archive); err != nil {
		return err
	}
	c.Credentials.SigningKey = env.String("FORGE_CREDENTIALS_SIGNING_KEY", c.Credentials.SigningKey)
	c.Credentials.TokenURL = env.String("FORGE_CREDENTIALS_TOKEN_URL", c.Credentials.TokenURL)
	c.Audit.Actor = env.String("FORGE_AUDIT_ACTOR", c.Audit.Actor)
	return nil
}

func (c Config) Validate() error {
	if _, err := containers.ParseKind(c.Driver.Kind); err != nil {
		return fmt.Errorf("driver.kind: %w", err)
	}
	if strings.TrimSpace(c.Credentials.SigningKey) == "" {
		return errors.New("credentials.signing_key is required")
	}
	seen := make(map[string]struct{}, len(c.Projects))
	for i, p := range c.Projects {
		if err := p.domain().Validate(); err != nil {
			return fmt.Errorf("projects[%d]: %w", i, err)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("projects[%d].id must be unique (duplicate %q)", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func (c Config) DriverKind() containers.Kind {
	kind, _ := containers.ParseKind(c.Driver.Kind)
	return kind
}

func (c Config) DriverOptions() containers.Options {
	opts := make(containers.Options, len(c.Driver.Options))
	for k, v := range c.Driver.Options {
		opts[k] = v
	}
	return opts
}

func (c Config) SeedProjects() []domain.Project {
	out := make([]domain.Project, 0, len(c.Projects))
	for _, p := range c.Projects {
		out = append(out, p.domain())
	}
	return out
}

func (p Project) domain() domain.Project {
	return domain.Project{
		ID:       strings.TrimSpace(p.ID),
		Name:     strings.TrimSpace(p.Name),
		URL:      strings.TrimSpace(p.URL),
		Settings: domain.Metadata{},
	}
}
