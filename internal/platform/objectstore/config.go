package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowforge/forge-go/internal/platform/env"
)

// Config locates the bucket that holds archived instance logs.
type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Region     string
	UseSSL     bool
	BucketLogs string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("FORGE_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:   env.String("FORGE_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:  env.String("FORGE_MINIO_ACCESS_KEY", "forge"),
		SecretKey:  env.String("FORGE_MINIO_SECRET_KEY", "forgeminio"),
		Region:     env.String("FORGE_MINIO_REGION", "us-east-1"),
		UseSSL:     useSSL,
		BucketLogs: env.String("FORGE_MINIO_BUCKET_LOGS", "forge-logs"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketLogs) == "" {
		return errors.New("logs bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
