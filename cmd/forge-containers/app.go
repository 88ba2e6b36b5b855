package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/flowforge/forge-go/internal/config"
	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/containers/drivers"
	"github.com/flowforge/forge-go/internal/credentials"
	"github.com/flowforge/forge-go/internal/logarchive"
	"github.com/flowforge/forge-go/internal/platform/auditlog"
	"github.com/flowforge/forge-go/internal/platform/objectstore"
	"github.com/flowforge/forge-go/internal/platform/postgres"
	"github.com/flowforge/forge-go/internal/repo"
	"github.com/flowforge/forge-go/internal/repo/memory"
	repopg "github.com/flowforge/forge-go/internal/repo/postgres"
)

const shutdownTimeout = 10 * time.Second

// app holds everything a subcommand needs once configuration is loaded.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	db       *sql.DB
	projects repo.ProjectStore
	clients  repo.AuthClientStore
	issuer   *credentials.Issuer
	driver   containers.Driver
	caps     containers.Capabilities

	// requireBucket makes the log archive fail when its bucket is missing
	// instead of creating it.
	requireBucket bool
}

// newApp loads configuration. Logs go to logOut so command output on stdout
// stays machine readable.
func newApp(configPath string, logOut io.Writer) (*app, error) {
	logger := slog.New(slog.NewJSONHandler(logOut, nil))
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &configError{err: err}
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// openStores connects the record store and credential issuer.
func (a *app) openStores(ctx context.Context) error {
	if a.cfg.Database.Enabled {
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return &configError{err: fmt.Errorf("database: %w", err)}
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
		a.db = db
		a.projects = repopg.NewProjectStore(db)
		a.clients = repopg.NewAuthClientStore(db)
	} else {
		a.projects = memory.NewProjectStore(a.cfg.SeedProjects()...)
		a.clients = memory.NewAuthClientStore()
	}

	issuer, err := credentials.NewIssuer(a.clients, a.cfg.Credentials.SigningKey)
	if err != nil {
		return &configError{err: err}
	}
	a.issuer = issuer
	return nil
}

// openDriver builds the configured driver and initializes it. A driver that
// fails to initialize is never used.
func (a *app) openDriver(ctx context.Context) error {
	if err := a.openStores(ctx); err != nil {
		return err
	}

	deps := drivers.Deps{
		Store:      a.projects,
		Issuer:     a.issuer,
		Logger:     a.logger,
		AuditActor: a.cfg.Audit.Actor,
	}
	if a.db != nil {
		deps.Audit = auditlog.Recorder{DB: a.db}
	}
	if a.cfg.Logs.Archive {
		archiver, err := a.openArchive(ctx)
		if err != nil {
			return err
		}
		deps.Archive = archiver
	}

	driver, err := drivers.New(a.cfg.DriverKind(), deps)
	if err != nil {
		return &configError{err: err}
	}
	caps, err := driver.Init(ctx, a.cfg.DriverOptions())
	if err != nil {
		return fmt.Errorf("driver init: %w", err)
	}
	a.driver = driver
	a.caps = caps
	return nil
}

func (a *app) openArchive(ctx context.Context) (*logarchive.Archiver, error) {
	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return nil, &configError{err: fmt.Errorf("object store: %w", err)}
	}
	client, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	prepare := objectstore.EnsureBucket
	if a.requireBucket {
		prepare = objectstore.CheckBucket
	}
	if err := prepare(ctx, client, storeCfg); err != nil {
		return nil, fmt.Errorf("object store unavailable: %w", err)
	}
	return logarchive.New(client, storeCfg.BucketLogs)
}

func (a *app) close() error {
	var errs []error
	if a.driver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.driver.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("driver shutdown: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
