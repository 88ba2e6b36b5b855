package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowforge/forge-go/internal/containers"
	"github.com/flowforge/forge-go/internal/credentials"
	"github.com/flowforge/forge-go/internal/domain"
	"github.com/flowforge/forge-go/internal/repo"
	repopg "github.com/flowforge/forge-go/internal/repo/postgres"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "initialize the driver and keep it running until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				instances, err := a.driver.List(cmd.Context(), containers.Filter{})
				if err != nil {
					return err
				}
				a.logger.Info("driver ready", "driver", a.driver.Kind(), "instances", len(instances))
				<-cmd.Context().Done()
				a.logger.Info("shutdown requested", "driver", a.driver.Kind())
				return nil
			}, func(a *app) {
				// serve never creates buckets.
				a.requireBucket = true
			})
		},
	}
}

func listCmd(opts *rootOptions) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list known instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter containers.Filter
			if strings.TrimSpace(state) != "" {
				parsed, err := domain.ParseState(state)
				if err != nil {
					return err
				}
				filter.State = parsed
			}
			return withDriver(cmd, opts, func(a *app) error {
				instances, err := a.driver.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), viewInstances(instances))
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only list instances in this state")
	return cmd
}

func detailsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details <id>",
		Short: "show one instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				inst, ok, err := a.driver.Details(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return containers.NewError(containers.KindNotFound, "details", args[0], containers.ErrNotFound)
				}
				return writeJSON(cmd.OutOrStdout(), viewInstance(inst))
			})
		},
	}
}

func createCmd(opts *rootOptions) *cobra.Command {
	var rawOptions string
	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "create an instance for a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instOpts := map[string]any{}
			if strings.TrimSpace(rawOptions) != "" {
				if err := json.Unmarshal([]byte(rawOptions), &instOpts); err != nil {
					return fmt.Errorf("decode --options: %w", err)
				}
			}
			return withDriver(cmd, opts, func(a *app) error {
				if err := a.caps.ValidateOptions(instOpts); err != nil {
					return err
				}
				project, err := a.projects.Get(cmd.Context(), args[0])
				if errors.Is(err, repo.ErrNotFound) {
					return containers.NewError(containers.KindNotFound, "create", args[0], err)
				}
				if err != nil {
					return err
				}
				inst, err := a.driver.Create(cmd.Context(), project, instOpts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), viewInstance(inst))
			})
		},
	}
	cmd.Flags().StringVar(&rawOptions, "options", "", "per-instance options as a JSON object")
	return cmd
}

func removeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "remove an instance and revoke its credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				st, err := a.driver.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

// transitionCmd prints the status document and fails when it carries an error.
func transitionCmd(opts *rootOptions, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				var st containers.Status
				switch op {
				case "start":
					st = a.driver.Start(cmd.Context(), args[0])
				case "stop":
					st = a.driver.Stop(cmd.Context(), args[0])
				default:
					st = a.driver.Restart(cmd.Context(), args[0])
				}
				if err := writeJSON(cmd.OutOrStdout(), st); err != nil {
					return err
				}
				return st.Err(op, args[0])
			})
		},
	}
}

func settingsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settings <id>",
		Short: "show the launch settings of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				settings, err := a.driver.Settings(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), settings)
			})
		},
	}
}

func logsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "show recent log lines of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				lines, err := a.driver.Logs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), lines)
			})
		},
	}
}

func capabilitiesCmd(opts *rootOptions) *cobra.Command {
	var schema bool
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "show the per-instance options the driver accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(a *app) error {
				if schema {
					return writeJSON(cmd.OutOrStdout(), a.caps.Schema())
				}
				return writeJSON(cmd.OutOrStdout(), a.caps)
			})
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "print the options as an OpenAPI schema")
	return cmd
}

func credentialsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "issue and check instance credentials",
	}
	cmd.AddCommand(credentialsRefreshCmd(opts), credentialsVerifyCmd(opts))
	return cmd
}

type issuedCredentials struct {
	ProjectID    string     `json:"project_id"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	TokenType    string     `json:"token_type,omitempty"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
}

func credentialsRefreshCmd(opts *rootOptions) *cobra.Command {
	var exchange bool
	var scopes []string
	cmd := &cobra.Command{
		Use:   "refresh <project-id>",
		Short: "replace the credential pair of a project",
		Long: `Replace the credential pair of a project. The previous pair stops verifying.

With --exchange the new pair is traded for an access token at
credentials.token_url to prove it is accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, opts, func(a *app) error {
				if _, err := a.projects.Get(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("project %q: %w", args[0], err)
				}
				creds, err := a.issuer.RefreshAuthTokens(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := issuedCredentials{ProjectID: args[0], ClientID: creds.ClientID, ClientSecret: creds.ClientSecret}
				if exchange {
					if strings.TrimSpace(a.cfg.Credentials.TokenURL) == "" {
						return &configError{err: errors.New("credentials.token_url is required for --exchange")}
					}
					tok, err := credentials.ClientCredentialsConfig(creds, a.cfg.Credentials.TokenURL, scopes...).Token(cmd.Context())
					if err != nil {
						return fmt.Errorf("token exchange: %w", err)
					}
					out.TokenType = tok.Type()
					if !tok.Expiry.IsZero() {
						expiry := tok.Expiry.UTC()
						out.TokenExpiry = &expiry
					}
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().BoolVar(&exchange, "exchange", false, "exchange the new pair for an access token")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scopes to request with --exchange")
	return cmd
}

func credentialsVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <client-id> <client-secret>",
		Short: "check a credential pair and print its project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, opts, func(a *app) error {
				projectID, err := a.issuer.Verify(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"project_id": projectID})
			})
		},
	}
}

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, opts, func(a *app) error {
				if a.db == nil {
					return &configError{err: errors.New("database.enabled must be true to migrate")}
				}
				if err := repopg.Migrate(cmd.Context(), a.db); err != nil {
					return err
				}
				a.logger.Info("schema migrated")
				return nil
			})
		},
	}
}
