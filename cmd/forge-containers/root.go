package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "forge-containers",
		Short: "manage hosted flow instances through a container driver",
		Long: `Manage hosted flow instances through the configured container driver.

Configuration is read from --config (YAML) and FORGE_* environment variables.
The driver is chosen once from driver.kind: stub, docker or kubernetes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		serveCmd(opts),
		listCmd(opts),
		detailsCmd(opts),
		createCmd(opts),
		removeCmd(opts),
		transitionCmd(opts, "start", "start a stopped instance"),
		transitionCmd(opts, "stop", "stop a running instance"),
		transitionCmd(opts, "restart", "stop then start an instance"),
		settingsCmd(opts),
		logsCmd(opts),
		capabilitiesCmd(opts),
		credentialsCmd(opts),
		migrateCmd(opts),
	)
	return cmd
}

// withDriver loads the app, initializes the driver and always shuts it down.
// setup runs before anything is opened.
func withDriver(cmd *cobra.Command, opts *rootOptions, fn func(*app) error, setup ...func(*app)) (err error) {
	a, err := newApp(opts.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	for _, s := range setup {
		s(a)
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := a.openDriver(cmd.Context()); err != nil {
		return err
	}
	return fn(a)
}

func withStores(cmd *cobra.Command, opts *rootOptions, fn func(*app) error) (err error) {
	a, err := newApp(opts.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := a.openStores(cmd.Context()); err != nil {
		return err
	}
	return fn(a)
}
