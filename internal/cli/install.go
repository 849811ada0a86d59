package cli

import (
	"fmt"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conaticus/click/internal/config"
	"github.com/conaticus/click/pkg/httputil"
	"github.com/conaticus/click/pkg/installer"
	"github.com/conaticus/click/pkg/registry"
	"github.com/conaticus/click/pkg/store"
)

// newInstallCmd creates the install command.
func newInstallCmd(cfgPath *string) *cobra.Command {
	var modulesDir string

	cmd := &cobra.Command{
		Use:     "install <package[@version]>",
		Aliases: []string{"i"},
		Short:   "Install a package and its dependency tree",
		Long: `Install a package from the npm registry.

The version specifier accepts a single npm-style comparator.

Examples:
  click install lodash                # latest
  click install lodash@4.17.21        # exact version
  click install lodash@^4.17.0        # newest compatible 4.x
  click install pkg@"<2.0.0"          # newest version below 2.0.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx).With("run", shortRunID())

			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if modulesDir != "" {
				cfg.Install.ModulesDir = modulesDir
			}

			inst, err := buildInstaller(cfg, logger)
			if err != nil {
				return err
			}

			prog := newProgress(logger)
			logger.Info("installing", "package", args[0])

			// The spinner would fight with debug output for the terminal.
			var sp *spinner
			if logger.GetLevel() > charmlog.DebugLevel {
				sp = newSpinner(ctx, "installing "+args[0])
				sp.start()
			}

			err = inst.Execute(ctx, args[0])
			if sp != nil {
				sp.stop()
			}
			if err != nil {
				printError("Failed to install %s", args[0])
				return err
			}

			prog.done("Installed " + args[0])
			printSuccess("Installed %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&modulesDir, "modules-dir", "", `directory to link packages into (default "node_modules")`)
	return cmd
}

// buildInstaller wires config into the registry client, package store and
// installer.
func buildInstaller(cfg *config.Config, logger *charmlog.Logger) (*installer.Installer, error) {
	httpCache, err := httputil.NewCache(cfg.Cache.HTTPDir, cfg.Registry.CacheTTL.Duration)
	if err != nil {
		return nil, fmt.Errorf("open metadata cache: %w", err)
	}
	reg := registry.NewClient(cfg.Registry.URL, httpCache)

	storeDir := cfg.Cache.Dir
	if storeDir == "" {
		storeDir, err = store.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("locate cache directory: %w", err)
		}
	}
	st, err := store.New(storeDir, logger)
	if err != nil {
		return nil, err
	}

	return installer.New(reg, st, cfg.Install.ModulesDir, logger), nil
}

// shortRunID returns a compact identifier correlating one install run's
// log lines.
func shortRunID() string {
	return uuid.NewString()[:8]
}
