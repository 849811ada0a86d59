// Package cli implements the click command-line interface.
//
// The main commands are:
//   - install: resolve and install a package and its dependency tree
//   - cache: inspect and clear the local package cache
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/conaticus/click/pkg/buildinfo"
)

// Execute runs the click CLI.
func Execute(ctx context.Context) error {
	var (
		verbose bool
		cfgPath string
	)

	root := &cobra.Command{
		Use:          "click",
		Short:        "click is a fast package installer for the npm registry",
		Long:         `click resolves a package against the npm registry, installs its transitive dependency tree concurrently into a shared on-disk cache, and links cached packages into your project.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	root.AddCommand(newInstallCmd(&cfgPath))
	root.AddCommand(newCacheCmd(&cfgPath))

	return root.ExecuteContext(ctx)
}
