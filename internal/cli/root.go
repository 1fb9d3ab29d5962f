package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// This is typically called by the main package during initialization with
// values injected via ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the florakb CLI and returns an error if any command fails.
//
// The function sets up the root command with all subcommands, configures
// logging based on the --verbose flag, and executes the command tree. The
// logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute() error {
	var (
		verbose bool
		cfgPath string
	)

	root := &cobra.Command{
		Use:          "florakb",
		Short:        "FloraKB turns the World Checklist of Vascular Plants into a queryable knowledge base",
		Long:         `FloraKB downloads the World Checklist of Vascular Plants, stores it relationally with a nested-set taxonomy tree, serves it over HTTP, and exports it as RDF for graph databases.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("florakb %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.florakb/config.toml)")

	root.AddCommand(newImportCmd(&cfgPath))
	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newTurtleCmd(&cfgPath))
	root.AddCommand(newNeo4jCmd(&cfgPath))
	root.AddCommand(newTreeCmd(&cfgPath))
	root.AddCommand(newCacheCmd(&cfgPath))
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(context.Background())
}
