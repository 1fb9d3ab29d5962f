package cli

import (
	"github.com/spf13/cobra"

	"github.com/florakb/florakb/pkg/pipeline"
)

// newImportCmd creates the import command, which downloads the checklist
// archive and rebuilds the local store from it.
func newImportCmd(cfgPath *string) *cobra.Command {
	var opts pipeline.Options

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Download the checklist and rebuild the local database",
		Long: `Downloads the World Checklist of Vascular Plants archive (unless already
cached), parses the name and distribution tables, rebuilds the DuckDB store,
and derives the nested-set taxonomy tree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			p := newProgress(logger)
			runner := newRunner(cfg, st, logger)
			res, err := runner.Execute(ctx, opts)
			if err != nil {
				return err
			}

			p.done("Imported %d names, %d distributions, %d tree nodes",
				res.Stats.Names, res.Stats.Distributions, res.Stats.TreeNodes)
			if res.SyntheticRoot {
				logger.Infof("Forest detected, synthetic root #%d added", res.Root)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-download the archive even if cached")
	cmd.Flags().BoolVar(&opts.SkipDistributions, "skip-distributions", false, "skip the distribution table")
	cmd.Flags().BoolVar(&opts.SkipTree, "skip-tree", false, "skip building the taxonomy tree")
	cmd.Flags().BoolVar(&opts.DeleteFiles, "delete-files", false, "remove the archive and extracted files after a successful import")

	return cmd
}
