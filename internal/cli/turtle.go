package cli

import (
	"github.com/spf13/cobra"

	"github.com/florakb/florakb/pkg/rdf"
)

// newTurtleCmd creates the turtle command, which exports the checklist as
// RDF Turtle files suitable for loading into a triple store.
func newTurtleCmd(cfgPath *string) *cobra.Command {
	var (
		outDir string
		zipped bool
	)

	cmd := &cobra.Command{
		Use:   "turtle",
		Short: "Export the checklist as RDF Turtle",
		Long: `Writes three Turtle files from the local database: the TDWG location
hierarchy, the accepted plant names, and the plant-to-location links. With
--zip the files are bundled into ttls.zip and the loose files removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Data.Dir
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			p := newProgress(logger)
			exp := rdf.NewExporter(st, logger)

			if zipped {
				path, err := exp.ExportZip(ctx, outDir)
				if err != nil {
					return err
				}
				p.done("Exported %s", path)
				return nil
			}

			paths, err := exp.ExportAll(ctx, outDir)
			if err != nil {
				return err
			}
			p.done("Exported %d Turtle files to %s", len(paths), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: configured data dir)")
	cmd.Flags().BoolVar(&zipped, "zip", false, "bundle the files into ttls.zip")

	return cmd
}
