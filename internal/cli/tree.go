package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/florakb/florakb/pkg/store"
	"github.com/florakb/florakb/pkg/viz"
)

// newTreeCmd creates the tree command, which renders a taxonomy subtree as
// a Graphviz diagram.
func newTreeCmd(cfgPath *string) *cobra.Command {
	var (
		taxonID  int64
		depth    int
		format   string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render a taxonomy subtree as DOT, SVG, or PNG",
		Long: `Fetches the subtree rooted at a taxon (or the whole tree) from the local
database and renders it with Graphviz. DOT output is written as-is; SVG and
PNG are rasterized in-process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if err := validateTreeFormat(format); err != nil {
				return err
			}

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			nodes, err := fetchSubtree(cmd, st, taxonID, depth)
			if err != nil {
				return err
			}
			logger.Debugf("Fetched %d tree nodes", len(nodes))

			dot := viz.ToDOT(nodes, viz.Options{Detailed: detailed})
			data, err := viz.Render(ctx, dot, format)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			logger.Infof("Generated %s", output)
			return nil
		},
	}

	cmd.Flags().Int64Var(&taxonID, "taxon", 0, "root taxon ID (default: tree root)")
	cmd.Flags().IntVar(&depth, "depth", 0, "limit subtree depth (0 = unlimited)")
	cmd.Flags().StringVarP(&format, "format", "f", viz.FormatDOT, "output format: dot, svg, png")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include positions and depth in labels")

	return cmd
}

func validateTreeFormat(f string) error {
	switch f {
	case viz.FormatDOT, viz.FormatSVG, viz.FormatPNG:
		return nil
	}
	return fmt.Errorf("invalid format: %s (must be 'dot', 'svg', or 'png')", f)
}

// fetchSubtree resolves the requested root. With no --taxon it starts from
// the tree root so the whole taxonomy is rendered.
func fetchSubtree(cmd *cobra.Command, st *store.Store, taxonID int64, depth int) ([]store.TreeNode, error) {
	ctx := cmd.Context()
	if taxonID == 0 {
		root, err := st.TreeRoot(ctx)
		if err != nil {
			return nil, err
		}
		taxonID = root.PlantNameID
	}
	return st.Subtree(ctx, taxonID, depth)
}
