package cli

import (
	"github.com/spf13/cobra"

	"github.com/florakb/florakb/pkg/graphload"
)

// newNeo4jCmd creates the neo4j command, which loads the checklist graph
// into a Neo4j instance.
func newNeo4jCmd(cfgPath *string) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "neo4j",
		Short: "Load the checklist graph into Neo4j",
		Long: `Replaces the checklist nodes in the configured Neo4j database: existing
DbWCVP and DbTdwgLocation nodes are deleted, then plants, TDWG locations,
and their relationships are written in batched transactions.`,
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

			loader, err := graphload.New(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password,
				cfg.Neo4j.Database, logger)
			if err != nil {
				return err
			}
			defer loader.Close(ctx)
			if batchSize > 0 {
				loader.BatchSize = batchSize
			}

			p := newProgress(logger)
			stats, err := loader.Load(ctx, st)
			if err != nil {
				return err
			}
			p.done("Loaded %d plants, %d parent links, %d TDWG nodes, %d locations",
				stats.Plants, stats.ParentRels, stats.TdwgNodes, stats.Locations)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per write transaction (default 1000)")

	return cmd
}
