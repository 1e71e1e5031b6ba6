package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pharmagician/pharma-engine/internal/index"
)

func reindexCmd() *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the product store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, remote, cleanup, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// buildEngine may have warmed from a snapshot file; a reindex
			// always goes back to the store.
			start := time.Now()
			if err := eng.Rebuild(ctx); err != nil {
				return err
			}
			snap := eng.Snapshot()
			logger.Info().Int("products", snap.Len()).Dur("took", time.Since(start)).Msg("index rebuilt")

			if cfg.SnapshotPath != "" {
				if err := index.SaveSnapshot(cfg.SnapshotPath, snap); err != nil {
					return err
				}
				logger.Info().Str("path", cfg.SnapshotPath).Msg("snapshot saved")
			}

			if publish {
				if remote == nil {
					logger.Warn().Msg("meilisearch not configured, skipping publish")
					return nil
				}
				if err := remote.Publish(ctx, snap); err != nil {
					return err
				}
				logger.Info().Msg("index published to meilisearch")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the index to meilisearch")
	return cmd
}
