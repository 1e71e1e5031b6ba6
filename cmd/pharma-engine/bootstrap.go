package main

import (
	"context"
	"os"

	"github.com/pharmagician/pharma-engine/internal/engine"
	"github.com/pharmagician/pharma-engine/internal/index"
	"github.com/pharmagician/pharma-engine/internal/meili"
	"github.com/pharmagician/pharma-engine/internal/store"
)

// buildEngine wires the engine from config: Postgres store when a database
// URL is set, Meilisearch when configured, and a warm snapshot either loaded
// from disk or rebuilt from the store. The returned cleanup closes the store
// connection.
func buildEngine(ctx context.Context) (*engine.Engine, *meili.Client, func(), error) {
	opts := []engine.Option{engine.WithLogger(logger)}
	cleanup := func() {}

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, engine.WithStore(pg))
		cleanup = func() { _ = pg.Close() }
	}

	var remote *meili.Client
	if cfg.Meili.Enabled() {
		remote = meili.New(cfg.Meili.URL, cfg.Meili.APIKey, cfg.Meili.IndexName, logger)
		opts = append(opts, engine.WithRemote(remote))
	}

	eng, err := engine.New(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	if err := warmIndex(ctx, eng); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return eng, remote, cleanup, nil
}

// warmIndex prefers a persisted snapshot and falls back to a full rebuild.
// A stale or corrupt snapshot file is logged and rebuilt over, not fatal.
func warmIndex(ctx context.Context, eng *engine.Engine) error {
	if cfg.SnapshotPath != "" {
		if _, err := os.Stat(cfg.SnapshotPath); err == nil {
			snap, err := index.LoadSnapshot(cfg.SnapshotPath)
			if err == nil {
				eng.Install(snap)
				logger.Info().Str("path", cfg.SnapshotPath).Msg("snapshot loaded from disk")
				return nil
			}
			logger.Warn().Err(err).Str("path", cfg.SnapshotPath).Msg("snapshot load failed, rebuilding")
		}
	}

	if err := eng.Rebuild(ctx); err != nil {
		return err
	}
	if cfg.SnapshotPath != "" {
		if err := index.SaveSnapshot(cfg.SnapshotPath, eng.Snapshot()); err != nil {
			logger.Warn().Err(err).Str("path", cfg.SnapshotPath).Msg("snapshot save failed")
		}
	}
	return nil
}
