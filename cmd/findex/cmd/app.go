package cmd

import (
	"context"
	"path/filepath"

	"github.com/findex-dev/findex/internal/chunk"
	"github.com/findex-dev/findex/internal/config"
	"github.com/findex-dev/findex/internal/embed"
	"github.com/findex-dev/findex/internal/index"
	"github.com/findex-dev/findex/internal/ingest"
	"github.com/findex-dev/findex/internal/snowflake"
	"github.com/findex-dev/findex/internal/store"
)

// app bundles the wired components behind one Close.
type app struct {
	cfg      *config.Config
	manager  *index.Manager
	service  *ingest.Service
	embedder embed.Embedder
	metadata store.MetadataStore
	dataDir  string
}

// openApp constructs all components from config and loads any existing
// index state from the data directory.
func openApp(ctx context.Context, cfg *config.Config, projectRoot string) (*app, error) {
	dataDir := cfg.Index.Dir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(projectRoot, dataDir)
	}

	manager, err := index.NewManager(index.Config{
		Dir:          dataDir,
		Dimensions:   cfg.Embed.Dimensions,
		VectorWeight: cfg.Search.VectorWeight,
		TextWeight:   cfg.Search.TextWeight,
	})
	if err != nil {
		return nil, err
	}
	if err := manager.Load(ctx); err != nil {
		_ = manager.Close()
		return nil, err
	}

	var inner embed.Embedder
	if cfg.Embed.UseModels {
		inner = embed.NewStatic(cfg.Embed.Dimensions)
	} else {
		inner = embed.NewZeroEmbedder(cfg.Embed.Dimensions)
	}
	embedder := embed.NewCached(inner, cfg.Embed.CacheSize)

	splitter, err := chunk.NewSplitter(
		cfg.Chunking.ChunkSize, cfg.Chunking.Overlap, cfg.Chunking.Threshold)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	idgen, err := snowflake.New(cfg.Index.MachineID)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	service, err := ingest.NewService(manager, splitter, idgen, embedder, ingest.Options{
		Metadata: metadata,
		Workers:  cfg.Index.Workers,
	})
	if err != nil {
		_ = metadata.Close()
		_ = manager.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		manager:  manager,
		service:  service,
		embedder: embedder,
		metadata: metadata,
		dataDir:  dataDir,
	}, nil
}

func (a *app) Close() {
	_ = a.metadata.Close()
	_ = a.manager.Close()
}
