package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/cli"
	"github.com/hyperjump/semantica/internal/codec"
	"github.com/hyperjump/semantica/internal/config"
	"github.com/hyperjump/semantica/internal/embedding"
	"github.com/hyperjump/semantica/internal/index"
	"github.com/hyperjump/semantica/internal/repository"
	"github.com/hyperjump/semantica/internal/storage"
	"github.com/hyperjump/semantica/pkg/utils"
)

// app holds everything a command needs to reach the stored index.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	store      storage.Store
	embedder   embedding.Embedder
	repo       *repository.Repository[int32]
}

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory is preferred if it exists. Returns the config and
// the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// openApp loads the configuration and wires storage, embedder and
// repository. service selects the info level logger used by serve.
func openApp(ctx context.Context, g *globalOptions, service bool) (*app, error) {
	cfg, resolved, err := loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.indexPath != "" {
		abs, err := filepath.Abs(g.indexPath)
		if err != nil {
			return nil, fmt.Errorf("resolve index path: %w", err)
		}
		cfg.Index.Path = abs
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", resolved, err)
	}

	debug := cfg.Debug || g.debug
	newLogger := utils.NewLogger
	if service {
		newLogger = utils.NewServiceLogger
	}
	logger, err := newLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("index_path", cfg.Index.Path),
		zap.String("backend", cfg.Storage.Backend),
	)

	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	emb := newEmbedder(cfg.Embedding, logger)

	repo := repository.New[int32](store, filepath.Base(cfg.Index.Path), codec.Int32{}, emb,
		repository.WithLogger(logger),
		repository.WithIndexOptions(
			index.WithTolerance(float32(cfg.Index.Tolerance)),
			index.WithMinSimilarity(float32(cfg.Index.MinSimilarity)),
		),
	)
	return &app{
		cfg:        cfg,
		configPath: resolved,
		logger:     logger,
		store:      store,
		embedder:   emb,
		repo:       repo,
	}, nil
}

// Close releases the store and the embedder.
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	_ = a.logger.Sync()
}

// openStore selects the blob store for the configured backend. The blob
// name is always the base name of index.path.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	kind, err := storage.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}

	var store storage.Store
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.Storage.SQLite.Path)
	case "minio":
		m := cfg.Storage.Minio
		store, err = storage.DialMinio(ctx, storage.MinioConfig{
			Endpoint:  m.Endpoint,
			Bucket:    m.Bucket,
			Prefix:    m.Prefix,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Secure:    m.Secure,
		})
	default:
		store = storage.NewFileStore(filepath.Dir(cfg.Index.Path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	if kind != storage.CompressionNone {
		return storage.Compressed(store, kind), nil
	}
	return store, nil
}

// newEmbedder returns the configured provider behind an LRU cache. When the
// ONNX runtime or model is unavailable it falls back to hash embeddings.
func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) embedding.Embedder {
	var emb embedding.Embedder
	if cfg.Provider == "onnx" {
		onnxEmb, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
			OutputName:  cfg.OutputName,
		})
		if err != nil {
			logger.Warn("onnx embedder unavailable, using hash embeddings", zap.Error(err))
		} else {
			emb = onnxEmb
		}
	}
	if emb == nil {
		emb = embedding.NewHashEmbedder(cfg.Dimensions)
	}
	if cfg.CacheSize > 0 {
		return embedding.Cached(emb, cfg.CacheSize)
	}
	return emb
}

// execute runs a root command request: either one search, or removals
// followed by additions and a save.
func (a *app) execute(ctx context.Context, req request, format cli.OutputFormat, out io.Writer) error {
	if req.search {
		x, err := a.repo.Load(ctx)
		if err != nil {
			return err
		}
		m, ok, err := x.Search(ctx, req.query)
		if err != nil {
			return err
		}
		res := cli.SearchResult{Query: req.query, Found: ok}
		if ok {
			res.Value, res.Position, res.Similarity = m.Value, m.Position, m.Similarity
		}
		return cli.WriteSearchResult(out, res, format)
	}

	x, err := a.repo.Update(ctx, func(x *index.Index[int32]) error {
		for _, id := range req.removals {
			if err := x.Remove(id); err != nil {
				return fmt.Errorf("remove %d: %w", id, err)
			}
		}
		if len(req.additions) == 0 {
			return nil
		}
		labels := make([]string, len(req.additions))
		values := make([]int32, len(req.additions))
		for i, add := range req.additions {
			labels[i], values[i] = add.label, add.value
		}
		_, err := x.AddBatch(ctx, labels, values)
		return err
	})
	if err != nil {
		return err
	}
	a.logger.Debug("index updated",
		zap.Int("removed", len(req.removals)),
		zap.Int("added", len(req.additions)),
		zap.Int("entries", x.Len()),
	)
	return nil
}
