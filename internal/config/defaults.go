package config

import "fmt"

const (
	DefaultTolerance     = 0.1
	DefaultMinSimilarity = 0.5
	DefaultDimensions    = 384
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Index.Path == "" {
		cfg.Index.Path = ".semantica/index.bin"
	}
	if cfg.Index.Tolerance == 0 {
		cfg.Index.Tolerance = DefaultTolerance
	}
	if cfg.Index.MinSimilarity == 0 {
		cfg.Index.MinSimilarity = DefaultMinSimilarity
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".semantica/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "last_hidden_state"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Compression == "" {
		cfg.Storage.Compression = "none"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = ".semantica/index.db"
	}
	if cfg.Storage.Minio.Bucket == "" {
		cfg.Storage.Minio.Bucket = "semantica"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "onnx", "hash":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	case "minio":
		if c.Storage.Minio.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("unknown compression %q", c.Storage.Compression)
	}
	if c.Index.Tolerance < 0 {
		return fmt.Errorf("index.tolerance must not be negative")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	return nil
}
