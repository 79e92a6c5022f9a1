// Package config loads the semantica configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SEMANTICA_INDEX_PATH.
const EnvPrefix = "SEMANTICA"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug" mapstructure:"debug"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// IndexConfig locates the persisted index and tunes its search. Zero
// values mean the defaults.
type IndexConfig struct {
	Path          string  `yaml:"path" mapstructure:"path"`
	Tolerance     float64 `yaml:"tolerance" mapstructure:"tolerance"`
	MinSimilarity float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // onnx or hash
	ModelPath   string `yaml:"model_path" mapstructure:"model_path"`
	LibraryPath string `yaml:"library_path" mapstructure:"library_path"`
	OutputName  string `yaml:"output_name" mapstructure:"output_name"`
	Dimensions  int    `yaml:"dimensions" mapstructure:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	CacheSize   int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// StorageConfig selects where the index blob lives.
type StorageConfig struct {
	Backend     string       `yaml:"backend" mapstructure:"backend"`         // file, sqlite or minio
	Compression string       `yaml:"compression" mapstructure:"compression"` // none, lz4 or zstd
	SQLite      SQLiteConfig `yaml:"sqlite" mapstructure:"sqlite"`
	Minio       MinioConfig  `yaml:"minio" mapstructure:"minio"`
}

// SQLiteConfig holds the database path for the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MinioConfig holds the connection settings for the minio backend.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Secure    bool   `yaml:"secure" mapstructure:"secure"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host  string `yaml:"host" mapstructure:"host"`
	Port  int    `yaml:"port" mapstructure:"port"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

// envKeys lists every key that may be overridden from the environment.
var envKeys = []string{
	"debug",
	"index.path", "index.tolerance", "index.min_similarity",
	"embedding.provider", "embedding.model_path", "embedding.library_path", "embedding.output_name",
	"embedding.dimensions", "embedding.max_tokens", "embedding.cache_size",
	"storage.backend", "storage.compression", "storage.sqlite.path",
	"storage.minio.endpoint", "storage.minio.bucket", "storage.minio.prefix",
	"storage.minio.access_key", "storage.minio.secret_key", "storage.minio.secure",
	"server.host", "server.port", "server.watch",
}

// Load reads the config file at path, applies SEMANTICA_* environment
// overrides and defaults, and expands paths. A missing file is not an
// error: the result is built from the environment and defaults alone.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := "."
	if path != "" {
		configDir = filepath.Dir(path)
	}
	cfg.Index.Path = expandPath(cfg.Index.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Storage.SQLite.Path = expandPath(cfg.Storage.SQLite.Path, configDir)

	return &cfg, nil
}

// Save writes the config to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
