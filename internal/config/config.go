// Package config provides configuration for the findex retrieval core.
// Configuration is loaded from a YAML file with FINDEX_* environment
// variable overrides, then validated before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

// Config represents the complete findex configuration surface consumed
// by the retrieval core.
type Config struct {
	Index    IndexConfig    `yaml:"index" json:"index"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Embed    EmbedConfig    `yaml:"embeddings" json:"embeddings"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// IndexConfig configures index storage and identity generation.
type IndexConfig struct {
	// Dir is the directory holding the persisted index artifacts.
	Dir string `yaml:"dir" json:"dir"`

	// MachineID identifies this generator instance (0-1023).
	MachineID int64 `yaml:"machine_id" json:"machine_id"`

	// Workers bounds parallel chunk indexing per document.
	Workers int `yaml:"workers" json:"workers"`
}

// ChunkingConfig configures the chunk splitter.
type ChunkingConfig struct {
	// ChunkSize is the window size in characters (default: 500).
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// Overlap is the character overlap between consecutive chunks.
	// Must satisfy 0 <= overlap < chunk_size.
	Overlap int `yaml:"overlap" json:"overlap"`

	// Threshold is the content length below which documents are
	// indexed whole instead of chunked.
	Threshold int `yaml:"threshold" json:"threshold"`
}

// SearchConfig configures hybrid search fusion.
type SearchConfig struct {
	// VectorWeight is the weight for dense similarity (default: 0.6).
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// TextWeight is the weight for inverted-index relevance (default: 0.4).
	// VectorWeight + TextWeight must not exceed 1.0.
	TextWeight float64 `yaml:"text_weight" json:"text_weight"`

	// MaxResults caps the number of results a query may request.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// EmbedConfig configures the embedding capability consumed by the core.
// The embedding provider itself is external; only its shape is configured.
type EmbedConfig struct {
	// Dimensions is the fixed embedding dimension D.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// UseModels selects real embeddings; false runs with zero vectors
	// for text-only or test deployments.
	UseModels bool `yaml:"use_models" json:"use_models"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// ConfigFileName is the project-local configuration file name.
const ConfigFileName = ".findex.yaml"

// New returns a Config with sensible defaults.
func New() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:       ".findex",
			MachineID: 0,
			Workers:   4,
		},
		Chunking: ChunkingConfig{
			ChunkSize: 500,
			Overlap:   50,
			Threshold: 500,
		},
		Search: SearchConfig{
			VectorWeight: 0.6,
			TextWeight:   0.4,
			MaxResults:   100,
		},
		Embed: EmbedConfig{
			Dimensions: 768,
			CacheSize:  1000,
			UseModels:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the given directory, applying in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.findex.yaml)
//  3. Environment variables (FINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := New()

	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ferrors.ConfigError(fmt.Sprintf("read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return ferrors.ConfigError(fmt.Sprintf("parse config file %s", path), err)
	}

	return nil
}

// applyEnvOverrides applies FINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FINDEX_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("FINDEX_MACHINE_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Index.MachineID = id
		}
	}
	if v := os.Getenv("FINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("FINDEX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.ChunkSize = n
		}
	}
	if v := os.Getenv("FINDEX_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("FINDEX_CHUNK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.Threshold = n
		}
	}
	if v := os.Getenv("FINDEX_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("FINDEX_TEXT_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.TextWeight = f
		}
	}
	if v := os.Getenv("FINDEX_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embed.Dimensions = n
		}
	}
	if v := os.Getenv("FINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
// All violations are configuration errors, fatal at construction.
func (c *Config) Validate() error {
	if c.Index.MachineID < 0 || c.Index.MachineID > 1023 {
		return ferrors.New(ferrors.ErrCodeMachineIDRange,
			fmt.Sprintf("machine_id must be in [0, 1023], got %d", c.Index.MachineID), nil)
	}
	if c.Index.Workers < 1 {
		return ferrors.ConfigError(
			fmt.Sprintf("workers must be at least 1, got %d", c.Index.Workers), nil)
	}

	if c.Chunking.ChunkSize <= 0 {
		return ferrors.New(ferrors.ErrCodeChunkParams,
			fmt.Sprintf("chunk_size must be positive, got %d", c.Chunking.ChunkSize), nil)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return ferrors.New(ferrors.ErrCodeChunkParams,
			fmt.Sprintf("overlap must satisfy 0 <= overlap < chunk_size, got overlap=%d chunk_size=%d",
				c.Chunking.Overlap, c.Chunking.ChunkSize), nil)
	}
	if c.Chunking.Threshold < 0 {
		return ferrors.New(ferrors.ErrCodeChunkParams,
			fmt.Sprintf("threshold must be non-negative, got %d", c.Chunking.Threshold), nil)
	}

	if err := ValidateWeights(c.Search.VectorWeight, c.Search.TextWeight); err != nil {
		return err
	}
	if c.Search.MaxResults < 1 {
		return ferrors.ConfigError(
			fmt.Sprintf("max_results must be at least 1, got %d", c.Search.MaxResults), nil)
	}

	if c.Embed.Dimensions <= 0 {
		return ferrors.ConfigError(
			fmt.Sprintf("embeddings.dimensions must be positive, got %d", c.Embed.Dimensions), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return ferrors.ConfigError(
			fmt.Sprintf("logging.level must be debug, info, warn, or error, got %s", c.Logging.Level), nil)
	}

	return nil
}

// ValidateWeights checks a vector/text weight pair.
// Each weight must be non-negative and the pair must not sum past 1.0.
func ValidateWeights(vectorWeight, textWeight float64) error {
	if vectorWeight < 0 || vectorWeight > 1 {
		return ferrors.New(ferrors.ErrCodeWeightsInvalid,
			fmt.Sprintf("vector_weight must be in [0, 1], got %f", vectorWeight), nil)
	}
	if textWeight < 0 || textWeight > 1 {
		return ferrors.New(ferrors.ErrCodeWeightsInvalid,
			fmt.Sprintf("text_weight must be in [0, 1], got %f", textWeight), nil)
	}
	if sum := vectorWeight + textWeight; sum > 1.0+1e-9 {
		return ferrors.New(ferrors.ErrCodeWeightsInvalid,
			fmt.Sprintf("vector_weight + text_weight must not exceed 1.0, got %.2f", sum), nil)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ferrors.ConfigError("marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.ConfigError("write config file", err)
	}

	return nil
}
