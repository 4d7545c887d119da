package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// MappingConfig tunes the version mapper's weighted similarity score.
type MappingConfig struct {
	TitleWeight   float64 `yaml:"title_weight"`
	ContentWeight float64 `yaml:"content_weight"`
	Threshold     float64 `yaml:"threshold"`
}

// DetectorConfig tunes the change detector. Strict additionally emits
// REMOVED/ADDED for the unpaired excess of uneven replace runs instead of
// dropping it.
type DetectorConfig struct {
	Strict bool `yaml:"strict"`
}

// ClusterConfig tunes the density clustering of changes into events.
type ClusterConfig struct {
	MinClusterSize int     `yaml:"min_cluster_size"`
	Epsilon        float64 `yaml:"epsilon"`
}

// OllamaConfig holds connection details for an Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// LabelerConfig selects and configures the event labeler.
type LabelerConfig struct {
	Type   string        `yaml:"type"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	ChangeCollection string `yaml:"change_collection"`
	EventCollection  string `yaml:"event_collection"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// AppConfig is the root application configuration. Every tunable is
// threaded explicitly into the component constructors; there are no
// process-wide mutable defaults.
type AppConfig struct {
	DataDir     string            `yaml:"data_dir"`
	Mapping     MappingConfig     `yaml:"mapping"`
	Detector    DetectorConfig    `yaml:"detector"`
	Cluster     ClusterConfig     `yaml:"cluster"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Labeler     LabelerConfig     `yaml:"labeler"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
}

// Load reads a config from the given path. A missing file yields the
// defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Mapping.TitleWeight == 0 && cfg.Mapping.ContentWeight == 0 {
		cfg.Mapping.TitleWeight = 0.7
		cfg.Mapping.ContentWeight = 0.3
	}
	if cfg.Mapping.Threshold == 0 {
		cfg.Mapping.Threshold = 0.6
	}
	if cfg.Cluster.MinClusterSize == 0 {
		cfg.Cluster.MinClusterSize = 5
	}
	if cfg.Cluster.Epsilon == 0 {
		cfg.Cluster.Epsilon = 0.5
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Labeler.Type == "" {
		cfg.Labeler.Type = "keyword"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "file"
	}
}
