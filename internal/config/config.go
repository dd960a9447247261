package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type RunPodConfig struct {
	APIURL          string  `toml:"api_url"`
	APIToken        string  `toml:"api_token"`
	Model           string  `toml:"model"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	Temperature     float64 `toml:"temperature"`
	TopP            float64 `toml:"top_p"`
}

type QdrantConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type RerankConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
}

type RetrievalConfig struct {
	K              int     `toml:"k"`
	ExpandQueries  int     `toml:"expand_queries"`
	MinSources     int     `toml:"min_sources"`
	MaxContextDocs int     `toml:"max_context_docs"`
	ScoreThreshold float64 `toml:"score_threshold"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	RunPod    RunPodConfig    `toml:"runpod"`
	Qdrant    QdrantConfig    `toml:"qdrant"`
	Neo4j     Neo4jConfig     `toml:"neo4j"`
	Rerank    RerankConfig    `toml:"rerank"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Retrieval.K == 0 {
		c.Retrieval.K = 5
	}
	if c.Retrieval.ExpandQueries == 0 {
		c.Retrieval.ExpandQueries = 3
	}
	if c.Retrieval.MinSources == 0 {
		c.Retrieval.MinSources = 1
	}
	if c.Retrieval.MaxContextDocs == 0 {
		c.Retrieval.MaxContextDocs = 5
	}
	if c.Retrieval.ScoreThreshold == 0 {
		c.Retrieval.ScoreThreshold = 0.3
	}
	if c.Qdrant.BaseURL == "" {
		c.Qdrant.BaseURL = "http://localhost:6333"
	}
	if c.Qdrant.TimeoutSeconds == 0 {
		c.Qdrant.TimeoutSeconds = 30
	}
	if c.Neo4j.URI == "" {
		c.Neo4j.URI = "bolt://localhost:7687"
	}
	if c.Neo4j.Database == "" {
		c.Neo4j.Database = "neo4j"
	}
	if c.RunPod.MaxOutputTokens == 0 {
		c.RunPod.MaxOutputTokens = 2048
	}
	if c.RunPod.Temperature == 0 {
		c.RunPod.Temperature = 0.3
	}
	if c.RunPod.TopP == 0 {
		c.RunPod.TopP = 0.9
	}
}
