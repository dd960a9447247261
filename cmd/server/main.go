package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/graphite/internal/config"
	"github.com/agenthands/graphite/internal/core"
	"github.com/agenthands/graphite/internal/core/graphrag"
	"github.com/agenthands/graphite/internal/core/query"
	"github.com/agenthands/graphite/internal/core/rerank"
	"github.com/agenthands/graphite/internal/driver"
	"github.com/agenthands/graphite/internal/llm"
	"github.com/agenthands/graphite/internal/server"
	"github.com/agenthands/graphite/internal/vector"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", cfgPath), zap.Error(err))
	}
	applyEnvOverrides(cfg)

	ctx := context.Background()

	graphDriver, err := driver.NewNeo4jDriver(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to graph store", zap.Error(err))
	}
	defer graphDriver.Close(ctx)
	if err := graphDriver.BuildIndices(ctx); err != nil {
		logger.Warn("failed to build graph indices", zap.Error(err))
	}

	index := vector.NewClient(cfg.Qdrant, logger)

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}
	if embedder == nil {
		logger.Fatal("configured provider has no embedding support",
			zap.String("provider", cfg.LLM.Provider))
	}

	generators := map[string]llm.LLMClient{
		"openai": llmClient,
	}
	if cfg.RunPod.APIURL != "" {
		generators["runpod"] = llm.NewRunPodClient(cfg.RunPod, logger)
	}

	analyzer := query.NewAnalyzer(llmClient, logger)
	augmenter := graphrag.NewAugmenter(graphDriver, logger)

	var scorer rerank.Scorer
	if cfg.Rerank.Enabled && cfg.Rerank.Endpoint != "" {
		scorer = rerank.NewHTTPScorer(cfg.Rerank.Endpoint, cfg.Rerank.Model, logger)
	}
	reranker := rerank.NewReranker(scorer, logger)

	retriever := core.NewRetriever(analyzer, index, embedder, augmenter, reranker, logger)
	grounded := core.NewGroundedGenerator(retriever,
		cfg.Retrieval.MinSources, true,
		cfg.Retrieval.ScoreThreshold, cfg.Retrieval.MaxContextDocs, logger)

	srv := server.New(retriever, grounded, generators, logger)
	r := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("starting server", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.Qdrant.BaseURL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Qdrant.APIKey = v
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		cfg.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("RUNPOD_API_URL"); v != "" {
		cfg.RunPod.APIURL = v
	}
	if v := os.Getenv("RUNPOD_API_TOKEN"); v != "" {
		cfg.RunPod.APIToken = v
	}
}
