package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/graphite/internal/core"
	"github.com/agenthands/graphite/internal/llm"
)

const previewLength = 200

type Server struct {
	Retriever  *core.Retriever
	Grounded   *core.GroundedGenerator
	Generators map[string]llm.LLMClient

	logger *zap.Logger
}

func New(retriever *core.Retriever, grounded *core.GroundedGenerator, generators map[string]llm.LLMClient, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Retriever:  retriever,
		Grounded:   grounded,
		Generators: generators,
		logger:     logger.With(zap.String("component", "server")),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/rag/query", s.Query)
	r.POST("/rag/search", s.Search)
	r.GET("/health", s.Health)

	return r
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

type QueryRequest struct {
	Query      string `json:"query" binding:"required"`
	ProjectID  string `json:"project_id" binding:"required"`
	K          int    `json:"k" binding:"omitempty,min=1,max=20"`
	Backend    string `json:"backend" binding:"omitempty,oneof=openai runpod"`
	MinSources *int   `json:"min_sources" binding:"omitempty,min=0,max=10"`
}

type SourceDocument struct {
	SourceID       string  `json:"source_id"`
	Filename       *string `json:"filename"`
	PageNum        *int    `json:"page_num"`
	Score          float64 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

type QueryResponse struct {
	Answer        string           `json:"answer"`
	Sources       []SourceDocument `json:"sources"`
	Citations     []string         `json:"citations"`
	RefusalReason *string          `json:"refusal_reason"`
	Query         string           `json:"query"`
}

// Query answers a question grounded in the project's indexed documents.
// A refusal is a 200 response with refusal_reason set.
func (s *Server) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.K == 0 {
		req.K = 5
	}
	if req.Backend == "" {
		req.Backend = "openai"
	}
	minSources := 1
	if req.MinSources != nil {
		minSources = *req.MinSources
	}

	gen, ok := s.Generators[req.Backend]
	if !ok || gen == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown backend: " + req.Backend})
		return
	}

	answer, retrieval, err := s.Grounded.Answer(c.Request.Context(), gen, req.Query, req.ProjectID, req.K, minSources)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to answer query"})
		return
	}

	resp := QueryResponse{
		Answer:    answer.AnswerText,
		Sources:   []SourceDocument{},
		Citations: answer.Citations,
		Query:     req.Query,
	}
	if resp.Citations == nil {
		resp.Citations = []string{}
	}
	if answer.IsRefusal() {
		reason := answer.RefusalReason
		resp.RefusalReason = &reason
		c.JSON(http.StatusOK, resp)
		return
	}

	for _, src := range retrieval.Sources {
		resp.Sources = append(resp.Sources, SourceDocument{
			SourceID:       src.SourceID,
			Filename:       src.Filename,
			PageNum:        src.PageNum,
			Score:          src.Score,
			ContentPreview: preview(src.ContentSnippet),
		})
	}
	c.JSON(http.StatusOK, resp)
}

type SearchRequest struct {
	Query     string `json:"query" binding:"required"`
	ProjectID string `json:"project_id" binding:"required"`
	K         int    `json:"k" binding:"omitempty,min=1,max=50"`
}

type SearchResult struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
	Filename  *string `json:"filename"`
	PageNum   *int    `json:"page_num"`
	ProjectID string  `json:"project_id"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
	K       int            `json:"k"`
}

// Search runs the raw single-query vector search without generation.
func (s *Server) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.K == 0 {
		req.K = 10
	}

	hits, err := s.Retriever.Search(c.Request.Context(), req.Query, req.ProjectID, req.K, 0)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search"})
		return
	}

	resp := SearchResponse{
		Results: make([]SearchResult, 0, len(hits)),
		Query:   req.Query,
		K:       req.K,
	}
	for _, hit := range hits {
		resp.Results = append(resp.Results, SearchResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Content:   hit.Content,
			Filename:  hit.Filename,
			PageNum:   hit.PageNum,
			ProjectID: hit.ProjectID,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// preview truncates snippet content for the response payload.
func preview(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= previewLength {
		return content
	}
	return content[:previewLength] + "..."
}
