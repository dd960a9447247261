package rerank

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/agenthands/graphite/internal/core/model"
)

// Scorer scores (query, text) pairs with a cross-encoder relevance model.
// Scores are returned in input order, one per text.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Reranker re-scores a candidate set and keeps the top results. Graph
// pseudo-documents must be excluded by the caller before this call.
type Reranker struct {
	Scorer Scorer
	logger *zap.Logger
}

func NewReranker(scorer Scorer, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{
		Scorer: scorer,
		logger: logger.With(zap.String("component", "reranker")),
	}
}

// Rerank scores every document against the query, sorts non-increasing by
// score, truncates to topK, and attaches the score to each survivor. The
// sort is stable, so identical inputs always reproduce identical output.
// On scorer failure the original order is kept, truncated to topK, with no
// scores attached.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []model.SearchHit, topK int) []model.SearchHit {
	if len(docs) == 0 {
		return []model.SearchHit{}
	}
	if topK <= 0 {
		topK = len(docs)
	}
	if r.Scorer == nil {
		if topK > len(docs) {
			topK = len(docs)
		}
		out := make([]model.SearchHit, topK)
		copy(out, docs[:topK])
		return out
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	scores, err := r.Scorer.Score(ctx, query, texts)
	if err != nil || len(scores) != len(docs) {
		r.logger.Warn("rerank scoring failed, keeping retrieval order",
			zap.Int("docs", len(docs)), zap.Error(err))
		if topK > len(docs) {
			topK = len(docs)
		}
		out := make([]model.SearchHit, topK)
		copy(out, docs[:topK])
		return out
	}

	indices := make([]int, len(docs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	if topK > len(indices) {
		topK = len(indices)
	}
	reranked := make([]model.SearchHit, 0, topK)
	for _, idx := range indices[:topK] {
		doc := docs[idx]
		score := scores[idx]
		doc.RerankScore = &score
		reranked = append(reranked, doc)
	}

	r.logger.Debug("reranking complete",
		zap.Int("in", len(docs)), zap.Int("out", len(reranked)))

	return reranked
}
