package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/graphite/internal/core/graphrag"
	"github.com/agenthands/graphite/internal/core/model"
	"github.com/agenthands/graphite/internal/core/query"
	"github.com/agenthands/graphite/internal/core/rerank"
	"github.com/agenthands/graphite/internal/llm"
	"github.com/agenthands/graphite/internal/vector"
)

// graphHeadroom is the extra slots kept past k when reranking is skipped,
// so graph pseudo-documents are not squeezed out by truncation.
const graphHeadroom = 2

// RetrieveOptions controls which pipeline stages run.
type RetrieveOptions struct {
	K             int
	ExpandQueries int
	IncludeGraph  bool
	Rerank        bool
}

// Retriever orchestrates the full retrieval pipeline: query analysis,
// multi-variant vector search fan-out, dedup, graph augmentation, and
// reranking. All collaborators are injected at construction and are
// read-only after that; a Retriever is safe for concurrent requests.
type Retriever struct {
	Analyzer  *query.Analyzer
	Index     vector.Index
	Embedder  llm.EmbedderClient
	Augmenter *graphrag.Augmenter
	Reranker  *rerank.Reranker

	logger *zap.Logger
}

func NewRetriever(analyzer *query.Analyzer, index vector.Index, embedder llm.EmbedderClient, augmenter *graphrag.Augmenter, reranker *rerank.Reranker, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		Analyzer:  analyzer,
		Index:     index,
		Embedder:  embedder,
		Augmenter: augmenter,
		Reranker:  reranker,
		logger:    logger.With(zap.String("component", "retriever")),
	}
}

// Retrieve runs the full pipeline. Per-variant search failures and graph
// failures degrade to empty results; only an embedding failure for the
// primary variant propagates as an error.
func (r *Retriever) Retrieve(ctx context.Context, q, projectID string, opts RetrieveOptions) (*model.RetrievalOutput, error) {
	if opts.K <= 0 {
		opts.K = 5
	}
	if opts.ExpandQueries <= 0 {
		opts.ExpandQueries = 1
	}

	r.logger.Info("full retrieval",
		zap.String("query", q),
		zap.String("project_id", projectID),
		zap.Int("k", opts.K))

	// 1. Pre-retrieval: keyword extraction and expansion run concurrently.
	analysis := r.Analyzer.ProcessAsync(ctx, q, opts.ExpandQueries)
	variants := analysis.ExpandedQueries

	// 2. One search per variant, fanned out; results joined back in
	// submission order so dedup stays deterministic.
	perVariant := make([][]model.SearchHit, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		i, variant := i, variant
		g.Go(func() error {
			hits, err := r.searchSingle(gctx, variant, projectID, opts.K)
			if err != nil {
				if i == 0 {
					return fmt.Errorf("primary variant search failed: %w", err)
				}
				r.logger.Warn("variant search failed, skipping",
					zap.Int("variant", i), zap.Error(err))
				return nil
			}
			perVariant[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 3. Flatten + dedup, first occurrence wins.
	merged := mergeHits(perVariant)
	r.logger.Info("retrieval fan-out complete",
		zap.Int("variants", len(variants)),
		zap.Int("unique", len(merged)))

	// 4. Graph augmentation appends two pseudo-documents; they never pass
	// through the reranker.
	var refs []model.GraphReference
	var gaps []model.GraphGap
	if opts.IncludeGraph && len(merged) > 0 {
		refs, gaps = r.Augmenter.RetrieveAndReason(ctx, merged, projectID, analysis.IsGapQuery, analysis)

		if len(refs) > 0 {
			merged = append(merged, model.SearchHit{
				ID:      "graph_references",
				Content: graphrag.FormatReferences(refs),
				Score:   1.0,
				IsGraph: true,
			})
		}
		if len(gaps) > 0 {
			merged = append(merged, model.SearchHit{
				ID:      "gap_report",
				Content: graphrag.FormatGapReport(gaps),
				Score:   1.0,
				IsGraph: true,
			})
		}
	}

	// 5. Rerank the vector portion only, then re-append graph docs.
	var final []model.SearchHit
	if opts.Rerank && len(merged) > opts.K {
		var vectorHits, graphHits []model.SearchHit
		for _, hit := range merged {
			if hit.IsGraph {
				graphHits = append(graphHits, hit)
			} else {
				vectorHits = append(vectorHits, hit)
			}
		}
		final = append(r.Reranker.Rerank(ctx, q, vectorHits, opts.K), graphHits...)
	} else {
		limit := opts.K + graphHeadroom
		if limit > len(merged) {
			limit = len(merged)
		}
		final = merged[:limit]
	}

	return &model.RetrievalOutput{
		Documents:  final,
		Keywords:   analysis.Keywords,
		Intent:     analysis.Intent,
		IsGapQuery: analysis.IsGapQuery,
		NumQueries: len(variants),
		GraphRefs:  len(refs),
		GraphGaps:  len(gaps),
	}, nil
}

// Search is the cheap fast path: one variant, no expansion, no graph, no
// reranking. A positive scoreThreshold filters low-similarity hits.
func (r *Retriever) Search(ctx context.Context, q, projectID string, k int, scoreThreshold float64) ([]model.SearchHit, error) {
	hits, err := r.searchSingle(ctx, q, projectID, k)
	if err != nil {
		return nil, err
	}
	if scoreThreshold <= 0 {
		return hits, nil
	}

	filtered := make([]model.SearchHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= scoreThreshold {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}

// CollectionExists reports whether the tenant has a backing collection,
// under either naming convention.
func (r *Retriever) CollectionExists(ctx context.Context, projectID string) bool {
	name, err := r.resolveCollection(ctx, projectID)
	if err != nil {
		r.logger.Warn("failed to check collections", zap.Error(err))
		return false
	}
	return name != ""
}

// resolveCollection maps a project id to its collection name: the id
// verbatim, else the prefixed form. Empty string means no collection.
func (r *Retriever) resolveCollection(ctx context.Context, projectID string) (string, error) {
	names, err := r.Index.Collections(ctx)
	if err != nil {
		return "", err
	}

	prefixed := "project_" + projectID
	for _, name := range names {
		if name == projectID {
			return projectID, nil
		}
	}
	for _, name := range names {
		if name == prefixed {
			return prefixed, nil
		}
	}
	return "", nil
}

// searchSingle resolves the collection, embeds one query variant, and runs
// one nearest-neighbor query. A missing collection and vector-query failures
// both yield an empty result; only embedding errors are returned.
func (r *Retriever) searchSingle(ctx context.Context, variant, projectID string, k int) ([]model.SearchHit, error) {
	collection, err := r.resolveCollection(ctx, projectID)
	if err != nil {
		r.logger.Warn("failed to check collections", zap.Error(err))
		return []model.SearchHit{}, nil
	}
	if collection == "" {
		r.logger.Warn("collection does not exist", zap.String("project_id", projectID))
		return []model.SearchHit{}, nil
	}

	embedding, err := r.Embedder.Embed(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	points, err := r.Index.Query(ctx, collection, embedding, k)
	if err != nil {
		r.logger.Warn("vector search failed", zap.String("collection", collection), zap.Error(err))
		return []model.SearchHit{}, nil
	}

	hits := make([]model.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, hitFromPoint(p))
	}
	return hits, nil
}

// mergeHits flattens per-variant hit lists in submission order, keeping
// only the first occurrence of each id.
func mergeHits(perVariant [][]model.SearchHit) []model.SearchHit {
	seen := make(map[string]bool)
	var merged []model.SearchHit
	for _, hits := range perVariant {
		for _, hit := range hits {
			if hit.ID == "" || seen[hit.ID] {
				continue
			}
			seen[hit.ID] = true
			merged = append(merged, hit)
		}
	}
	return merged
}

// hitFromPoint validates the loose vector payload into the typed record.
func hitFromPoint(p vector.Point) model.SearchHit {
	hit := model.SearchHit{
		ID:    p.ID,
		Score: p.Score,
	}
	if p.Payload == nil {
		return hit
	}
	if v, ok := p.Payload["content"].(string); ok {
		hit.Content = v
	}
	if v, ok := p.Payload["filename"].(string); ok {
		hit.Filename = &v
	}
	if v, ok := p.Payload["page_num"].(float64); ok {
		page := int(v)
		hit.PageNum = &page
	}
	if v, ok := p.Payload["project_id"].(string); ok {
		hit.ProjectID = v
	}
	if v, ok := p.Payload["block_id"].(string); ok {
		hit.BlockID = v
	}
	if v, ok := p.Payload["section_id"].(string); ok {
		hit.SectionID = v
	}
	return hit
}
