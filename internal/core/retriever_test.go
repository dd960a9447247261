package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"

	"github.com/agenthands/graphite/internal/core/graphrag"
	"github.com/agenthands/graphite/internal/core/model"
	"github.com/agenthands/graphite/internal/core/query"
	"github.com/agenthands/graphite/internal/core/rerank"
	"github.com/agenthands/graphite/internal/vector"
)

const testQuery = "what are the retention requirements"

func newTestRetriever(llm *MockLLM, index *MockIndex, embedder *MockEmbedder, drv *MockDriver, scorer rerank.Scorer) *Retriever {
	return NewRetriever(
		query.NewAnalyzer(llm, nil),
		index,
		embedder,
		graphrag.NewAugmenter(drv, nil),
		rerank.NewReranker(scorer, nil),
		nil,
	)
}

func expandingLLM() *MockLLM {
	return &MockLLM{
		KeywordResponse: `{"keywords": ["retention"], "intent": "policy_lookup"}`,
		ExpandResponse:  "how long must records be kept\n#\nrecord retention period",
	}
}

func TestRetrieveDeduplicatesAcrossVariants(t *testing.T) {
	embedder := &MockEmbedder{VectorKey: map[string]float32{
		testQuery:                        1,
		"how long must records be kept":  2,
		"record retention period":        3,
	}}
	index := &MockIndex{
		CollectionNames: []string{"project_p1"},
		ResultsByKey: map[float32][]vector.Point{
			1: {point("a", 0.9, "doc a"), point("b", 0.8, "doc b"), point("c", 0.7, "doc c")},
			2: {point("b", 0.85, "doc b"), point("c", 0.75, "doc c"), point("d", 0.6, "doc d")},
			3: {point("d", 0.65, "doc d"), point("e", 0.5, "doc e")},
		},
	}

	r := newTestRetriever(expandingLLM(), index, embedder, &MockDriver{}, nil)

	out, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{K: 10, ExpandQueries: 3})
	assert.NoError(t, err)
	assert.Equal(t, 3, out.NumQueries)

	var ids []string
	for _, doc := range out.Documents {
		ids = append(ids, doc.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)

	// First occurrence wins: "b" keeps the score from the primary variant.
	assert.Equal(t, 0.8, out.Documents[1].Score)
}

func TestRetrieveVariantFailureIsolated(t *testing.T) {
	embedder := &MockEmbedder{
		VectorKey: map[string]float32{testQuery: 1},
		ErrFor: map[string]error{
			"how long must records be kept": fmt.Errorf("embedding service down"),
			"record retention period":       fmt.Errorf("embedding service down"),
		},
	}
	index := &MockIndex{
		CollectionNames: []string{"p1"},
		ResultsByKey: map[float32][]vector.Point{
			1: {point("a", 0.9, "doc a")},
		},
	}

	r := newTestRetriever(expandingLLM(), index, embedder, &MockDriver{}, nil)

	out, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{K: 5, ExpandQueries: 3})
	assert.NoError(t, err)
	assert.Len(t, out.Documents, 1)
	assert.Equal(t, "a", out.Documents[0].ID)
}

func TestRetrievePrimaryVariantFailureTerminal(t *testing.T) {
	embedder := &MockEmbedder{
		ErrFor: map[string]error{testQuery: fmt.Errorf("embedding service down")},
	}
	index := &MockIndex{CollectionNames: []string{"p1"}}

	r := newTestRetriever(expandingLLM(), index, embedder, &MockDriver{}, nil)

	_, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{K: 5, ExpandQueries: 3})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "primary variant")
}

func TestRetrieveMissingCollectionYieldsEmpty(t *testing.T) {
	embedder := &MockEmbedder{}
	index := &MockIndex{CollectionNames: []string{"project_other"}}

	r := newTestRetriever(expandingLLM(), index, embedder, &MockDriver{}, nil)

	out, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{K: 5, ExpandQueries: 1})
	assert.NoError(t, err)
	assert.Empty(t, out.Documents)
}

func TestRetrieveGraphPseudoDocuments(t *testing.T) {
	embedder := &MockEmbedder{VectorKey: map[string]float32{testQuery: 1}}
	index := &MockIndex{
		CollectionNames: []string{"p1"},
		ResultsByKey: map[float32][]vector.Point{
			1: {point("a", 0.9, "doc a")},
		},
	}
	drv := &MockDriver{
		MockResult: neo4j.EagerResult{
			Records: []*neo4j.Record{
				{
					Keys:   []string{"ref_id", "title", "category", "source"},
					Values: []any{"REF-1", "Fire Code", "safety", "a"},
				},
			},
		},
	}
	llm := &MockLLM{
		KeywordResponse: `{"keywords": ["retention"], "intent": "general"}`,
		ExpandResponse:  "",
	}

	r := newTestRetriever(llm, index, embedder, drv, nil)

	out, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{K: 5, ExpandQueries: 1, IncludeGraph: true})
	assert.NoError(t, err)

	var graphIDs []string
	for _, doc := range out.Documents {
		if doc.IsGraph {
			graphIDs = append(graphIDs, doc.ID)
			assert.Equal(t, 1.0, doc.Score)
			assert.Nil(t, doc.RerankScore)
		}
	}
	// The mock driver returns the same record set for both lookups, so the
	// reference block and the gap report both appear.
	assert.Contains(t, graphIDs, "graph_references")
	assert.Contains(t, graphIDs, "gap_report")
}

func TestRetrieveRerankSkipsGraphDocuments(t *testing.T) {
	embedder := &MockEmbedder{VectorKey: map[string]float32{testQuery: 1}}
	index := &MockIndex{
		CollectionNames: []string{"p1"},
		ResultsByKey: map[float32][]vector.Point{
			1: {
				point("a", 0.9, "doc a"),
				point("b", 0.8, "doc b"),
				point("c", 0.7, "doc c"),
			},
		},
	}
	drv := &MockDriver{
		MockResult: neo4j.EagerResult{
			Records: []*neo4j.Record{
				{
					Keys:   []string{"ref_id", "title", "category", "source"},
					Values: []any{"REF-1", "Fire Code", "safety", "a"},
				},
			},
		},
	}
	llm := &MockLLM{
		KeywordResponse: `{"keywords": [], "intent": "general"}`,
	}
	// Reverse the retrieval order: c > b > a.
	scorer := &MockScorer{Scores: []float64{0.1, 0.5, 0.9}}

	r := newTestRetriever(llm, index, embedder, drv, scorer)

	out, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{
		K: 2, ExpandQueries: 1, IncludeGraph: true, Rerank: true,
	})
	assert.NoError(t, err)

	assert.Equal(t, "c", out.Documents[0].ID)
	assert.Equal(t, "b", out.Documents[1].ID)
	assert.NotNil(t, out.Documents[0].RerankScore)

	// Graph docs survive reranking unscored, appended at the end.
	last := out.Documents[len(out.Documents)-1]
	assert.True(t, last.IsGraph)
	assert.Nil(t, last.RerankScore)
}

func TestRetrieveTruncatesWithoutRerank(t *testing.T) {
	embedder := &MockEmbedder{VectorKey: map[string]float32{testQuery: 1}}
	index := &MockIndex{
		CollectionNames: []string{"p1"},
		ResultsByKey: map[float32][]vector.Point{
			1: {
				point("a", 0.9, "a"), point("b", 0.8, "b"), point("c", 0.7, "c"),
				point("d", 0.6, "d"), point("e", 0.5, "e"), point("f", 0.4, "f"),
			},
		},
	}

	r := newTestRetriever(expandingLLM(), index, embedder, &MockDriver{}, nil)

	out, err := r.Retrieve(context.Background(), testQuery, "p1", RetrieveOptions{K: 2, ExpandQueries: 1})
	assert.NoError(t, err)
	assert.Len(t, out.Documents, 4) // k + headroom for graph docs
}

func TestSearchScoreThreshold(t *testing.T) {
	embedder := &MockEmbedder{VectorKey: map[string]float32{testQuery: 1}}
	index := &MockIndex{
		CollectionNames: []string{"p1"},
		ResultsByKey: map[float32][]vector.Point{
			1: {point("a", 0.9, "a"), point("b", 0.2, "b")},
		},
	}

	r := newTestRetriever(&MockLLM{}, index, embedder, &MockDriver{}, nil)

	hits, err := r.Search(context.Background(), testQuery, "p1", 5, 0.3)
	assert.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)

	hits, err = r.Search(context.Background(), testQuery, "p1", 5, 0)
	assert.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestCollectionExists(t *testing.T) {
	index := &MockIndex{CollectionNames: []string{"direct", "project_prefixed"}}
	r := newTestRetriever(&MockLLM{}, index, &MockEmbedder{}, &MockDriver{}, nil)

	ctx := context.Background()
	assert.True(t, r.CollectionExists(ctx, "direct"))
	assert.True(t, r.CollectionExists(ctx, "prefixed"))
	assert.False(t, r.CollectionExists(ctx, "missing"))

	index.CollectionsErr = fmt.Errorf("connection refused")
	assert.False(t, r.CollectionExists(ctx, "direct"))
}

func TestHitFromPoint(t *testing.T) {
	p := vector.Point{
		ID:    "doc-1",
		Score: 0.7,
		Payload: map[string]any{
			"content":    "some text",
			"filename":   "spec.pdf",
			"page_num":   float64(12),
			"project_id": "p1",
			"block_id":   "blk-9",
			"section_id": "sec-3",
		},
	}

	hit := hitFromPoint(p)
	assert.Equal(t, "doc-1", hit.ID)
	assert.Equal(t, "some text", hit.Content)
	assert.Equal(t, "spec.pdf", *hit.Filename)
	assert.Equal(t, 12, *hit.PageNum)
	assert.Equal(t, "p1", hit.ProjectID)
	assert.Equal(t, "blk-9", hit.BlockID)
	assert.Equal(t, "sec-3", hit.SectionID)
	assert.False(t, hit.IsGraph)

	bare := hitFromPoint(vector.Point{ID: "doc-2", Score: 0.5})
	assert.Nil(t, bare.Filename)
	assert.Nil(t, bare.PageNum)
}

func TestMergeHitsSkipsEmptyIDs(t *testing.T) {
	merged := mergeHits([][]model.SearchHit{
		{{ID: "a"}, {ID: ""}},
		{{ID: "a"}, {ID: "b"}},
	})
	assert.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "b", merged[1].ID)
}
