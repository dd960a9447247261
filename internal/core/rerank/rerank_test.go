package rerank

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/graphite/internal/core/model"
)

type mockScorer struct {
	scores []float64
	err    error
	calls  int
}

func (m *mockScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

func docs(ids ...string) []model.SearchHit {
	out := make([]model.SearchHit, len(ids))
	for i, id := range ids {
		out[i] = model.SearchHit{ID: id, Content: "content " + id}
	}
	return out
}

func ids(hits []model.SearchHit) []string {
	out := make([]string, len(hits))
	for i, hit := range hits {
		out[i] = hit.ID
	}
	return out
}

func TestRerankOrdersByScore(t *testing.T) {
	scorer := &mockScorer{scores: []float64{0.2, 0.9, 0.5}}
	r := NewReranker(scorer, nil)

	out := r.Rerank(context.Background(), "q", docs("a", "b", "c"), 3)
	assert.Equal(t, []string{"b", "c", "a"}, ids(out))
	assert.Equal(t, 0.9, *out[0].RerankScore)
}

func TestRerankTruncates(t *testing.T) {
	scorer := &mockScorer{scores: []float64{0.2, 0.9, 0.5, 0.7}}
	r := NewReranker(scorer, nil)

	out := r.Rerank(context.Background(), "q", docs("a", "b", "c", "d"), 2)
	assert.Equal(t, []string{"b", "d"}, ids(out))
}

func TestRerankDeterministic(t *testing.T) {
	// Equal scores keep input order; repeated runs are identical.
	scorer := &mockScorer{scores: []float64{0.5, 0.5, 0.5}}
	r := NewReranker(scorer, nil)

	first := r.Rerank(context.Background(), "q", docs("a", "b", "c"), 3)
	second := r.Rerank(context.Background(), "q", docs("a", "b", "c"), 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(first))
	assert.Equal(t, ids(first), ids(second))
}

func TestRerankScorerFailureKeepsOrder(t *testing.T) {
	scorer := &mockScorer{err: fmt.Errorf("endpoint down")}
	r := NewReranker(scorer, nil)

	out := r.Rerank(context.Background(), "q", docs("a", "b", "c"), 2)
	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Nil(t, out[0].RerankScore)
}

func TestRerankScoreCountMismatchKeepsOrder(t *testing.T) {
	scorer := &mockScorer{scores: []float64{0.9}}
	r := NewReranker(scorer, nil)

	out := r.Rerank(context.Background(), "q", docs("a", "b", "c"), 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.Nil(t, out[0].RerankScore)
}

func TestRerankNilScorerTruncates(t *testing.T) {
	r := NewReranker(nil, nil)

	out := r.Rerank(context.Background(), "q", docs("a", "b", "c"), 2)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

func TestRerankEmptyInput(t *testing.T) {
	scorer := &mockScorer{}
	r := NewReranker(scorer, nil)

	out := r.Rerank(context.Background(), "q", nil, 5)
	assert.Empty(t, out)
	assert.Equal(t, 0, scorer.calls)
}
