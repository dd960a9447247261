package core

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/graphite/internal/vector"
)

// MockLLM answers by system prompt: the analyzer prompt gets the keyword
// JSON, the expansion prompt gets the alternates, anything else gets
// Response. Safe for the concurrent analyzer calls.
type MockLLM struct {
	mu sync.Mutex

	KeywordResponse string
	ExpandResponse  string
	Response        string
	Err             error

	Calls int
}

func (m *MockLLM) Complete(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	switch {
	case strings.Contains(system, "query analyzer"):
		return m.KeywordResponse, nil
	case strings.Contains(system, "search query generator"):
		return m.ExpandResponse, nil
	}
	return m.Response, nil
}

// MockEmbedder maps each input text to a one-element vector via VectorKey,
// so MockIndex can tell query variants apart.
type MockEmbedder struct {
	mu sync.Mutex

	VectorKey map[string]float32
	ErrFor    map[string]error
	Err       error

	Calls int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.ErrFor[text]; ok {
		return nil, err
	}
	if key, ok := m.VectorKey[text]; ok {
		return []float32{key}, nil
	}
	return []float32{0}, nil
}

// MockIndex serves collection names and per-vector-key search results.
type MockIndex struct {
	CollectionNames []string
	CollectionsErr  error

	// ResultsByKey is keyed by the first vector element set via
	// MockEmbedder.VectorKey.
	ResultsByKey map[float32][]vector.Point
	QueryErr     error
}

func (m *MockIndex) Collections(ctx context.Context) ([]string, error) {
	if m.CollectionsErr != nil {
		return nil, m.CollectionsErr
	}
	return m.CollectionNames, nil
}

func (m *MockIndex) Query(ctx context.Context, collection string, vec []float32, limit int) ([]vector.Point, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(vec) == 0 {
		return nil, nil
	}
	return m.ResultsByKey[vec[0]], nil
}

// MockScorer returns fixed scores in input order.
type MockScorer struct {
	Scores []float64
	Err    error
}

func (m *MockScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Scores != nil {
		return m.Scores, nil
	}
	return make([]float64, len(texts)), nil
}

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	MockResult    neo4j.EagerResult
	Err           error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func point(id string, score float64, content string) vector.Point {
	return vector.Point{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"content": content,
		},
	}
}
