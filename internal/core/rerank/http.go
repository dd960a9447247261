package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPScorer calls a cross-encoder inference endpoint that scores
// (query, text) pairs in one batch.
type HTTPScorer struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPScorer(endpoint, model string, logger *zap.Logger) *HTTPScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPScorer{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With(zap.String("component", "cross_encoder")),
	}
}

func (s *HTTPScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	payload := struct {
		Query string   `json:"query"`
		Texts []string `json:"texts"`
		Model string   `json:"model,omitempty"`
	}{
		Query: query,
		Texts: texts,
		Model: s.model,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cross-encoder request failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("cross-encoder response decode failed: %w", err)
	}
	if len(out.Scores) != len(texts) {
		return nil, fmt.Errorf("cross-encoder returned %d scores for %d texts", len(out.Scores), len(texts))
	}

	return out.Scores, nil
}
