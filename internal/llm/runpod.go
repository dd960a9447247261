package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/graphite/internal/config"
)

// RunPodClient talks to a RunPod serverless inference endpoint. The endpoint
// accepts a single prompt plus instructions and returns the answer under one
// of several field names depending on the deployed handler.
type RunPodClient struct {
	apiURL          string
	apiToken        string
	model           string
	maxOutputTokens int
	temperature     float64
	topP            float64

	client *http.Client
	logger *zap.Logger
}

func NewRunPodClient(cfg config.RunPodConfig, logger *zap.Logger) *RunPodClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunPodClient{
		apiURL:          cfg.APIURL,
		apiToken:        cfg.APIToken,
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		client:          &http.Client{Timeout: 120 * time.Second},
		logger:          logger.With(zap.String("component", "runpod_client")),
	}
}

func (c *RunPodClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiURL == "" || c.apiToken == "" {
		return "", fmt.Errorf("runpod api_url and api_token are required")
	}

	payload := map[string]any{
		"input":             user,
		"instructions":      system,
		"model":             c.model,
		"max_output_tokens": c.maxOutputTokens,
		"temperature":       c.temperature,
		"top_p":             c.topP,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("runpod request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("runpod request failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("runpod response decode failed: %w", err)
	}

	// Handlers differ in which field carries the generated text.
	for _, key := range []string{"answer", "response", "text"} {
		if v, ok := result[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, nil
			}
		}
	}

	return "", fmt.Errorf("runpod response contains no answer field")
}
