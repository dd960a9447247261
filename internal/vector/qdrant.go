package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/graphite/internal/config"
)

// Client implements Index against Qdrant's REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(cfg config.QdrantConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "qdrant_client")),
	}
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", c.apiKey)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Collections lists all collection names in the index.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Result.Collections))
	for _, col := range resp.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// Query runs one nearest-neighbor search against a collection.
func (c *Client) Query(ctx context.Context, collection string, vector []float32, limit int) ([]Point, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if limit <= 0 {
		return []Point{}, nil
	}

	req := struct {
		Vector      []float32 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
		WithVector  bool      `json:"with_vector"`
	}{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		WithVector:  false,
	}

	type qdrantResult struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	var resp struct {
		Result []qdrantResult `json:"result"`
		Status string         `json:"status"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	out := make([]Point, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, Point{
			ID:      pointIDString(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}

	c.logger.Debug("qdrant search completed",
		zap.String("collection", collection),
		zap.Int("hits", len(out)))

	return out, nil
}

// Qdrant point IDs are either UUID strings or unsigned integers.
func pointIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
