package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

// Client queries the per-course transcript collections over Qdrant's HTTP
// API. Collections are assumed pre-indexed by the ingestion tooling; this
// client is read-only.
type Client struct {
	baseURL     string
	collections map[domain.Course]string
	httpClient  *http.Client
}

func New(baseURL string, collections map[domain.Course]string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		collections: collections,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) collection(course domain.Course) (string, error) {
	name, ok := c.collections[course]
	if !ok || name == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve collection", fmt.Errorf("no collection for course %q", course))
	}
	return name, nil
}

// Search runs a dense-vector search against the course collection.
func (c *Client) Search(ctx context.Context, course domain.Course, queryVector []float32, limit int) ([]domain.SearchResultItem, error) {
	collection, err := c.collection(course)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	return c.search(ctx, collection, reqBody)
}

// SearchLexical runs a sparse BM25-hashed search against the course
// collection's lexical vector.
func (c *Client) SearchLexical(ctx context.Context, course domain.Course, queryText string, limit int) ([]domain.SearchResultItem, error) {
	collection, err := c.collection(course)
	if err != nil {
		return nil, err
	}

	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "lexical",
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	return c.search(ctx, collection, reqBody)
}

func (c *Client) search(ctx context.Context, collection string, reqBody map[string]any) ([]domain.SearchResultItem, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return nil, fmt.Errorf("qdrant search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.SearchResultItem, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.SearchResultItem{
			ID:          fmt.Sprintf("%v", r.ID),
			Text:        getStringPayload(r.Payload, "text"),
			StartTime:   getFloatPayload(r.Payload, "start_time"),
			EndTime:     getFloatPayload(r.Payload, "end_time"),
			VideoID:     getStringPayload(r.Payload, "video_id"),
			CourseID:    getStringPayload(r.Payload, "course_id"),
			SectionID:   getStringPayload(r.Payload, "section_id"),
			SectionName: getStringPayload(r.Payload, "section_name"),
			Topics:      getStringSlicePayload(r.Payload, "topics"),
			Score:       r.Score,
		})
	}
	return out, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getFloatPayload(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case int:
		return float64(v)
	default:
		return 0
	}
}

func getStringSlicePayload(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
