// Package pinecone is a minimal REST client to a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdfchat-backend/internal/vectorindex"
)

// Index talks to one Pinecone index over its data-plane host URL.
type Index struct {
	host   string
	apiKey string
	client *http.Client
}

// Config configures the Pinecone client.
type Config struct {
	// Host is the index data-plane URL, e.g. https://my-index-abc123.svc.us-east-1-aws.pinecone.io.
	Host    string
	APIKey  string
	Timeout time.Duration
}

// New constructs a Pinecone index client.
func New(cfg Config) (*Index, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("PINECONE_INDEX_HOST is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		host:   host,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace"`
}

type upsertVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Upsert stores vectors in the given namespace.
func (x *Index) Upsert(ctx context.Context, namespace string, vectors []vectorindex.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	req := upsertRequest{
		Namespace: namespace,
		Vectors:   make([]upsertVector, 0, len(vectors)),
	}
	for _, v := range vectors {
		req.Vectors = append(req.Vectors, upsertVector{
			ID:       v.ID,
			Values:   v.Values,
			Metadata: map[string]string{"text": v.Text},
		})
	}
	return x.postJSON(ctx, "/vectors/upsert", req, nil)
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float32           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

// Query returns the topK most similar vectors from the namespace, best first.
func (x *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorindex.Match, error) {
	if topK <= 0 {
		return []vectorindex.Match{}, nil
	}
	req := queryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	var resp queryResponse
	if err := x.postJSON(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}
	matches := make([]vectorindex.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vectorindex.Match{
			ID:    m.ID,
			Score: m.Score,
			Text:  m.Metadata["text"],
		})
	}
	return matches, nil
}

type deleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace"`
}

// DeleteNamespace drops every vector in the namespace.
func (x *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	return x.postJSON(ctx, "/vectors/delete", deleteRequest{DeleteAll: true, Namespace: namespace})
}

func (x *Index) postJSON(ctx context.Context, path string, body any, out ...any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.host+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", x.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return vectorindex.ErrNamespaceNotFound
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pinecone POST %s: %s: %s", path, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if len(out) > 0 && out[0] != nil {
		return json.NewDecoder(resp.Body).Decode(out[0])
	}
	return nil
}

var _ vectorindex.Index = (*Index)(nil)
