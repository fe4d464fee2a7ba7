// Package memory provides an in-process vector index for dev and tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"pdfchat-backend/internal/vectorindex"
)

// Index stores vectors per namespace and ranks queries by cosine similarity.
type Index struct {
	mu   sync.RWMutex
	data map[string][]vectorindex.Vector
}

// New constructs an empty in-memory index.
func New() *Index {
	return &Index{
		data: make(map[string][]vectorindex.Vector),
	}
}

// Upsert stores vectors in the namespace, replacing entries with the same ID.
func (x *Index) Upsert(ctx context.Context, namespace string, vectors []vectorindex.Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	existing := x.data[namespace]
	for _, v := range vectors {
		replaced := false
		for i := range existing {
			if existing[i].ID == v.ID {
				existing[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, v)
		}
	}
	x.data[namespace] = existing
	return nil
}

// Query returns the topK most similar vectors from the namespace.
func (x *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorindex.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	stored, ok := x.data[namespace]
	if !ok {
		return nil, vectorindex.ErrNamespaceNotFound
	}
	if topK <= 0 {
		return []vectorindex.Match{}, nil
	}

	matches := make([]vectorindex.Match, 0, len(stored))
	for _, v := range stored {
		matches = append(matches, vectorindex.Match{
			ID:    v.ID,
			Score: cosineSimilarity(vector, v.Values),
			Text:  v.Text,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteNamespace removes a namespace and all of its vectors.
func (x *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.data, namespace)
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vectorindex.Index = (*Index)(nil)
