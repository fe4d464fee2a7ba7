// Package vectorindex abstracts the similarity index holding embedded
// document chunks. Each document gets its own namespace, so a query can never
// surface chunks from another document.
package vectorindex

import (
	"context"
	"errors"
)

// ErrNamespaceNotFound is returned when a query targets a namespace that was
// never populated (e.g. ingestion has not completed). Callers may treat this
// as "no context available" rather than a hard failure.
var ErrNamespaceNotFound = errors.New("vector namespace not found")

// Vector is an embedded chunk of document text.
type Vector struct {
	ID     string
	Values []float32
	Text   string
}

// Match is a query result, scored by similarity.
type Match struct {
	ID    string
	Score float32
	Text  string
}

// Index is the contract for a per-namespace similarity index.
type Index interface {
	// Upsert stores vectors in the given namespace, creating it if needed.
	Upsert(ctx context.Context, namespace string, vectors []Vector) error

	// Query returns up to topK matches from the namespace, ordered by
	// decreasing similarity.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// DeleteNamespace removes a namespace and everything in it.
	DeleteNamespace(ctx context.Context, namespace string) error
}
