package messages

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("message not found")
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Repo defines persistence operations for the per-document message log.
type Repo interface {
	// Append durably stores a new message and returns it with its assigned
	// sequence number and timestamp.
	Append(ctx context.Context, msg Message) (Message, error)

	// ListRecent returns the most recent limit messages for a document,
	// ordered oldest-first.
	ListRecent(ctx context.Context, documentID string, limit int) ([]Message, error)

	// ListPage returns up to limit messages newest-first starting from the
	// given cursor (empty cursor means the newest page), plus the cursor for
	// the next page ("" when exhausted).
	ListPage(ctx context.Context, documentID string, limit int, cursor string) ([]Message, string, error)

	// DeleteByDocument removes all messages for a document.
	DeleteByDocument(ctx context.Context, documentID string) error
}
