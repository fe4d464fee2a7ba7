package messages

import "time"

// Message is one conversational turn on a document. Messages are append-only:
// once written they are never mutated, and they are only removed when the
// owning document is deleted.
type Message struct {
	ID            string
	DocumentID    string
	UserID        string
	IsUserMessage bool
	Text          string
	CreatedAt     time.Time
	// Seq is the insertion sequence used to break created-at ties so every
	// document has a single total message order.
	Seq int64
}
