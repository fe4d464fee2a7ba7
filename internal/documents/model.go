package documents

import "time"

// Ingestion status values for a document. Chat is only served once a
// document reaches StatusSuccess.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
)

// Document represents an uploaded PDF owned by a user.
type Document struct {
	ID               string
	UserID           string
	FileName         string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	Status           string
	IngestError      string
	CreatedAt        time.Time
}
