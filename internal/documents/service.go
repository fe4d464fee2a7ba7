package documents

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/shared/storage/object"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/vectorindex"
)

const mimePDF = "application/pdf"

// Ingestor hands a freshly stored document to the ingestion pipeline. In
// production this enqueues a job; in dev it may run the pipeline inline.
type Ingestor interface {
	Dispatch(ctx context.Context, userID, documentID string) error
}

// Service contains business logic for documents.
type Service struct {
	Store    object.ObjectStore
	Repo     DocumentsRepo
	Messages messages.Repo
	Index    vectorindex.Index
	Ingest   Ingestor
}

// Upload saves a PDF to object storage, records it as PENDING, and hands it
// to the ingestion pipeline.
func (s *Service) Upload(ctx context.Context, userId, fileName string, r io.Reader) (Document, error) {
	if fileName == "" {
		return Document{}, ErrInvalidInput
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return Document{}, ErrInvalidInput
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, userId, fileName, r)
	if err != nil {
		return Document{}, err
	}
	if normalizeMime(mimeType) != mimePDF {
		s.discardStored(ctx, storageKey)
		return Document{}, ErrInvalidInput
	}

	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userId,
		FileName:         fileName,
		OriginalFilename: fileName,
		MimeType:         mimePDF,
		SizeBytes:        size,
		StorageKey:       storageKey,
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		// No record points at the object; leaving it would orphan it.
		s.discardStored(ctx, storageKey)
		return Document{}, err
	}

	if err := s.dispatch(ctx, doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

// discardStored best-effort removes an object left behind by a failed upload.
func (s *Service) discardStored(ctx context.Context, storageKey string) {
	if err := s.Store.Delete(ctx, storageKey); err != nil {
		telemetry.Error("discard stored upload", map[string]any{
			"storage_key": storageKey,
			"error":       err.Error(),
		})
	}
}

// CreateFromS3 records a document that was uploaded straight to object
// storage via a presigned URL. Idempotent on the storage key: a repeated
// callback for the same key returns the existing document.
func (s *Service) CreateFromS3(ctx context.Context, userId, storageKey, originalFileName, contentType string, sizeBytes int64) (Document, error) {
	if storageKey == "" || originalFileName == "" {
		return Document{}, ErrInvalidInput
	}
	if normalizeMime(contentType) != mimePDF {
		return Document{}, ErrInvalidInput
	}

	if existing, err := s.Repo.GetByStorageKey(ctx, userId, storageKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Document{}, err
	}

	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userId,
		FileName:         originalFileName,
		OriginalFilename: originalFileName,
		MimeType:         mimePDF,
		SizeBytes:        sizeBytes,
		StorageProvider:  "s3",
		StorageKey:       storageKey,
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	if err := s.dispatch(ctx, doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

// Get returns one of the user's documents.
func (s *Service) Get(ctx context.Context, userId, documentID string) (Document, error) {
	if userId == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userId, documentID)
}

// GetByStorageKey looks a document up by its object storage key.
func (s *Service) GetByStorageKey(ctx context.Context, userId, storageKey string) (Document, error) {
	if userId == "" || storageKey == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByStorageKey(ctx, userId, storageKey)
}

// List returns the user's documents, newest first.
func (s *Service) List(ctx context.Context, userId string, limit, offset int) ([]Document, error) {
	if userId == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userId, limit, offset)
}

// Delete removes the document record and then cleans up its messages,
// vectors, and stored object. Cleanup failures are logged, not surfaced: the
// record is already gone and the leftovers are unreachable.
func (s *Service) Delete(ctx context.Context, userId, documentID string) error {
	if userId == "" || documentID == "" {
		return ErrInvalidInput
	}

	doc, err := s.Repo.GetByID(ctx, userId, documentID)
	if err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, userId, documentID); err != nil {
		return err
	}

	if err := s.Messages.DeleteByDocument(ctx, documentID); err != nil {
		telemetry.Error("delete document messages", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
	if err := s.Index.DeleteNamespace(ctx, documentID); err != nil && !errors.Is(err, vectorindex.ErrNamespaceNotFound) {
		telemetry.Error("delete document vectors", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		telemetry.Error("delete document object", map[string]any{
			"document_id": documentID,
			"storage_key": doc.StorageKey,
			"error":       err.Error(),
		})
	}

	return nil
}

func (s *Service) dispatch(ctx context.Context, doc Document) error {
	if s.Ingest == nil {
		return nil
	}
	if err := s.Ingest.Dispatch(ctx, doc.UserID, doc.ID); err != nil {
		telemetry.Error("dispatch ingest", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		if markErr := s.Repo.UpdateStatus(ctx, doc.ID, StatusFailed, "failed to queue ingestion"); markErr != nil {
			telemetry.Error("mark dispatch failure", map[string]any{
				"document_id": doc.ID,
				"error":       markErr.Error(),
			})
		}
		return err
	}
	return nil
}

func normalizeMime(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}
