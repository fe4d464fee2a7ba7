// Package ingest turns an uploaded PDF into retrievable vectors: extract
// page text, chunk it, embed the chunks, and upsert them into the
// document's namespace.
package ingest

import (
	"context"
	"fmt"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/extract"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/storage/object"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/vectorindex"
)

var extractPages = extract.ExtractPages

// Service runs the ingestion pipeline for one document at a time.
type Service struct {
	Docs     documents.DocumentsRepo
	Store    object.ObjectStore
	Embedder embedding.Embedder
	Index    vectorindex.Index
	Chunker  *Chunker
}

func NewService(docs documents.DocumentsRepo, store object.ObjectStore, embedder embedding.Embedder, index vectorindex.Index) *Service {
	return &Service{
		Docs:     docs,
		Store:    store,
		Embedder: embedder,
		Index:    index,
		Chunker:  NewChunker(200, 40),
	}
}

// Ingest processes one document end to end. The document ends in SUCCESS or
// FAILED; a FAILED document records the cause in ingest_error.
func (s *Service) Ingest(ctx context.Context, userID, documentID string) error {
	start := metrics.NowMillis()
	metrics.IncIngestJobsReceived()

	doc, err := s.Docs.GetByID(ctx, userID, documentID)
	if err != nil {
		metrics.IncIngestJobsFailed()
		return fmt.Errorf("ingest document=%s: %w", documentID, err)
	}

	if err := s.Docs.UpdateStatus(ctx, documentID, documents.StatusProcessing, ""); err != nil {
		metrics.IncIngestJobsFailed()
		return fmt.Errorf("ingest document=%s: mark processing: %w", documentID, err)
	}

	if err := s.run(ctx, doc); err != nil {
		metrics.IncIngestJobsFailed()
		telemetry.Error("ingest failed", map[string]any{
			"document_id": documentID,
			"request_id":  telemetry.RequestIDFrom(ctx),
			"error":       err.Error(),
		})
		// Best effort; the original error is the one worth returning.
		if markErr := s.Docs.UpdateStatus(ctx, documentID, documents.StatusFailed, err.Error()); markErr != nil {
			telemetry.Error("ingest mark failed", map[string]any{
				"document_id": documentID,
				"error":       markErr.Error(),
			})
		}
		return fmt.Errorf("ingest document=%s: %w", documentID, err)
	}

	if err := s.Docs.UpdateStatus(ctx, documentID, documents.StatusSuccess, ""); err != nil {
		metrics.IncIngestJobsFailed()
		return fmt.Errorf("ingest document=%s: mark success: %w", documentID, err)
	}

	metrics.IncIngestJobsCompleted()
	metrics.ObserveIngestDurationMs(metrics.NowMillis() - start)
	telemetry.Info("ingest completed", map[string]any{
		"document_id": documentID,
		"request_id":  telemetry.RequestIDFrom(ctx),
	})
	return nil
}

func (s *Service) run(ctx context.Context, doc documents.Document) error {
	pages, err := extractPages(ctx, s.Store, doc.StorageKey, doc.MimeType)
	if err != nil {
		return err
	}

	chunks := s.Chunker.ChunkPages(doc.ID, pages)
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	vectors := make([]vectorindex.Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = vectorindex.Vector{
			ID:     c.ID,
			Values: embeddings[i],
			Text:   c.Text,
		}
	}
	if err := s.Index.Upsert(ctx, doc.ID, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}
