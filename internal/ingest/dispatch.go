package ingest

import (
	"context"
	"time"

	"pdfchat-backend/internal/queue"
	"pdfchat-backend/internal/shared/telemetry"
)

// QueueDispatcher enqueues ingestion jobs for the worker process.
type QueueDispatcher struct {
	Queue queue.Client
}

// Dispatch sends the job to the queue.
func (d *QueueDispatcher) Dispatch(ctx context.Context, userID, documentID string) error {
	return d.Queue.Send(ctx, queue.Message{
		DocumentID: documentID,
		UserID:     userID,
		RequestID:  telemetry.RequestIDFrom(ctx),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	})
}

// InlineDispatcher runs ingestion in-process, detached from the request. Used
// in dev when no queue is configured.
type InlineDispatcher struct {
	Svc *Service
}

// Dispatch starts ingestion in the background and returns immediately; the
// document's status records the outcome.
func (d *InlineDispatcher) Dispatch(ctx context.Context, userID, documentID string) error {
	requestID := telemetry.RequestIDFrom(ctx)
	go func() {
		bg, cancel := context.WithTimeout(telemetry.WithRequestID(context.Background(), requestID), 10*time.Minute)
		defer cancel()
		if err := d.Svc.Ingest(bg, userID, documentID); err != nil {
			telemetry.Error("inline ingest failed", map[string]any{
				"document_id": documentID,
				"request_id":  requestID,
				"error":       err.Error(),
			})
		}
	}()
	return nil
}
