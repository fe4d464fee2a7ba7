package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/queue"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/telemetry"
)

type capturingQueue struct {
	sent []queue.Message
}

func (q *capturingQueue) Send(ctx context.Context, msg queue.Message) error {
	q.sent = append(q.sent, msg)
	return nil
}

func TestQueueDispatchCarriesRequestID(t *testing.T) {
	q := &capturingQueue{}
	d := &QueueDispatcher{Queue: q}

	ctx := telemetry.WithRequestID(context.Background(), "req-abc-123")
	if err := d.Dispatch(ctx, "user-1", "doc-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(q.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(q.sent))
	}
	msg := q.sent[0]
	if msg.RequestID != "req-abc-123" {
		t.Fatalf("RequestID = %q, want %q", msg.RequestID, "req-abc-123")
	}
	if msg.DocumentID != "doc-1" || msg.UserID != "user-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.EnqueuedAt == "" || msg.Version != 1 {
		t.Fatalf("missing envelope fields in %+v", msg)
	}
}

func TestQueueDispatchWithoutRequestID(t *testing.T) {
	q := &capturingQueue{}
	d := &QueueDispatcher{Queue: q}

	if err := d.Dispatch(context.Background(), "user-1", "doc-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if q.sent[0].RequestID != "" {
		t.Fatalf("RequestID = %q, want empty", q.sent[0].RequestID)
	}
}

// The ID from the X-Request-Id header must survive the trip through the
// middleware and c.Request.Context() into the queued message.
func TestQueueDispatchSeesHeaderRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	q := &capturingQueue{}
	d := &QueueDispatcher{Queue: q}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/documents", func(c *gin.Context) {
		if err := d.Dispatch(c.Request.Context(), "user-1", "doc-1"); err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	req.Header.Set("X-Request-Id", "req-abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if len(q.sent) != 1 || q.sent[0].RequestID != "req-abc-123" {
		t.Fatalf("queued messages = %+v, want one with RequestID %q", q.sent, "req-abc-123")
	}
}
