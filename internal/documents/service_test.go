package documents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/shared/storage/object"
	"pdfchat-backend/internal/shared/storage/object/local"
	"pdfchat-backend/internal/vectorindex"
	vmemory "pdfchat-backend/internal/vectorindex/memory"
)

type recordingStore struct {
	object.ObjectStore
	deleted []string
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return s.ObjectStore.Delete(ctx, key)
}

type failingCreateRepo struct {
	DocumentsRepo
	err error
}

func (r *failingCreateRepo) Create(ctx context.Context, doc Document) error {
	return r.err
}

type recordingIngestor struct {
	dispatched []string
	err        error
}

func (r *recordingIngestor) Dispatch(ctx context.Context, userID, documentID string) error {
	if r.err != nil {
		return r.err
	}
	r.dispatched = append(r.dispatched, documentID)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingIngestor) {
	t.Helper()
	ing := &recordingIngestor{}
	svc := &Service{
		Store:    local.New(t.TempDir()),
		Repo:     NewMemoryRepo(),
		Messages: messages.NewMemoryRepo(),
		Index:    vmemory.New(),
		Ingest:   ing,
	}
	return svc, ing
}

const pdfStub = "%PDF-1.4\n1 0 obj\nstub\nendobj\n"

func TestUploadCreatesPendingAndDispatches(t *testing.T) {
	svc, ing := newTestService(t)

	doc, err := svc.Upload(context.Background(), "user-1", "report.pdf", strings.NewReader(pdfStub))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Status != StatusPending {
		t.Fatalf("status = %q, want %q", doc.Status, StatusPending)
	}
	if doc.MimeType != "application/pdf" {
		t.Fatalf("mimeType = %q", doc.MimeType)
	}
	if len(ing.dispatched) != 1 || ing.dispatched[0] != doc.ID {
		t.Fatalf("dispatched = %v, want [%s]", ing.dispatched, doc.ID)
	}
}

func TestUploadRejectsNonPDFExtension(t *testing.T) {
	svc, ing := newTestService(t)

	_, err := svc.Upload(context.Background(), "user-1", "notes.txt", strings.NewReader("hello"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(ing.dispatched) != 0 {
		t.Fatal("nothing should be dispatched for a rejected upload")
	}
}

func TestUploadRejectsMismatchedContent(t *testing.T) {
	svc, _ := newTestService(t)

	// .pdf name but plain text payload
	_, err := svc.Upload(context.Background(), "user-1", "fake.pdf", strings.NewReader("just some text, not a pdf at all; padding to defeat sniffing heuristics"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRejectedContentDiscardsStoredObject(t *testing.T) {
	svc, _ := newTestService(t)
	store := &recordingStore{ObjectStore: svc.Store}
	svc.Store = store

	_, err := svc.Upload(context.Background(), "user-1", "fake.pdf", strings.NewReader("just some text, not a pdf at all; padding to defeat sniffing heuristics"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("deleted = %v, want exactly the rejected object", store.deleted)
	}
}

func TestUploadCreateFailureDiscardsStoredObject(t *testing.T) {
	svc, ing := newTestService(t)
	store := &recordingStore{ObjectStore: svc.Store}
	svc.Store = store
	svc.Repo = &failingCreateRepo{DocumentsRepo: svc.Repo, err: errors.New("db down")}

	_, err := svc.Upload(context.Background(), "user-1", "report.pdf", strings.NewReader(pdfStub))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.deleted) != 1 {
		t.Fatalf("deleted = %v, want the orphaned object cleaned up", store.deleted)
	}
	if len(ing.dispatched) != 0 {
		t.Fatal("nothing should be dispatched when the record was never created")
	}
}

func TestUploadDispatchFailureMarksFailed(t *testing.T) {
	svc, ing := newTestService(t)
	ing.err = errors.New("queue unavailable")

	_, err := svc.Upload(context.Background(), "user-1", "report.pdf", strings.NewReader(pdfStub))
	if err == nil {
		t.Fatal("expected error")
	}

	docs, listErr := svc.List(context.Background(), "user-1", 10, 0)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(docs) != 1 || docs[0].Status != StatusFailed {
		t.Fatalf("expected one FAILED document, got %+v", docs)
	}
}

func TestCreateFromS3Idempotent(t *testing.T) {
	svc, ing := newTestService(t)

	first, err := svc.CreateFromS3(context.Background(), "user-1", "uploads/abc.pdf", "abc.pdf", "application/pdf", 123)
	if err != nil {
		t.Fatalf("CreateFromS3: %v", err)
	}
	second, err := svc.CreateFromS3(context.Background(), "user-1", "uploads/abc.pdf", "abc.pdf", "application/pdf", 123)
	if err != nil {
		t.Fatalf("CreateFromS3 repeat: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same document, got %s and %s", first.ID, second.ID)
	}
	if len(ing.dispatched) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(ing.dispatched))
	}
}

func TestCreateFromS3RejectsNonPDF(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateFromS3(context.Background(), "user-1", "uploads/abc.png", "abc.png", "image/png", 123)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "report.pdf", strings.NewReader(pdfStub))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	msgRepo := svc.Messages.(*messages.MemoryRepo)
	if _, err := msgRepo.Append(ctx, messages.Message{ID: "m1", DocumentID: doc.ID, UserID: "user-1", IsUserMessage: true, Text: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := svc.Index.Upsert(ctx, doc.ID, []vectorindex.Vector{{ID: "v1", Values: []float32{1}, Text: "x"}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := svc.Delete(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := svc.Get(ctx, "user-1", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if msgs, _ := msgRepo.ListRecent(ctx, doc.ID, 10); len(msgs) != 0 {
		t.Fatalf("expected messages removed, got %d", len(msgs))
	}
	if _, err := svc.Index.Query(ctx, doc.ID, []float32{1}, 1); !errors.Is(err, vectorindex.ErrNamespaceNotFound) {
		t.Fatalf("expected namespace removed, got %v", err)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "report.pdf", strings.NewReader(pdfStub))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := svc.Delete(ctx, "user-2", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := svc.Get(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("document should survive: %v", err)
	}
}
