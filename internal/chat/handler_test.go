package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/documents"
)

func newTestEngine(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	handler := NewHandler(f.svc, f.svc.Messages, f.docs)
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func postMessage(t *testing.T, router *gin.Engine, documentID, message string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"documentId": documentID,
		"message":    message,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestSendStreamsCompletion(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	router := newTestEngine(t, f)

	resp := postMessage(t, router, f.doc.ID, "what does it say?")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Body.String(); got != "answer" {
		t.Fatalf("body = %q, want \"answer\"", got)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if n := f.messageCount(t); n != 2 {
		t.Fatalf("expected user + assistant persisted, got %d messages", n)
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	router := newTestEngine(t, f)

	resp := postMessage(t, router, f.doc.ID, "   ")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "validation_error" {
		t.Fatalf("code = %q", code)
	}
}

func TestSendUnknownDocument(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	router := newTestEngine(t, f)

	resp := postMessage(t, router, "missing", "hello")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "not_found" {
		t.Fatalf("code = %q", code)
	}
}

func TestSendDocumentStillProcessing(t *testing.T) {
	f := newFixture(t, documents.StatusProcessing)
	router := newTestEngine(t, f)

	resp := postMessage(t, router, f.doc.ID, "hello")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "document_not_ready" {
		t.Fatalf("code = %q", code)
	}
}

func TestSendProviderFailureBeforeFirstByte(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	f.streamer.failAfter = 0
	router := newTestEngine(t, f)

	resp := postMessage(t, router, f.doc.ID, "hello")
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "provider_error" {
		t.Fatalf("code = %q", code)
	}
	if n := f.messageCount(t); n != 1 {
		t.Fatalf("expected only the user turn persisted, got %d messages", n)
	}
}

func TestListMessagesPaginates(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	router := newTestEngine(t, f)

	for i := 0; i < 5; i++ {
		f.streamer.tokens = []string{fmt.Sprintf("reply-%d", i)}
		resp := postMessage(t, router, f.doc.ID, fmt.Sprintf("question-%d", i))
		if resp.Code != http.StatusOK {
			t.Fatalf("send %d: expected status 200, got %d", i, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+f.doc.ID+"/messages?limit=4", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var page listMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(page.Messages))
	}
	// Newest-first: the latest assistant reply leads.
	if page.Messages[0].Text != "reply-4" || page.Messages[0].IsUserMessage {
		t.Fatalf("unexpected head of page: %+v", page.Messages[0])
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}

	reqNext := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+f.doc.ID+"/messages?limit=100&cursor="+page.NextCursor, nil)
	respNext := httptest.NewRecorder()
	router.ServeHTTP(respNext, reqNext)

	if respNext.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respNext.Code)
	}
	var rest listMessagesResponse
	if err := json.NewDecoder(respNext.Body).Decode(&rest); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(rest.Messages) != 6 {
		t.Fatalf("expected remaining 6 messages, got %d", len(rest.Messages))
	}
	if rest.NextCursor != "" {
		t.Fatalf("expected exhausted cursor, got %q", rest.NextCursor)
	}
}

func TestListMessagesRejectsBadCursor(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	router := newTestEngine(t, f)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+f.doc.ID+"/messages?cursor=junk", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "validation_error" {
		t.Fatalf("code = %q", code)
	}
}

func TestListMessagesRequiresOwnership(t *testing.T) {
	f := newFixture(t, documents.StatusSuccess)
	router := newTestEngine(t, f)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/not-yours/messages", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
