package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdfchat-backend/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	client, err := NewClient("test-key", "gpt-3.5-turbo")
	if err != nil {
		srv.Close()
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv.Close
}

func sseChunk(token string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", token)
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "gpt-3.5-turbo"); err == nil {
		t.Fatal("expected error for empty api key")
	}
	if _, err := NewClient("key", "  "); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestStreamChatConcatenatesDeltas(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("The "))
		fmt.Fprint(w, sseChunk("revenue "))
		fmt.Fprint(w, sseChunk("grew."))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	defer closeFn()

	var tokens []string
	got, err := client.StreamChat(context.Background(), []llm.ChatMessage{
		{Role: llm.RoleUser, Content: "hi"},
	}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if got != "The revenue grew." {
		t.Fatalf("full text = %q", got)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 token callbacks, got %d: %v", len(tokens), tokens)
	}
}

func TestStreamChatSurfacesAPIError(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})
	defer closeFn()

	_, err := client.StreamChat(context.Background(), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestStreamChatErrorsOnTruncatedStream(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("partial"))
		// connection closes without [DONE]
	})
	defer closeFn()

	_, err := client.StreamChat(context.Background(), nil, func(string) {})
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestStreamChatStopsOnFinishReason(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("done"))
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
	})
	defer closeFn()

	got, err := client.StreamChat(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if got != "done" {
		t.Fatalf("full text = %q", got)
	}
}
