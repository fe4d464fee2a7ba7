package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pdfchat-backend/internal/vectorindex"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) (*Index, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	idx, err := New(Config{Host: srv.URL, APIKey: "test-key"})
	if err != nil {
		srv.Close()
		t.Fatalf("New: %v", err)
	}
	return idx, srv.Close
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Host: "", APIKey: "k"}); err == nil {
		t.Fatal("expected error for empty host")
	}
	if _, err := New(Config{Host: "https://idx.example", APIKey: " "}); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestUpsertSendsNamespaceAndMetadata(t *testing.T) {
	var got upsertRequest
	idx, closeFn := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "test-key" {
			t.Errorf("Api-Key = %q", r.Header.Get("Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"upsertedCount":1}`)
	})
	defer closeFn()

	err := idx.Upsert(context.Background(), "doc-1", []vectorindex.Vector{
		{ID: "doc-1-0", Values: []float32{0.1, 0.2}, Text: "chunk text"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got.Namespace != "doc-1" {
		t.Fatalf("namespace = %q", got.Namespace)
	}
	if len(got.Vectors) != 1 || got.Vectors[0].Metadata["text"] != "chunk text" {
		t.Fatalf("vectors = %+v", got.Vectors)
	}
}

func TestQueryParsesMatches(t *testing.T) {
	idx, closeFn := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.TopK != 4 || !req.IncludeMetadata {
			t.Errorf("req = %+v", req)
		}
		fmt.Fprint(w, `{"matches":[
			{"id":"a","score":0.92,"metadata":{"text":"first"}},
			{"id":"b","score":0.81,"metadata":{"text":"second"}}
		]}`)
	})
	defer closeFn()

	matches, err := idx.Query(context.Background(), "doc-1", []float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" || matches[0].Text != "first" || matches[1].ID != "b" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestQueryMapsNotFoundToNamespaceError(t *testing.T) {
	idx, closeFn := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	_, err := idx.Query(context.Background(), "missing", []float32{1}, 4)
	if !errors.Is(err, vectorindex.ErrNamespaceNotFound) {
		t.Fatalf("expected ErrNamespaceNotFound, got %v", err)
	}
}

func TestDeleteNamespaceSendsDeleteAll(t *testing.T) {
	var got deleteRequest
	idx, closeFn := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/delete" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{}`)
	})
	defer closeFn()

	if err := idx.DeleteNamespace(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteNamespace: %v", err)
	}
	if !got.DeleteAll || got.Namespace != "doc-1" {
		t.Fatalf("request = %+v", got)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	idx, closeFn := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})
	defer closeFn()

	err := idx.Upsert(context.Background(), "ns", []vectorindex.Vector{{ID: "a", Values: []float32{1}}})
	if err == nil {
		t.Fatal("expected error")
	}
}
