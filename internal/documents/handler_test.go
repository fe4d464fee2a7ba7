package documents_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/bootstrap"
	"pdfchat-backend/internal/shared/config"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:3000"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app.Router
}

func uploadPDF(t *testing.T, router *gin.Engine, fileName string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(payload); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestDocumentsUploadAndFetch(t *testing.T) {
	router := newTestRouter(t)

	resp := uploadPDF(t, router, "manual.pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		DocumentID string `json:"documentId"`
		FileName   string `json:"fileName"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.DocumentID == "" {
		t.Fatal("expected documentId, got empty")
	}
	if created.Status != "PENDING" {
		t.Fatalf("expected status PENDING, got %s", created.Status)
	}

	// Fetch the document back. Ingestion runs in the background so the
	// status may already have moved; only identity fields are stable here.
	reqGet := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	addGuestHeader(reqGet)
	respGet := httptest.NewRecorder()
	router.ServeHTTP(respGet, reqGet)

	if respGet.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respGet.Code)
	}

	var fetched struct {
		DocumentID string `json:"documentId"`
		FileName   string `json:"fileName"`
	}
	if err := json.NewDecoder(respGet.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode fetch response: %v", err)
	}
	if fetched.DocumentID != created.DocumentID {
		t.Fatalf("expected documentId %s, got %s", created.DocumentID, fetched.DocumentID)
	}
	if fetched.FileName != "manual.pdf" {
		t.Fatalf("expected fileName manual.pdf, got %s", fetched.FileName)
	}
}

func TestDocumentsUploadRejectsNonPDF(t *testing.T) {
	router := newTestRouter(t)

	resp := uploadPDF(t, router, "notes.txt", []byte("plain text"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if body.Error.Code != "validation_error" {
		t.Fatalf("expected code validation_error, got %s", body.Error.Code)
	}
}

func TestDocumentsListScopedToUser(t *testing.T) {
	router := newTestRouter(t)

	resp := uploadPDF(t, router, "report.pdf", []byte("%PDF-1.4\n%%EOF"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	addGuestHeader(req)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var listed []struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 document, got %d", len(listed))
	}

	// Another identity sees nothing.
	reqOther := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	reqOther.Header.Set("X-Guest-Id", "other-guest")
	recorderOther := httptest.NewRecorder()
	router.ServeHTTP(recorderOther, reqOther)

	if recorderOther.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorderOther.Code)
	}
	var other []struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(recorderOther.Body).Decode(&other); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no documents for other user, got %d", len(other))
	}
}

func TestDocumentsDelete(t *testing.T) {
	router := newTestRouter(t)

	resp := uploadPDF(t, router, "old.pdf", []byte("%PDF-1.4\n%%EOF"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	var created struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	reqDel := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+created.DocumentID, nil)
	addGuestHeader(reqDel)
	recorderDel := httptest.NewRecorder()
	router.ServeHTTP(recorderDel, reqDel)

	if recorderDel.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", recorderDel.Code)
	}

	reqGet := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	addGuestHeader(reqGet)
	recorderGet := httptest.NewRecorder()
	router.ServeHTTP(recorderGet, reqGet)

	if recorderGet.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", recorderGet.Code)
	}
}

func TestDocumentsRequireIdentity(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}
