package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfchat-backend/internal/shared/storage/object"
)

const mimePDF = "application/pdf"

// Page is the text of a single PDF page, 1-based.
type Page struct {
	Number int
	Text   string
}

// ExtractPages pulls per-page text from a stored PDF and persists a derived
// .extracted.txt copy next to the original object.
// Library used: github.com/ledongthuc/pdf.
func ExtractPages(ctx context.Context, store object.ObjectStore, fileKey string, mimeType string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return nil, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("extract text key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	pages, err := PagesFromBytes(ctx, raw, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	extractedKey := fileKey + ".extracted.txt"
	if err := saveExtracted(ctx, store, extractedKey, joinPages(pages)); err != nil {
		return nil, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	return pages, nil
}

// PagesFromBytes extracts per-page text from an in-memory PDF payload.
func PagesFromBytes(ctx context.Context, data []byte, mimeType string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalized := normalizeMimeType(mimeType); normalized != mimePDF {
		return nil, fmt.Errorf("unsupported mime type: %s", normalized)
	}
	return extractPDF(data)
}

type keySaver interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}

func saveExtracted(ctx context.Context, store object.ObjectStore, key string, text string) error {
	saver, ok := store.(keySaver)
	if !ok {
		return errors.New("object store does not support SaveWithKey")
	}
	reader := strings.NewReader(text)
	_, err := saver.SaveWithKey(ctx, key, "text/plain; charset=utf-8", reader)
	return err
}

func extractPDF(data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, errors.New("empty pdf data")
	}
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, err
	}

	total := pdfReader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := pdfReader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not fail the whole document.
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, errors.New("no extractable text in pdf")
	}
	return pages, nil
}

func joinPages(pages []Page) string {
	var buf strings.Builder
	for i, p := range pages {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p.Text)
	}
	return buf.String()
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}
