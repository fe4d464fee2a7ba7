package ingest

import (
	"fmt"
	"strings"

	"pdfchat-backend/internal/extract"
)

// Chunk is one retrievable slice of a document's text.
type Chunk struct {
	ID   string
	Text string
	Page int
}

// Chunker splits page text into overlapping word-based windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ChunkPages splits every page into overlapping windows. Chunk IDs are
// deterministic so re-ingesting a document overwrites instead of duplicating.
func (c *Chunker) ChunkPages(docID string, pages []extract.Page) []Chunk {
	chunks := make([]Chunk, 0)
	index := 0
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	for _, page := range pages {
		words := strings.Fields(page.Text)
		for i := 0; i < len(words); i += step {
			end := i + c.chunkSize
			if end > len(words) {
				end = len(words)
			}
			chunks = append(chunks, Chunk{
				ID:   fmt.Sprintf("%s-%d", docID, index),
				Text: strings.Join(words[i:end], " "),
				Page: page.Number,
			})
			index++
			if end >= len(words) {
				break
			}
		}
	}
	return chunks
}
