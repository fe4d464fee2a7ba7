// Package chat implements the conversation engine: one question against one
// ingested document, answered with retrieved context and streamed back token
// by token.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/vectorindex"
)

const (
	// retrievalTopK is how many chunks are pulled from the document's
	// namespace for each question.
	retrievalTopK = 4

	// historyLimit is how many prior messages are replayed into the prompt.
	historyLimit = 6

	maxQuestionLen = 8192
)

// Service orchestrates a single conversation turn.
type Service struct {
	Docs     documents.DocumentsRepo
	Messages messages.Repo
	Embedder embedding.Embedder
	Index    vectorindex.Index
	Streamer llm.Streamer
}

// StreamTurn runs one turn: persist the question, retrieve context, stream
// the completion through onToken, and persist the assistant's answer only
// once the provider finished it. On any failure after step 3 the user
// message stands alone; no assistant message is ever persisted for a failed
// or cancelled turn.
func (s *Service) StreamTurn(ctx context.Context, userID, documentID, question string, onToken func(string)) (messages.Message, error) {
	question = strings.TrimSpace(question)
	if userID == "" || documentID == "" || question == "" || len(question) > maxQuestionLen {
		return messages.Message{}, ErrValidation
	}

	doc, err := s.Docs.GetByID(ctx, userID, documentID)
	if err != nil {
		return messages.Message{}, err
	}
	if doc.Status != documents.StatusSuccess {
		return messages.Message{}, documents.ErrNotReady
	}

	metrics.IncChatTurnStarted()
	start := metrics.NowMillis()

	userMsg, err := s.Messages.Append(ctx, messages.Message{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		UserID:        userID,
		IsUserMessage: true,
		Text:          question,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		metrics.IncChatTurnFailed()
		return messages.Message{}, fmt.Errorf("persist user message: %w", err)
	}

	answer, err := s.complete(ctx, doc, userMsg, question, onToken)
	if err != nil {
		metrics.IncChatTurnFailed()
		return messages.Message{}, err
	}

	assistantMsg, err := s.Messages.Append(ctx, messages.Message{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		UserID:        userID,
		IsUserMessage: false,
		Text:          answer,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		metrics.IncChatTurnFailed()
		return messages.Message{}, fmt.Errorf("persist assistant message: %w", err)
	}

	metrics.IncChatTurnCompleted()
	metrics.ObserveChatTurnDurationMs(metrics.NowMillis() - start)
	telemetry.Info("chat turn completed", map[string]any{
		"document_id": doc.ID,
		"answer_len":  len(answer),
	})
	return assistantMsg, nil
}

// complete runs retrieval and streaming; it returns the full answer text
// only when the provider signalled completion.
func (s *Service) complete(ctx context.Context, doc documents.Document, userMsg messages.Message, question string, onToken func(string)) (string, error) {
	vector, err := s.Embedder.Embed(ctx, question)
	if err != nil {
		return "", wrapProvider("embed question", err)
	}

	chunks, err := s.retrieve(ctx, doc.ID, vector)
	if err != nil {
		return "", err
	}

	history, err := s.history(ctx, doc.ID, userMsg.ID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	prompt := BuildPrompt(history, chunks, question)

	answer, err := s.Streamer.StreamChat(ctx, prompt, onToken)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", wrapProvider("stream completion", err)
	}
	return answer, nil
}

func (s *Service) retrieve(ctx context.Context, documentID string, vector []float32) ([]string, error) {
	matches, err := s.Index.Query(ctx, documentID, vector, retrievalTopK)
	if err != nil {
		if errors.Is(err, vectorindex.ErrNamespaceNotFound) {
			// The document was marked ready but its namespace is gone
			// (index wiped, re-ingest pending). Answer from history alone.
			metrics.IncRetrievalDegraded()
			telemetry.Error("retrieval degraded, namespace missing", map[string]any{
				"document_id": documentID,
			})
			return nil, nil
		}
		return nil, wrapProvider("query vector index", err)
	}

	chunks := make([]string, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, m.Text)
	}
	return chunks, nil
}

// history returns up to historyLimit prior messages, oldest-first, excluding
// the turn's own user message which was appended moments ago.
func (s *Service) history(ctx context.Context, documentID, excludeID string) ([]messages.Message, error) {
	recent, err := s.Messages.ListRecent(ctx, documentID, historyLimit+1)
	if err != nil {
		return nil, err
	}
	prior := make([]messages.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID == excludeID {
			continue
		}
		prior = append(prior, m)
	}
	if len(prior) > historyLimit {
		prior = prior[len(prior)-historyLimit:]
	}
	return prior, nil
}

func wrapProvider(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrProvider, err)
}
