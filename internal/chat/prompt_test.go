package chat

import (
	"strings"
	"testing"

	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/messages"
)

func TestBuildPromptShape(t *testing.T) {
	history := []messages.Message{
		{IsUserMessage: true, Text: "what is this about?"},
		{IsUserMessage: false, Text: "a quarterly report"},
	}
	chunks := []string{"chunk one", "chunk two"}

	prompt := BuildPrompt(history, chunks, "what was the revenue?")

	if len(prompt) != 2 {
		t.Fatalf("expected 2 prompt messages, got %d", len(prompt))
	}
	if prompt[0].Role != llm.RoleSystem {
		t.Fatalf("first message role = %q", prompt[0].Role)
	}
	if prompt[1].Role != llm.RoleUser {
		t.Fatalf("second message role = %q", prompt[1].Role)
	}

	body := prompt[1].Content
	prev := strings.Index(body, "PREVIOUS CONVERSATION:")
	ctxBlock := strings.Index(body, "CONTEXT:")
	input := strings.Index(body, "USER INPUT:")
	if prev == -1 || ctxBlock == -1 || input == -1 {
		t.Fatalf("missing block:\n%s", body)
	}
	if !(prev < ctxBlock && ctxBlock < input) {
		t.Fatalf("blocks out of order:\n%s", body)
	}
	if !strings.Contains(body, "User: what is this about?") {
		t.Fatalf("missing user history line:\n%s", body)
	}
	if !strings.Contains(body, "Assistant: a quarterly report") {
		t.Fatalf("missing assistant history line:\n%s", body)
	}
	if !strings.Contains(body, "chunk one\n\nchunk two") {
		t.Fatalf("chunks not joined in retrieval order:\n%s", body)
	}
	if !strings.HasSuffix(body, "USER INPUT: what was the revenue?") {
		t.Fatalf("question not last:\n%s", body)
	}
	if !strings.Contains(body, "you don't know") {
		t.Fatalf("missing refusal instruction:\n%s", body)
	}
}

func TestBuildPromptEmptyHistoryAndContext(t *testing.T) {
	prompt := BuildPrompt(nil, nil, "q")
	body := prompt[1].Content
	if !strings.Contains(body, "PREVIOUS CONVERSATION:") || !strings.Contains(body, "CONTEXT:") {
		t.Fatalf("blocks must always be present:\n%s", body)
	}
	if !strings.HasSuffix(body, "USER INPUT: q") {
		t.Fatalf("question not last:\n%s", body)
	}
}
