package chat

import (
	"strings"

	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/messages"
)

const systemInstruction = "Use the following pieces of context (or previous conversation if needed) to answer the user's question in markdown format."

const blockSeparator = "\n----------------\n"

// BuildPrompt assembles the fixed two-message prompt: a system instruction
// and a user message holding the prior conversation, the retrieved context,
// and the question. History must already be oldest-first; chunks stay in
// retrieval order.
func BuildPrompt(history []messages.Message, chunks []string, question string) []llm.ChatMessage {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\nIf you don't know the answer, just say that you don't know, don't try to make up an answer.\n")
	b.WriteString(blockSeparator)
	b.WriteString("\nPREVIOUS CONVERSATION:\n")
	for _, msg := range history {
		if msg.IsUserMessage {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	b.WriteString(blockSeparator)
	b.WriteString("\nCONTEXT:\n")
	b.WriteString(strings.Join(chunks, "\n\n"))
	b.WriteString("\n\nUSER INPUT: ")
	b.WriteString(question)

	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: systemInstruction},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
