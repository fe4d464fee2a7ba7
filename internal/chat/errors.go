package chat

import "errors"

// ErrValidation indicates a malformed question; nothing was persisted.
var ErrValidation = errors.New("validation failed")

// ErrProvider indicates an upstream AI provider failure (embeddings, vector
// index, or completion). The user message is already persisted when this is
// returned; the assistant message never is.
var ErrProvider = errors.New("provider failure")
