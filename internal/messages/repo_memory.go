package messages

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo. Messages are held in
// append order per document, which is also the total order (Seq is assigned
// from a process-wide counter).
type MemoryRepo struct {
	mu   sync.RWMutex
	seq  int64
	data map[string][]Message // documentID -> messages in append order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string][]Message),
	}
}

// Append stores a new message at the end of the document's log.
func (r *MemoryRepo) Append(ctx context.Context, msg Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	r.seq++
	msg.Seq = r.seq

	r.data[msg.DocumentID] = append(r.data[msg.DocumentID], msg)
	return msg, nil
}

// ListRecent returns the most recent limit messages, oldest-first.
func (r *MemoryRepo) ListRecent(ctx context.Context, documentID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Message{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.data[documentID]
	start := len(msgs) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out, nil
}

// ListPage returns up to limit messages newest-first from the cursor.
func (r *MemoryRepo) ListPage(ctx context.Context, documentID string, limit int, cursor string) ([]Message, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 20
	}

	var before int64
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
		before = parsed
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.data[documentID]
	out := make([]Message, 0, limit)
	for i := len(msgs) - 1; i >= 0; i-- {
		if before > 0 && msgs[i].Seq >= before {
			continue
		}
		out = append(out, msgs[i])
		if len(out) == limit {
			// More remain if anything older exists.
			if i > 0 {
				return out, strconv.FormatInt(msgs[i].Seq, 10), nil
			}
			break
		}
	}
	return out, "", nil
}

// DeleteByDocument removes the whole log for a document.
func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, documentID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
