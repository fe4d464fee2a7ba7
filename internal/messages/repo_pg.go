package messages

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// PGRepo implements Repo using Postgres. The messages table carries a
// bigserial seq column; ordering is (created_at, seq) everywhere so reads are
// consistent with one total order per document.
type PGRepo struct {
	DB *sql.DB
}

// Append inserts a new message and returns it with its assigned seq.
func (r *PGRepo) Append(ctx context.Context, msg Message) (Message, error) {
	const query = `
INSERT INTO messages (id, document_id, user_id, is_user_message, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING seq, created_at`

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := r.DB.QueryRowContext(
		ctx,
		query,
		msg.ID,
		msg.DocumentID,
		msg.UserID,
		msg.IsUserMessage,
		msg.Text,
		msg.CreatedAt,
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ListRecent returns the most recent limit messages, oldest-first.
func (r *PGRepo) ListRecent(ctx context.Context, documentID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	const query = `
SELECT id, document_id, user_id, is_user_message, body, created_at, seq
FROM (
    SELECT id, document_id, user_id, is_user_message, body, created_at, seq
    FROM messages
    WHERE document_id = $1
    ORDER BY created_at DESC, seq DESC
    LIMIT $2
) recent
ORDER BY created_at ASC, seq ASC`

	rows, err := r.DB.QueryContext(ctx, query, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListPage returns up to limit messages newest-first from the cursor.
func (r *PGRepo) ListPage(ctx context.Context, documentID string, limit int, cursor string) ([]Message, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var before int64
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
		before = parsed
	}

	const query = `
SELECT id, document_id, user_id, is_user_message, body, created_at, seq
FROM messages
WHERE document_id = $1 AND ($2 = 0 OR seq < $2)
ORDER BY created_at DESC, seq DESC
LIMIT $3`

	// Fetch one extra row to learn whether another page exists.
	rows, err := r.DB.QueryContext(ctx, query, documentID, before, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(msgs) > limit {
		msgs = msgs[:limit]
		nextCursor = strconv.FormatInt(msgs[limit-1].Seq, 10)
	}
	return msgs, nextCursor, nil
}

// DeleteByDocument removes all messages for a document.
func (r *PGRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	const query = `DELETE FROM messages WHERE document_id = $1`
	_, err := r.DB.ExecContext(ctx, query, documentID)
	return err
}

func collectMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID,
			&msg.DocumentID,
			&msg.UserID,
			&msg.IsUserMessage,
			&msg.Text,
			&msg.CreatedAt,
			&msg.Seq,
		); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
