package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dailydrop/server/internal/model"
)

// ChatRepo persists chats, their participants and messages.
// Messages are always returned newest first.
type ChatRepo interface {
	Create(ctx context.Context, participantIDs []uuid.UUID) (*model.Chat, error)
	// ListOpenForUser returns open chats the user takes part in, each with
	// only its latest message.
	ListOpenForUser(ctx context.Context, userID uuid.UUID) ([]model.Chat, error)
	GetOpen(ctx context.Context, chatID uuid.UUID) (*model.Chat, error)
	// GetLatestOpenForUser returns the most recently created open chat of the user.
	GetLatestOpenForUser(ctx context.Context, userID uuid.UUID) (*model.Chat, error)
	SetRead(ctx context.Context, chatID uuid.UUID, read bool) error
	AddMessage(ctx context.Context, m *model.Message) error
}

type chatRepo struct {
	db *sql.DB
}

// NewChatRepo creates a new ChatRepo instance
func NewChatRepo(db *sql.DB) ChatRepo {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, participantIDs []uuid.UUID) (*model.Chat, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var chat model.Chat
	err = tx.QueryRowContext(ctx, `
		INSERT INTO chats DEFAULT VALUES
		RETURNING id, closed, read, created_at
	`).Scan(&chat.ID, &chat.Closed, &chat.Read, &chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	for i, id := range participantIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (chat_id, user_id) DO NOTHING
		`, chat.ID, id, i)
		if err != nil {
			return nil, fmt.Errorf("insert participant: %w", mapWriteError(err, "user"))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	participants, err := r.participants(ctx, []uuid.UUID{chat.ID})
	if err != nil {
		return nil, err
	}
	chat.Participants = participants[chat.ID]
	chat.Messages = []model.Message{}
	return &chat, nil
}

func (r *chatRepo) ListOpenForUser(ctx context.Context, userID uuid.UUID) ([]model.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.closed, c.read, c.created_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1 AND c.closed = false
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	chats, err := scanChats(rows)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return chats, nil
	}

	ids := make([]uuid.UUID, len(chats))
	for i := range chats {
		ids[i] = chats[i].ID
	}
	participants, err := r.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	latest, err := r.messages(ctx, `
		SELECT DISTINCT ON (m.chat_id) m.id, m.chat_id, m.text, m.created_at, u.id, u.full_name, u.avatar
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = ANY($1)
		ORDER BY m.chat_id, m.created_at DESC, m.id DESC
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}

	for i := range chats {
		chats[i].Participants = participants[chats[i].ID]
		chats[i].Messages = []model.Message{}
		for _, m := range latest {
			if m.ChatID == chats[i].ID {
				chats[i].Messages = append(chats[i].Messages, m)
			}
		}
	}
	return chats, nil
}

func (r *chatRepo) GetOpen(ctx context.Context, chatID uuid.UUID) (*model.Chat, error) {
	return r.getOne(ctx, `
		SELECT id, closed, read, created_at FROM chats WHERE id = $1 AND closed = false
	`, chatID)
}

func (r *chatRepo) GetLatestOpenForUser(ctx context.Context, userID uuid.UUID) (*model.Chat, error) {
	return r.getOne(ctx, `
		SELECT c.id, c.closed, c.read, c.created_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1 AND c.closed = false
		ORDER BY c.created_at DESC
		LIMIT 1
	`, userID)
}

func (r *chatRepo) getOne(ctx context.Context, query string, arg any) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&chat.ID, &chat.Closed, &chat.Read, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("query chat: %w", err)
	}

	participants, err := r.participants(ctx, []uuid.UUID{chat.ID})
	if err != nil {
		return nil, err
	}
	chat.Participants = participants[chat.ID]

	chat.Messages, err = r.messages(ctx, `
		SELECT m.id, m.chat_id, m.text, m.created_at, u.id, u.full_name, u.avatar
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at DESC, m.id DESC
	`, chat.ID)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepo) SetRead(ctx context.Context, chatID uuid.UUID, read bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET read = $2 WHERE id = $1`, chatID, read)
	if err != nil {
		return fmt.Errorf("set chat read: %w", err)
	}
	return nil
}

// AddMessage inserts m as given; the caller assigns ID and CreatedAt.
func (r *chatRepo) AddMessage(ctx context.Context, m *model.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ChatID, m.Sender.ID, m.Text, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", mapWriteError(err, "chat"))
	}
	return nil
}

func (r *chatRepo) participants(ctx context.Context, chatIDs []uuid.UUID) (map[uuid.UUID][]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.chat_id, u.id, u.full_name, u.avatar
		FROM chat_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.chat_id = ANY($1)
		ORDER BY p.chat_id, p.position
	`, pq.Array(uuidStrings(chatIDs)))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.Participant, len(chatIDs))
	for rows.Next() {
		var chatID uuid.UUID
		var p model.Participant
		if err := rows.Scan(&chatID, &p.ID, &p.FullName, &p.Avatar); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[chatID] = append(out[chatID], p)
	}
	return out, rows.Err()
}

func (r *chatRepo) messages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Text, &m.CreatedAt, &m.Sender.ID, &m.Sender.FullName, &m.Sender.Avatar); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanChats(rows *sql.Rows) ([]model.Chat, error) {
	defer rows.Close()
	chats := []model.Chat{}
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.Closed, &c.Read, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
