package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

// ConversationRepository stores chat conversations and their messages
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

const conversationColumns = `id, user_id, title, subject, is_active, created_at, updated_at`

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.Title, c.Subject, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrUserNotFound
	}
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`,
		id,
	))
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListByUser returns the user's conversations, most recently active first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		if isNotFound(err) {
			return []*domain.Conversation{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	results := []*domain.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *ConversationRepository) Touch(ctx context.Context, id string, subject domain.Subject) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conversations
		 SET subject = CASE WHEN $1 = '' THEN subject ELSE $1 END, updated_at = $2
		 WHERE id = $3`,
		string(subject), time.Now().UTC(), id,
	)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrConversationNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrConversationNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *ConversationRepository) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode message metadata: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, conversation_id, message_type, content, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.Type, m.Content, encoded, m.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrConversationNotFound
	}
	return err
}

// ListMessages returns the conversation's messages oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, message_type, content, metadata, created_at
		 FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		if isNotFound(err) {
			return []*domain.ChatMessage{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	results := []*domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Type, &m.Content, &metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Subject, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
