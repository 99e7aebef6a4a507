package repository

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID uuid.UUID,
	senderID uuid.UUID,
	content string,
	sentAt time.Time,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, message_content, sent_at, is_delivered, is_read)
		VALUES ($1, $2, $3, $4, FALSE, FALSE)
		RETURNING message_id, sender_id, '', conversation_id, message_content, sent_at, is_delivered, is_read
	`
	return scanMessage(r.db.QueryRow(ctx, query, conversationID, senderID, content, sentAt))
}

// ListByConversations returns the messages of all given conversations joined
// with the sender's display name, oldest first.
func (r *MessageRepository) ListByConversations(
	ctx context.Context,
	conversationIDs []uuid.UUID,
) ([]models.Message, error) {
	if len(conversationIDs) == 0 {
		return []models.Message{}, nil
	}

	query, args, err := listByConversationsQuery(conversationIDs).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *MessageRepository) MarkRead(
	ctx context.Context,
	conversationIDs []uuid.UUID,
	readerID uuid.UUID,
) error {
	if len(conversationIDs) == 0 {
		return nil
	}

	query, args, err := psql.
		Update("messages").
		Set("is_read", true).
		Set("is_delivered", true).
		Where(squirrel.Eq{"conversation_id": conversationIDs}).
		Where(squirrel.NotEq{"sender_id": readerID}).
		Where(squirrel.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var message models.Message
	err := row.Scan(
		&message.ID,
		&message.SenderID,
		&message.SenderName,
		&message.ConversationID,
		&message.Content,
		&message.SentAt,
		&message.IsDelivered,
		&message.IsRead,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// listByConversationsQuery orders by sent_at, then by seq, the identity
// column that records insertion order.
func listByConversationsQuery(conversationIDs []uuid.UUID) squirrel.SelectBuilder {
	return psql.
		Select(
			"m.message_id",
			"m.sender_id",
			"COALESCE(u.name, '')",
			"m.conversation_id",
			"m.message_content",
			"m.sent_at",
			"m.is_delivered",
			"m.is_read",
		).
		From("messages m").
		LeftJoin("users u ON u.user_id = m.sender_id").
		Where(squirrel.Eq{"m.conversation_id": conversationIDs}).
		OrderBy("m.sent_at ASC", "m.seq ASC")
}
