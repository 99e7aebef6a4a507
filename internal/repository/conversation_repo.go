package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

const conversationColumns = "conversation_id, created_by, user_id, conversation_type, created_at"

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(
	ctx context.Context,
	createdBy uuid.UUID,
	userID uuid.UUID,
	conversationType string,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (created_by, user_id, conversation_type)
		VALUES ($1, $2, $3)
		RETURNING ` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, createdBy, userID, conversationType))
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE conversation_id = $1
	`
	return scanConversation(r.db.QueryRow(ctx, query, conversationID))
}

// ListBetween returns every conversation row linking the two users, whichever
// of them created it, oldest first.
func (r *ConversationRepository) ListBetween(
	ctx context.Context,
	firstID uuid.UUID,
	secondID uuid.UUID,
) ([]models.Conversation, error) {
	query, args, err := psql.
		Select(conversationColumns).
		From("conversations").
		Where(squirrel.Or{
			squirrel.Eq{"created_by": firstID, "user_id": secondID},
			squirrel.Eq{"created_by": secondID, "user_id": firstID},
		}).
		OrderBy("created_at ASC", "conversation_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.list(ctx, query, args...)
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID uuid.UUID,
) ([]models.Conversation, error) {
	query, args, err := psql.
		Select(conversationColumns).
		From("conversations").
		Where(squirrel.Or{
			squirrel.Eq{"created_by": participantID},
			squirrel.Eq{"user_id": participantID},
		}).
		OrderBy("created_at ASC", "conversation_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.list(ctx, query, args...)
}

func (r *ConversationRepository) list(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.CreatedBy,
		&conversation.UserID,
		&conversation.ConversationType,
		&conversation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}
