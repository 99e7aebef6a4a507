package models

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID               uuid.UUID `json:"conversation_id"`
	CreatedBy        uuid.UUID `json:"created_by"`
	UserID           uuid.UUID `json:"user_id"`
	ConversationType string    `json:"conversation_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// Counterpart returns the party of the conversation that is not selfID, and
// false when selfID is not a party at all.
func (c Conversation) Counterpart(selfID uuid.UUID) (uuid.UUID, bool) {
	switch selfID {
	case c.CreatedBy:
		return c.UserID, true
	case c.UserID:
		return c.CreatedBy, true
	default:
		return uuid.Nil, false
	}
}

type Message struct {
	ID             uuid.UUID `json:"message_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"message_content"`
	SentAt         time.Time `json:"sent_at"`
	IsDelivered    bool      `json:"is_delivered"`
	IsRead         bool      `json:"is_read"`
}

// Thread is every message exchanged between two users, across all the
// conversation rows that link them.
type Thread struct {
	ConversationID  uuid.UUID   `json:"conversation_id"`
	ConversationIDs []uuid.UUID `json:"conversation_ids"`
	RecipientID     uuid.UUID   `json:"recipient_id"`
	RecipientName   string      `json:"recipient_name"`
	Messages        []Message   `json:"messages"`
}

type ThreadSummary struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	RecipientName  string    `json:"recipient_name"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	UnreadCount    int       `json:"unread_count"`
}
