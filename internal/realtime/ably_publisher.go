package realtime

import (
	"context"
	"fmt"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/ably/ably-go/ably"
	"github.com/google/uuid"
)

// AblyPublisher pushes new chat messages to mobile clients that are not
// holding a websocket open.
type AblyPublisher struct {
	client *ably.REST
}

func NewAblyPublisher(apiKey string) (*AblyPublisher, error) {
	client, err := ably.NewREST(ably.WithKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create ably client: %w", err)
	}
	return &AblyPublisher{client: client}, nil
}

func ConversationChannel(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func (p *AblyPublisher) BroadcastMessage(ctx context.Context, recipientID uuid.UUID, message models.Message) error {
	payload := map[string]any{
		"message_id":      message.ID.String(),
		"conversation_id": message.ConversationID.String(),
		"sender_id":       message.SenderID.String(),
		"message_content": message.Content,
		"sent_at":         message.SentAt,
	}

	if err := p.client.Channels.Get(ConversationChannel(message.ConversationID)).
		Publish(ctx, "new_message", payload); err != nil {
		return fmt.Errorf("failed to publish to ably: %w", err)
	}
	if err := p.client.Channels.Get(UserChannel(recipientID)).
		Publish(ctx, "new_message", payload); err != nil {
		return fmt.Errorf("failed to publish to ably: %w", err)
	}
	return nil
}
