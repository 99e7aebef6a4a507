package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/realtime"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const defaultConversationType = "direct"

type conversationStore interface {
	GetByID(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error)
	ListBetween(ctx context.Context, firstID uuid.UUID, secondID uuid.UUID) ([]models.Conversation, error)
	ListForParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Conversation, error)
	Create(ctx context.Context, createdBy uuid.UUID, userID uuid.UUID, conversationType string) (*models.Conversation, error)
}

type messageStore interface {
	Create(ctx context.Context, conversationID uuid.UUID, senderID uuid.UUID, content string, sentAt time.Time) (*models.Message, error)
	ListByConversations(ctx context.Context, conversationIDs []uuid.UUID) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationIDs []uuid.UUID, readerID uuid.UUID) error
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MessageBroadcaster delivers a freshly written message to whoever is
// listening outside the refresh cycle: open sockets, mobile push channels.
type MessageBroadcaster interface {
	BroadcastMessage(ctx context.Context, recipientID uuid.UUID, message models.Message) error
}

type changePublisher interface {
	Publish(ctx context.Context, event realtime.ChangeEvent) error
}

type ChatServiceOptions struct {
	Timeout          time.Duration
	ReplicationDelay time.Duration
	Changes          changePublisher
	Broadcasters     []MessageBroadcaster
}

type ChatService struct {
	conversations    conversationStore
	messages         messageStore
	users            userReader
	changes          changePublisher
	broadcasters     []MessageBroadcaster
	timeout          time.Duration
	replicationDelay time.Duration
	now              func() time.Time
}

func NewChatService(
	conversations conversationStore,
	messages messageStore,
	users userReader,
	opts ChatServiceOptions,
) *ChatService {
	return &ChatService{
		conversations:    conversations,
		messages:         messages,
		users:            users,
		changes:          opts.Changes,
		broadcasters:     opts.Broadcasters,
		timeout:          opts.Timeout,
		replicationDelay: opts.ReplicationDelay,
		now:              time.Now,
	}
}

// Resolve merges every conversation row between the caller and the other
// party of conversationID into one thread, oldest message first.
func (s *ChatService) Resolve(
	ctx context.Context,
	selfID uuid.UUID,
	conversationID uuid.UUID,
) (*models.Thread, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	counterpartID, conversationIDs, err := s.linkedConversations(ctx, selfID, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByConversations(ctx, conversationIDs)
	if err != nil {
		return nil, err
	}

	return &models.Thread{
		ConversationID:  conversationID,
		ConversationIDs: conversationIDs,
		RecipientID:     counterpartID,
		RecipientName:   s.displayName(ctx, counterpartID),
		Messages:        mergeMessages(messages),
	}, nil
}

// Send stores the message under the conversation the user is looking at.
// Readers see it through Resolve once the change signal fires, which happens
// after replicationDelay rather than immediately.
func (s *ChatService) Send(
	ctx context.Context,
	selfID uuid.UUID,
	conversationID uuid.UUID,
	recipientID uuid.UUID,
	content string,
) (*models.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || recipientID == uuid.Nil {
		return nil, ErrInvalidInput
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	counterpartID, ok := conversation.Counterpart(selfID)
	if !ok {
		return nil, ErrForbidden
	}
	if counterpartID != recipientID {
		return nil, ErrInvalidInput
	}

	message, err := s.messages.Create(ctx, conversationID, selfID, trimmed, s.now().UTC())
	if err != nil {
		log.Printf("chat: send to conversation %s failed: %v", conversationID, err)
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	for _, broadcaster := range s.broadcasters {
		if err := broadcaster.BroadcastMessage(ctx, recipientID, *message); err != nil {
			log.Printf("chat: broadcast message %s: %v", message.ID, err)
		}
	}
	s.signalMessage(*message)

	return message, nil
}

// StartConversation returns the oldest existing conversation between the two
// users, creating one only when none exists.
func (s *ChatService) StartConversation(
	ctx context.Context,
	selfID uuid.UUID,
	otherID uuid.UUID,
	conversationType string,
) (*models.Conversation, bool, error) {
	if otherID == uuid.Nil || otherID == selfID {
		return nil, false, ErrInvalidInput
	}
	conversationType = strings.TrimSpace(conversationType)
	if conversationType == "" {
		conversationType = defaultConversationType
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, err
	}

	existing, err := s.conversations.ListBetween(ctx, selfID, otherID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return &existing[0], false, nil
	}

	conversation, err := s.conversations.Create(ctx, selfID, otherID, conversationType)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return conversation, true, nil
}

// ListThreads returns one summary per counterpart, most recent activity
// first, however many conversation rows link the two users.
func (s *ChatService) ListThreads(ctx context.Context, selfID uuid.UUID) ([]models.ThreadSummary, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	conversations, err := s.conversations.ListForParticipant(ctx, selfID)
	if err != nil {
		return nil, err
	}

	type threadGroup struct {
		counterpartID uuid.UUID
		primary       models.Conversation
		ids           []uuid.UUID
	}
	groups := make([]*threadGroup, 0)
	byCounterpart := make(map[uuid.UUID]*threadGroup)
	for _, conversation := range conversations {
		counterpartID, ok := conversation.Counterpart(selfID)
		if !ok {
			continue
		}
		group, exists := byCounterpart[counterpartID]
		if !exists {
			group = &threadGroup{counterpartID: counterpartID, primary: conversation}
			byCounterpart[counterpartID] = group
			groups = append(groups, group)
		}
		group.ids = append(group.ids, conversation.ID)
	}

	type rankedSummary struct {
		summary      models.ThreadSummary
		lastActivity time.Time
	}
	ranked := make([]rankedSummary, 0, len(groups))
	for _, group := range groups {
		messages, err := s.messages.ListByConversations(ctx, group.ids)
		if err != nil {
			return nil, err
		}
		messages = mergeMessages(messages)

		summary := models.ThreadSummary{
			ConversationID: group.primary.ID,
			RecipientID:    group.counterpartID,
			RecipientName:  s.displayName(ctx, group.counterpartID),
		}
		lastActivity := group.primary.CreatedAt
		if len(messages) > 0 {
			last := messages[len(messages)-1]
			summary.LastMessage = &last
			lastActivity = last.SentAt
		}
		for _, message := range messages {
			if message.SenderID != selfID && !message.IsRead {
				summary.UnreadCount++
			}
		}
		ranked = append(ranked, rankedSummary{summary: summary, lastActivity: lastActivity})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].lastActivity.After(ranked[j].lastActivity)
	})

	summaries := make([]models.ThreadSummary, 0, len(ranked))
	for _, item := range ranked {
		summaries = append(summaries, item.summary)
	}
	return summaries, nil
}

func (s *ChatService) MarkThreadRead(ctx context.Context, selfID uuid.UUID, conversationID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, conversationIDs, err := s.linkedConversations(ctx, selfID, conversationID)
	if err != nil {
		return err
	}
	if err := s.messages.MarkRead(ctx, conversationIDs, selfID); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return nil
}

func (s *ChatService) linkedConversations(
	ctx context.Context,
	selfID uuid.UUID,
	conversationID uuid.UUID,
) (uuid.UUID, []uuid.UUID, error) {
	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	counterpartID, ok := conversation.Counterpart(selfID)
	if !ok {
		return uuid.Nil, nil, ErrForbidden
	}

	linked, err := s.conversations.ListBetween(ctx, selfID, counterpartID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(linked))
	conversationIDs := make([]uuid.UUID, 0, len(linked))
	for _, row := range linked {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		conversationIDs = append(conversationIDs, row.ID)
	}
	return counterpartID, conversationIDs, nil
}

func (s *ChatService) getConversation(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) displayName(ctx context.Context, userID uuid.UUID) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("chat: display name for %s: %v", userID, err)
		return ""
	}
	return user.Name
}

func (s *ChatService) signalMessage(message models.Message) {
	if s.changes == nil {
		return
	}
	event := realtime.ChangeEvent{
		Table: realtime.TableMessages,
		Type:  realtime.EventInsert,
		New: map[string]any{
			"message_id":      message.ID.String(),
			"conversation_id": message.ConversationID.String(),
			"sender_id":       message.SenderID.String(),
		},
	}
	time.AfterFunc(s.replicationDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.changes.Publish(ctx, event); err != nil {
			log.Printf("chat: publish change for message %s: %v", message.ID, err)
		}
	})
}

// mergeMessages drops duplicate rows and orders by sent_at, keeping the
// incoming order for equal timestamps.
func mergeMessages(messages []models.Message) []models.Message {
	seen := make(map[uuid.UUID]struct{}, len(messages))
	merged := make([]models.Message, 0, len(messages))
	for _, message := range messages {
		if _, dup := seen[message.ID]; dup {
			continue
		}
		seen[message.ID] = struct{}{}
		merged = append(merged, message)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})
	return merged
}
