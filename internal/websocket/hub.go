package chatws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/services"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	EnvelopeMessage  = "message"
	EnvelopeThread   = "thread"
	EnvelopeSections = "sections"
	EnvelopeError    = "error"
)

type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *delivery
	done       chan struct{}
}

// socket is the part of *websocket.Conn the pumps use.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	hub    *Hub
	conn   socket
	userID string

	mu      sync.Mutex
	send    chan []byte
	closed  bool
	flushed chan struct{}
}

// Envelope is every frame the server writes. Payload carries the refreshed
// view-model for thread and sections frames.
type Envelope struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	RecipientID    string `json:"recipient_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Payload        any    `json:"payload,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Inbound is every frame a client may write: "message" on a chat screen,
// "view" on a notifications screen and "refresh" on either.
type Inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Tab     string `json:"tab,omitempty"`
	Filter  string `json:"filter,omitempty"`
}

type InboundHandler func(ctx context.Context, incoming Inbound)

type delivery struct {
	userIDs  []string
	envelope *Envelope
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *delivery, 64),
		done:       make(chan struct{}),
	}
}

func NewClient(hub *Hub, conn socket, userID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		send:    make(chan []byte, 32),
		flushed: make(chan struct{}),
	}
}

// Run owns the client registry until ctx is cancelled, then closes every
// client it still holds.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					client.close()
				}
				delete(h.clients, userID)
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				client.close()
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
			}
			client.close()
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case item := <-h.broadcast:
			h.deliver(item)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// BroadcastMessage sends a new chat message to every socket of both the
// sender and the recipient, whatever screen they have open.
func (h *Hub) BroadcastMessage(ctx context.Context, recipientID uuid.UUID, message models.Message) error {
	item := &delivery{
		userIDs: []string{message.SenderID.String(), recipientID.String()},
		envelope: &Envelope{
			Type:           EnvelopeMessage,
			ConversationID: message.ConversationID.String(),
			SenderID:       message.SenderID.String(),
			RecipientID:    recipientID.String(),
			Content:        message.Content,
			Timestamp:      services.FormatChatTimestamp(message.SentAt),
		},
	}

	select {
	case h.broadcast <- item:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) deliver(item *delivery) {
	encoded, err := encodeEnvelope(item.envelope)
	if err != nil {
		log.Printf("hub: encode %s envelope: %v", item.envelope.Type, err)
		return
	}

	seen := make(map[string]struct{}, len(item.userIDs))
	for _, userID := range item.userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		h.sendToUser(userID, encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		if !client.enqueue(payload) {
			delete(set, client)
			client.close()
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func encodeEnvelope(envelope *Envelope) ([]byte, error) {
	return json.Marshal(envelope)
}

// Push writes a frame to this client only. A client that cannot keep up is
// dropped from the hub.
func (c *Client) Push(kind string, payload any) {
	encoded, err := encodeEnvelope(&Envelope{
		Type:      kind,
		Payload:   payload,
		Timestamp: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		log.Printf("hub: encode %s push for %s: %v", kind, c.userID, err)
		return
	}
	if !c.enqueue(encoded) {
		go c.hub.Unregister(c)
	}
}

func (c *Client) PushError(message string) {
	payload, err := encodeEnvelope(&Envelope{
		Type:      EnvelopeError,
		Content:   message,
		Timestamp: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		return
	}
	if !c.enqueue(payload) {
		go c.hub.Unregister(c)
	}
}

// enqueue reports false when the buffer is full. Writes to a closed client
// are dropped and reported as delivered.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump blocks until the socket goes away, handing each decoded frame to
// handle. Undecodable frames are answered with an error frame.
func (c *Client) ReadPump(ctx context.Context, handle InboundHandler) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming Inbound
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.PushError("invalid message payload")
			continue
		}
		handle(ctx, incoming)
	}
}

// WritePump writes queued frames until the client is unregistered and its
// queue drained, or a write fails.
func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
		close(c.flushed)
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// Wait blocks until WritePump has returned. The connection must not be
// handed back to the server before then. Only call it after starting
// WritePump and unregistering the client.
func (c *Client) Wait() {
	<-c.flushed
}
