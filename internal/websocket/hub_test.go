package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, client *Client) Envelope {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		return envelope
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return Envelope{}
}

func TestBroadcastMessageReachesBothParticipants(t *testing.T) {
	hub := startHub(t)
	senderID := uuid.New()
	recipientID := uuid.New()
	sender := NewClient(hub, nil, senderID.String())
	recipient := NewClient(hub, nil, recipientID.String())
	bystander := NewClient(hub, nil, uuid.NewString())
	hub.Register(sender)
	hub.Register(recipient)
	hub.Register(bystander)

	message := models.Message{
		ID:             uuid.New(),
		SenderID:       senderID,
		ConversationID: uuid.New(),
		Content:        "hello",
		SentAt:         time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	}
	if err := hub.BroadcastMessage(context.Background(), recipientID, message); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}

	for _, client := range []*Client{sender, recipient} {
		envelope := receive(t, client)
		if envelope.Type != EnvelopeMessage || envelope.Content != "hello" {
			t.Fatalf("unexpected envelope %+v", envelope)
		}
		if envelope.ConversationID != message.ConversationID.String() || envelope.Timestamp != "2024-05-01T08:30:00Z" {
			t.Fatalf("unexpected envelope tags %+v", envelope)
		}
	}

	select {
	case <-bystander.send:
		t.Fatal("bystander must not receive the message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToSelfDeliversOnce(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()
	client := NewClient(hub, nil, userID.String())
	hub.Register(client)

	message := models.Message{ID: uuid.New(), SenderID: userID, ConversationID: uuid.New(), Content: "note"}
	if err := hub.BroadcastMessage(context.Background(), userID, message); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}
	receive(t, client)

	select {
	case <-client.send:
		t.Fatal("expected a single frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPushCarriesPayload(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, uuid.NewString())

	client.Push(EnvelopeSections, []models.Section{{Title: "Notifications", Kind: models.FeedTabRegular}})
	envelope := receive(t, client)
	if envelope.Type != EnvelopeSections {
		t.Fatalf("unexpected type %q", envelope.Type)
	}
	sections, ok := envelope.Payload.([]any)
	if !ok || len(sections) != 1 {
		t.Fatalf("unexpected payload %#v", envelope.Payload)
	}

	client.PushError("invalid conversation id")
	if envelope := receive(t, client); envelope.Type != EnvelopeError || envelope.Content != "invalid conversation id" {
		t.Fatalf("unexpected error envelope %+v", envelope)
	}
}

func TestUnregisteredClientIgnoresLatePushes(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, uuid.NewString())
	hub.Register(client)
	hub.Unregister(client)

	deadline := time.After(time.Second)
	for {
		client.mu.Lock()
		closed := client.closed
		client.mu.Unlock()
		if closed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("client was not closed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	client.Push(EnvelopeThread, models.Thread{})
	client.PushError("late")
}

type fakeSocket struct {
	mu         sync.Mutex
	writeDelay time.Duration
	frames     [][]byte
	closed     bool
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("not readable")
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	time.Sleep(s.writeDelay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("write on closed socket")
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func waitWithin(t *testing.T, client *Client) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		client.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestWaitFlushesFinalErrorFrame(t *testing.T) {
	hub := startHub(t)
	conn := &fakeSocket{writeDelay: 20 * time.Millisecond}
	client := NewClient(hub, conn, uuid.NewString())
	hub.Register(client)
	go client.WritePump()

	client.PushError("conversation not found")
	hub.Unregister(client)
	waitWithin(t, client)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.frames) != 1 {
		t.Fatalf("expected the error frame to be written before Wait returned, got %d frames", len(conn.frames))
	}
	var envelope Envelope
	if err := json.Unmarshal(conn.frames[0], &envelope); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if envelope.Type != EnvelopeError || envelope.Content != "conversation not found" {
		t.Fatalf("unexpected frame %+v", envelope)
	}
	if !conn.closed {
		t.Fatal("expected the socket to be closed by the write pump")
	}
}

func TestWaitReturnsAfterHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	cancel()
	<-hub.done

	client := NewClient(hub, &fakeSocket{}, uuid.NewString())
	go client.WritePump()
	hub.Register(client)
	hub.Unregister(client)
	waitWithin(t, client)
}
