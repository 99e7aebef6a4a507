package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/realtime"
	"github.com/google/uuid"
)

type stubFeedSource struct {
	mu           sync.Mutex
	regular      []models.RegularNotification
	appointments []models.AppointmentNotification
	regularCalls int
	apptCalls    int
}

func (s *stubFeedSource) ListRegular(context.Context, uuid.UUID) []models.RegularNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regularCalls++
	return append([]models.RegularNotification(nil), s.regular...)
}

func (s *stubFeedSource) Synthesize(context.Context, uuid.UUID) []models.AppointmentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apptCalls++
	return append([]models.AppointmentNotification(nil), s.appointments...)
}

func (s *stubFeedSource) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regularCalls, s.apptCalls
}

type pushRecorder[T any] struct {
	mu     sync.Mutex
	pushes []T
	signal chan struct{}
}

func newPushRecorder[T any]() *pushRecorder[T] {
	return &pushRecorder[T]{signal: make(chan struct{}, 64)}
}

func (r *pushRecorder[T]) push(value T) {
	r.mu.Lock()
	r.pushes = append(r.pushes, value)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *pushRecorder[T]) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a push")
	}
}

func (r *pushRecorder[T]) last() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushes[len(r.pushes)-1]
}

func TestThreadScreenRefreshIsIdempotent(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	aliceToBob := models.Conversation{ID: uuid.New(), CreatedBy: alice, UserID: bob}
	bobToAlice := models.Conversation{ID: uuid.New(), CreatedBy: bob, UserID: alice}
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{messages: []models.Message{
		{ID: uuid.New(), ConversationID: aliceToBob.ID, SenderID: alice, SentAt: base},
		{ID: uuid.New(), ConversationID: bobToAlice.ID, SenderID: bob, SentAt: base.Add(time.Minute)},
	}}
	chat := NewChatService(
		&stubConversationStore{conversations: []models.Conversation{aliceToBob, bobToAlice}},
		messages,
		&stubUserReader{},
		ChatServiceOptions{},
	)
	manager := realtime.NewManager(5 * time.Millisecond)
	defer manager.Close()
	screens := NewScreenService(manager, chat, &stubFeedSource{})
	recorder := newPushRecorder[models.Thread]()

	screen, err := screens.OpenThread(context.Background(), alice, aliceToBob.ID, recorder.push)
	if err != nil {
		t.Fatalf("OpenThread() error = %v", err)
	}
	defer screen.Close()
	recorder.wait(t)

	for i := 0; i < 3; i++ {
		if err := screen.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		recorder.wait(t)
		if got := len(screen.Current().Messages); got != 2 {
			t.Fatalf("refresh %d produced %d messages, want 2", i, got)
		}
	}

	manager.Dispatch(realtime.ChangeEvent{Table: realtime.TableMessages, Type: realtime.EventInsert})
	recorder.wait(t)
	if got := len(recorder.last().Messages); got != 2 {
		t.Fatalf("event refresh produced %d messages, want 2", got)
	}
}

func TestThreadScreenPicksUpNewMessages(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	conversation := models.Conversation{ID: uuid.New(), CreatedBy: alice, UserID: bob}
	messages := &stubMessageStore{}
	chat := NewChatService(
		&stubConversationStore{conversations: []models.Conversation{conversation}},
		messages,
		&stubUserReader{},
		ChatServiceOptions{},
	)
	manager := realtime.NewManager(5 * time.Millisecond)
	defer manager.Close()
	screens := NewScreenService(manager, chat, &stubFeedSource{})
	recorder := newPushRecorder[models.Thread]()

	screen, err := screens.OpenThread(context.Background(), alice, conversation.ID, recorder.push)
	if err != nil {
		t.Fatalf("OpenThread() error = %v", err)
	}
	defer screen.Close()
	recorder.wait(t)

	if _, err := chat.Send(context.Background(), bob, conversation.ID, alice, "are you there?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	manager.Dispatch(realtime.ChangeEvent{Table: realtime.TableMessages, Type: realtime.EventInsert})
	recorder.wait(t)

	thread := recorder.last()
	if len(thread.Messages) != 1 || thread.Messages[0].Content != "are you there?" {
		t.Fatalf("unexpected thread after insert %+v", thread.Messages)
	}
}

func TestOpenThreadFailsForMissingConversation(t *testing.T) {
	manager := realtime.NewManager(time.Millisecond)
	defer manager.Close()
	chat := NewChatService(&stubConversationStore{}, &stubMessageStore{}, &stubUserReader{}, ChatServiceOptions{})
	screens := NewScreenService(manager, chat, &stubFeedSource{})

	_, err := screens.OpenThread(context.Background(), uuid.New(), uuid.New(), func(models.Thread) {})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if count := manager.SubscriptionCount(realtime.TableMessages); count != 0 {
		t.Fatalf("expected no subscriptions left behind, got %d", count)
	}
}

func TestNotificationScreenRefreshesAffectedSource(t *testing.T) {
	userID := uuid.New()
	source := &stubFeedSource{
		regular: []models.RegularNotification{{ID: uuid.New(), Status: "sent"}},
	}
	manager := realtime.NewManager(5 * time.Millisecond)
	defer manager.Close()
	screens := NewScreenService(manager, nil, source)
	recorder := newPushRecorder[[]models.Section]()

	screen, err := screens.OpenNotifications(context.Background(), userID, models.FeedTabRegular, AppointmentFilterAll, recorder.push)
	if err != nil {
		t.Fatalf("OpenNotifications() error = %v", err)
	}
	recorder.wait(t)
	if sections := recorder.last(); len(sections) != 1 || len(sections[0].Regular) != 1 {
		t.Fatalf("unexpected initial sections %+v", sections)
	}

	source.mu.Lock()
	source.regular = append(source.regular, models.RegularNotification{ID: uuid.New(), Status: "sent"})
	source.mu.Unlock()
	manager.Dispatch(realtime.ChangeEvent{Table: realtime.TableNotifications, Type: realtime.EventInsert})
	recorder.wait(t)

	if sections := recorder.last(); len(sections[0].Regular) != 2 {
		t.Fatalf("expected 2 regular notifications after insert, got %+v", sections)
	}
	regularCalls, apptCalls := source.calls()
	if regularCalls != 2 || apptCalls != 1 {
		t.Fatalf("expected only the regular source refetched, got regular=%d appointments=%d", regularCalls, apptCalls)
	}

	screen.Close()
	for _, table := range []realtime.Table{
		realtime.TableNotifications,
		realtime.TableAppointments,
		realtime.TableGroupAppointments,
		realtime.TableAvailabilitySchedules,
	} {
		if count := manager.SubscriptionCount(table); count != 0 {
			t.Fatalf("expected %s subscriptions closed, got %d", table, count)
		}
	}
}

func TestNotificationScreenSetView(t *testing.T) {
	source := &stubFeedSource{appointments: sampleAppointmentNotifications()}
	manager := realtime.NewManager(time.Millisecond)
	defer manager.Close()
	screens := NewScreenService(manager, nil, source)
	recorder := newPushRecorder[[]models.Section]()

	screen, err := screens.OpenNotifications(context.Background(), uuid.New(), models.FeedTabAppointment, "", recorder.push)
	if err != nil {
		t.Fatalf("OpenNotifications() error = %v", err)
	}
	defer screen.Close()
	recorder.wait(t)

	if err := screen.SetView(models.FeedTabAppointment, string(models.NotificationGroupAdded)); err != nil {
		t.Fatalf("SetView() error = %v", err)
	}
	recorder.wait(t)
	sections := screen.Sections()
	if len(sections) != 1 || len(sections[0].Appointments) != 1 || sections[0].Appointments[0].Type != models.NotificationGroupAdded {
		t.Fatalf("unexpected sections %+v", sections)
	}
	if _, apptCalls := source.calls(); apptCalls != 1 {
		t.Fatalf("switching view must not refetch, got %d fetches", apptCalls)
	}

	if err := screen.SetView("archive", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenNotificationsRejectsUnknownFilter(t *testing.T) {
	manager := realtime.NewManager(time.Millisecond)
	defer manager.Close()
	screens := NewScreenService(manager, nil, &stubFeedSource{})

	_, err := screens.OpenNotifications(context.Background(), uuid.New(), models.FeedTabAppointment, "booked", func([]models.Section) {})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// racingResolver commits a change while its first Resolve is still running.
type racingResolver struct {
	mu       sync.Mutex
	calls    int
	duringFn func()
}

func (r *racingResolver) Resolve(_ context.Context, _ uuid.UUID, conversationID uuid.UUID) (*models.Thread, error) {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()

	thread := &models.Thread{ConversationID: conversationID, Messages: []models.Message{}}
	if first {
		r.duringFn()
		return thread, nil
	}
	thread.Messages = append(thread.Messages, models.Message{ID: uuid.New(), ConversationID: conversationID, Content: "sent mid-open"})
	return thread, nil
}

// racingFeedSource does the same for the appointment category.
type racingFeedSource struct {
	mu       sync.Mutex
	calls    int
	duringFn func()
}

func (s *racingFeedSource) ListRegular(context.Context, uuid.UUID) []models.RegularNotification {
	return nil
}

func (s *racingFeedSource) Synthesize(context.Context, uuid.UUID) []models.AppointmentNotification {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first {
		s.duringFn()
		return nil
	}
	return sampleAppointmentNotifications()
}

func waitForPush[T any](t *testing.T, recorder *pushRecorder[T], done func(T) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-recorder.signal:
			if done(recorder.last()) {
				return
			}
		case <-deadline:
			t.Fatal("screen never caught up with the change")
		}
	}
}

func TestOpenThreadPicksUpChangeDuringFirstResolve(t *testing.T) {
	manager := realtime.NewManager(time.Millisecond)
	defer manager.Close()
	resolver := &racingResolver{duringFn: func() {
		manager.Dispatch(realtime.ChangeEvent{Table: realtime.TableMessages, Type: realtime.EventInsert})
	}}
	screens := NewScreenService(manager, resolver, &stubFeedSource{})
	recorder := newPushRecorder[models.Thread]()

	screen, err := screens.OpenThread(context.Background(), uuid.New(), uuid.New(), recorder.push)
	if err != nil {
		t.Fatalf("OpenThread() error = %v", err)
	}
	defer screen.Close()

	waitForPush(t, recorder, func(thread models.Thread) bool { return len(thread.Messages) == 1 })
	if current := screen.Current(); current == nil || len(current.Messages) != 1 {
		t.Fatalf("expected the current thread to hold the new message, got %+v", current)
	}
}

func TestOpenNotificationsPicksUpChangeDuringFirstSynthesize(t *testing.T) {
	manager := realtime.NewManager(time.Millisecond)
	defer manager.Close()
	source := &racingFeedSource{duringFn: func() {
		manager.Dispatch(realtime.ChangeEvent{Table: realtime.TableAppointments, Type: realtime.EventUpdate})
	}}
	screens := NewScreenService(manager, nil, source)
	recorder := newPushRecorder[[]models.Section]()

	screen, err := screens.OpenNotifications(context.Background(), uuid.New(), models.FeedTabAppointment, AppointmentFilterAll, recorder.push)
	if err != nil {
		t.Fatalf("OpenNotifications() error = %v", err)
	}
	defer screen.Close()

	waitForPush(t, recorder, func(sections []models.Section) bool {
		return len(sections) == 1 && len(sections[0].Appointments) > 0
	})
}

func TestFetchSeqRejectsOlderResults(t *testing.T) {
	var seq fetchSeq
	older := seq.begin()
	newer := seq.begin()

	if !seq.accept(newer) {
		t.Fatal("newest fetch must be accepted")
	}
	if seq.accept(older) {
		t.Fatal("fetch that started earlier must not replace a newer one")
	}
	if next := seq.begin(); !seq.accept(next) {
		t.Fatal("later fetch must be accepted")
	}
}
