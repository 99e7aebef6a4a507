package services

import (
	"context"
	"log"
	"sync"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/realtime"
	"github.com/google/uuid"
)

type subscriber interface {
	Subscribe(table realtime.Table, filter realtime.EventType, handler realtime.Handler) *realtime.Subscription
}

type threadResolver interface {
	Resolve(ctx context.Context, selfID uuid.UUID, conversationID uuid.UUID) (*models.Thread, error)
}

type feedSource interface {
	ListRegular(ctx context.Context, userID uuid.UUID) []models.RegularNotification
	Synthesize(ctx context.Context, userID uuid.UUID) []models.AppointmentNotification
}

// ScreenService opens live views. Every open screen owns its realtime
// subscriptions and must be closed when the client goes away.
type ScreenService struct {
	subscriber    subscriber
	chat          threadResolver
	notifications feedSource
}

func NewScreenService(subscriber subscriber, chat threadResolver, notifications feedSource) *ScreenService {
	return &ScreenService{
		subscriber:    subscriber,
		chat:          chat,
		notifications: notifications,
	}
}

type ThreadScreen struct {
	selfID         uuid.UUID
	conversationID uuid.UUID
	resolver       threadResolver
	push           func(models.Thread)
	group          *realtime.Group

	mu      sync.Mutex
	started uint64
	applied uint64
	current *models.Thread
}

// OpenThread subscribes to messages and conversations, then resolves the
// conversation and pushes it. Every later change pushes a freshly resolved
// thread. A missing conversation fails the open and drops the subscriptions.
func (s *ScreenService) OpenThread(
	ctx context.Context,
	selfID uuid.UUID,
	conversationID uuid.UUID,
	push func(models.Thread),
) (*ThreadScreen, error) {
	screen := &ThreadScreen{
		selfID:         selfID,
		conversationID: conversationID,
		resolver:       s.chat,
		push:           push,
		group:          &realtime.Group{},
	}
	// Subscribed before the first read so a change committed while it runs
	// still triggers a refresh.
	for _, table := range []realtime.Table{realtime.TableMessages, realtime.TableConversations} {
		screen.group.Add(s.subscriber.Subscribe(table, realtime.EventAll, screen.onChange))
	}
	if err := screen.Refresh(ctx); err != nil {
		screen.group.Close()
		return nil, err
	}
	return screen, nil
}

func (t *ThreadScreen) onChange(ctx context.Context, event realtime.ChangeEvent) {
	if err := t.Refresh(ctx); err != nil {
		log.Printf("screens: refresh thread %s after %s %s: %v", t.conversationID, event.Type, event.Table, err)
	}
}

// Refresh re-resolves the whole thread and replaces the previous one. When
// refreshes overlap, the one that started last wins.
func (t *ThreadScreen) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.started++
	seq := t.started
	t.mu.Unlock()

	thread, err := t.resolver.Resolve(ctx, t.selfID, t.conversationID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq < t.applied {
		return nil
	}
	t.applied = seq
	t.current = thread
	t.push(*thread)
	return nil
}

func (t *ThreadScreen) Current() *models.Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *ThreadScreen) Close() {
	t.group.Close()
}

type NotificationScreen struct {
	userID uuid.UUID
	source feedSource
	push   func([]models.Section)
	group  *realtime.Group

	mu           sync.Mutex
	tab          models.FeedTab
	filter       string
	regular      []models.RegularNotification
	appointments []models.AppointmentNotification
	regularSeq   fetchSeq
	apptSeq      fetchSeq
}

// fetchSeq orders overlapping fetches of one source so an older result never
// replaces a newer one. Guarded by the owning screen's mutex.
type fetchSeq struct {
	started uint64
	applied uint64
}

func (f *fetchSeq) begin() uint64 {
	f.started++
	return f.started
}

func (f *fetchSeq) accept(seq uint64) bool {
	if seq < f.applied {
		return false
	}
	f.applied = seq
	return true
}

func (s *ScreenService) OpenNotifications(
	ctx context.Context,
	userID uuid.UUID,
	tab models.FeedTab,
	filter string,
	push func([]models.Section),
) (*NotificationScreen, error) {
	if _, ok := ParseFeedTab(string(tab)); !ok || !ValidAppointmentFilter(filter) {
		return nil, ErrInvalidInput
	}

	screen := &NotificationScreen{
		userID: userID,
		source: s.notifications,
		push:   push,
		group:  &realtime.Group{},
		tab:    tab,
		filter: filter,
	}
	screen.group.Add(s.subscriber.Subscribe(realtime.TableNotifications, realtime.EventAll,
		func(ctx context.Context, _ realtime.ChangeEvent) {
			screen.refreshRegular(ctx)
		}))
	for _, table := range []realtime.Table{
		realtime.TableAppointments,
		realtime.TableGroupAppointments,
		realtime.TableAvailabilitySchedules,
	} {
		screen.group.Add(s.subscriber.Subscribe(table, realtime.EventAll,
			func(ctx context.Context, _ realtime.ChangeEvent) {
				screen.refreshAppointments(ctx)
			}))
	}
	screen.Refresh(ctx)
	return screen, nil
}

// Refresh refetches both sources and pushes the current tab.
func (n *NotificationScreen) Refresh(ctx context.Context) {
	n.mu.Lock()
	regularSeq := n.regularSeq.begin()
	apptSeq := n.apptSeq.begin()
	n.mu.Unlock()

	regular := n.source.ListRegular(ctx, n.userID)
	appointments := n.source.Synthesize(ctx, n.userID)

	n.mu.Lock()
	defer n.mu.Unlock()
	changed := false
	if n.regularSeq.accept(regularSeq) {
		n.regular = regular
		changed = true
	}
	if n.apptSeq.accept(apptSeq) {
		n.appointments = appointments
		changed = true
	}
	if changed {
		n.render()
	}
}

func (n *NotificationScreen) refreshRegular(ctx context.Context) {
	n.mu.Lock()
	seq := n.regularSeq.begin()
	n.mu.Unlock()

	regular := n.source.ListRegular(ctx, n.userID)

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.regularSeq.accept(seq) {
		return
	}
	n.regular = regular
	n.render()
}

func (n *NotificationScreen) refreshAppointments(ctx context.Context) {
	n.mu.Lock()
	seq := n.apptSeq.begin()
	n.mu.Unlock()

	appointments := n.source.Synthesize(ctx, n.userID)

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.apptSeq.accept(seq) {
		return
	}
	n.appointments = appointments
	n.render()
}

// SetView switches tab or filter without refetching.
func (n *NotificationScreen) SetView(tab models.FeedTab, filter string) error {
	if _, ok := ParseFeedTab(string(tab)); !ok || !ValidAppointmentFilter(filter) {
		return ErrInvalidInput
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.tab = tab
	n.filter = filter
	n.render()
	return nil
}

func (n *NotificationScreen) Sections() []models.Section {
	n.mu.Lock()
	defer n.mu.Unlock()
	return GetSections(n.tab, n.filter, n.regular, n.appointments)
}

func (n *NotificationScreen) Close() {
	n.group.Close()
}

// render must be called with mu held.
func (n *NotificationScreen) render() {
	n.push(GetSections(n.tab, n.filter, n.regular, n.appointments))
}
