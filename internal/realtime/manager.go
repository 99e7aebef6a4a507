package realtime

import (
	"context"
	"log"
	"sync"
	"time"
)

// Handler recomputes a view from scratch. It may be invoked any number of
// times for the same change and must replace, never append. Events that
// arrive together are coalesced and only the latest one is passed in, so a
// handler must not apply the event as an incremental update.
type Handler func(ctx context.Context, event ChangeEvent)

// Bridge carries events between service instances.
type Bridge interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Manager routes change events to subscriptions by table. Events that land on
// a subscription while it is waiting or running coalesce into a single
// further run, so a burst of changes costs at most two recomputations.
type Manager struct {
	mu       sync.RWMutex
	subs     map[Table]map[*Subscription]struct{}
	debounce time.Duration
	bridge   Bridge
	closed   bool
}

func NewManager(debounce time.Duration) *Manager {
	return &Manager{
		subs:     make(map[Table]map[*Subscription]struct{}),
		debounce: debounce,
	}
}

// SetBridge makes Publish go through the bridge instead of dispatching
// locally; the bridge is expected to feed events back into Dispatch.
func (m *Manager) SetBridge(bridge Bridge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bridge = bridge
}

func (m *Manager) Subscribe(table Table, filter EventType, handler Handler) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		manager: m,
		table:   table,
		filter:  filter,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		sub.closed = true
		cancel()
		return sub
	}
	set, ok := m.subs[table]
	if !ok {
		set = make(map[*Subscription]struct{})
		m.subs[table] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Dispatch delivers an event to the subscriptions of this instance only.
func (m *Manager) Dispatch(event ChangeEvent) {
	m.mu.RLock()
	targets := make([]*Subscription, 0, len(m.subs[event.Table]))
	for sub := range m.subs[event.Table] {
		if sub.filter.Matches(event) {
			targets = append(targets, sub)
		}
	}
	m.mu.RUnlock()

	for _, sub := range targets {
		sub.trigger(event)
	}
}

// Publish announces a change this service made itself, for example a message
// it just wrote, so that every instance refreshes the affected screens.
func (m *Manager) Publish(ctx context.Context, event ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	bridge := m.bridge
	m.mu.RUnlock()

	if bridge != nil {
		return bridge.Publish(ctx, event)
	}
	m.Dispatch(event)
	return nil
}

func (m *Manager) SubscriptionCount(table Table) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[table])
}

func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := make([]*Subscription, 0)
	for _, set := range m.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

func (m *Manager) remove(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[sub.table]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(m.subs, sub.table)
	}
}

type Subscription struct {
	manager *Manager
	table   Table
	filter  EventType
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	pending ChangeEvent
	running bool
	dirty   bool
	closed  bool
}

func (s *Subscription) Table() Table {
	return s.table
}

func (s *Subscription) trigger(event ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = event
	if s.running {
		s.dirty = true
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.manager.debounce, s.run)
	}
}

func (s *Subscription) run() {
	s.mu.Lock()
	s.timer = nil
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.running = true
	event := s.pending
	s.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("realtime: %s handler panic: %v", s.table, r)
			}
		}()
		s.handler(s.ctx, event)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.dirty && !s.closed {
		s.dirty = false
		s.timer = time.AfterFunc(s.manager.debounce, s.run)
	}
}

// Close stops future deliveries and cancels the context of a run in
// progress. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.manager.remove(s)
}

// Group is the set of subscriptions owned by one screen.
type Group struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

func (g *Group) Add(sub *Subscription) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sub.Close()
		return
	}
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (g *Group) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.closed = true
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
