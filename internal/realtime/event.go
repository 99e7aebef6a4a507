package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Table string

const (
	TableMessages              Table = "messages"
	TableConversations         Table = "conversations"
	TableAppointments          Table = "appointments"
	TableGroupAppointments     Table = "groupappointments"
	TableNotifications         Table = "notifications"
	TableAvailabilitySchedules Table = "availability_schedules"
)

var knownTables = map[Table]struct{}{
	TableMessages:              {},
	TableConversations:         {},
	TableAppointments:          {},
	TableGroupAppointments:     {},
	TableNotifications:         {},
	TableAvailabilitySchedules: {},
}

type EventType string

const (
	EventAll    EventType = "*"
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one insert, update or delete on a watched table, carrying
// the row before and after the change.
type ChangeEvent struct {
	Table Table          `json:"table"`
	Type  EventType      `json:"type"`
	Old   map[string]any `json:"old,omitempty"`
	New   map[string]any `json:"new,omitempty"`
}

func (e ChangeEvent) Validate() error {
	if _, ok := knownTables[e.Table]; !ok {
		return fmt.Errorf("unknown table %q", e.Table)
	}
	switch e.Type {
	case EventInsert, EventUpdate, EventDelete:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

// Matches reports whether an event passes a subscription's event filter.
func (t EventType) Matches(event ChangeEvent) bool {
	return t == EventAll || t == "" || t == event.Type
}

func DecodeChangeEvent(payload []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	event.Table = Table(strings.ToLower(strings.TrimSpace(string(event.Table))))
	event.Type = EventType(strings.ToUpper(strings.TrimSpace(string(event.Type))))
	if err := event.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return event, nil
}

func encodeChangeEvent(event ChangeEvent) ([]byte, error) {
	return json.Marshal(event)
}
