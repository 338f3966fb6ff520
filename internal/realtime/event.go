package realtime

import (
	"context"
	"sync"

	"fluxior-backend/internal/models"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

const TableLeads = "leads"

// Event is one change of the leads table. Lead is set for insert and update.
type Event struct {
	Type  EventType    `json:"type"`
	Table string       `json:"table"`
	ID    string       `json:"id"`
	Lead  *models.Lead `json:"record,omitempty"`
}

func InsertEvent(lead models.Lead) Event {
	return Event{Type: EventInsert, Table: TableLeads, ID: lead.ID, Lead: &lead}
}

func UpdateEvent(lead models.Lead) Event {
	return Event{Type: EventUpdate, Table: TableLeads, ID: lead.ID, Lead: &lead}
}

func DeleteEvent(id string) Event {
	return Event{Type: EventDelete, Table: TableLeads, ID: id}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

type Broker interface {
	Publisher
	Subscriber
}

// Subscription delivers events until Close is called.
type Subscription struct {
	events  <-chan Event
	closeFn func()
	once    sync.Once
}

func newSubscription(events <-chan Event, closeFn func()) *Subscription {
	return &Subscription{events: events, closeFn: closeFn}
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(s.closeFn)
}

// Discard drops every event. Used when a change stream publishes instead of the services.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
