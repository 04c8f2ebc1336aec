// Package events carries domain events from the services to their
// subscribers. Publication is explicit and happens after the mutation that
// caused it has been stored.
package events

import (
	"context"
	"sync"
	"time"

	"goldenminutes/models"

	"github.com/sirupsen/logrus"
)

// Event types
const (
	EmergencyTriggered          = "emergency.triggered"
	ResponseNotified            = "response.notified"
	ResponseViewed              = "response.viewed"
	ResponseAccepted            = "response.accepted"
	ResponseDeclined            = "response.declined"
	ResponderEnRoute            = "responder.en_route"
	ResponderArrived            = "responder.arrived"
	EmergencyResolved           = "emergency.resolved"
	EmergencyCancelled          = "emergency.cancelled"
	EmergencyBystanderActivated = "emergency.bystander_activated"
)

type Event struct {
	Type        string                    `json:"type"`
	EmergencyID string                    `json:"emergencyId"`
	ResponderID string                    `json:"responderId,omitempty"`
	ActorID     string                    `json:"actorId,omitempty"`
	Emergency   *models.Emergency         `json:"emergency,omitempty"`
	Response    *models.EmergencyResponse `json:"response,omitempty"`
	OccurredAt  time.Time                 `json:"occurredAt"`
	// Origin identifies the process that published the event.
	Origin string `json:"origin,omitempty"`
}

// Handler reacts to an event. A returned error is logged and never reaches
// the publisher.
type Handler func(ctx context.Context, event Event) error

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus is a synchronous in-process publish/subscribe dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers []subscription
}

type subscription struct {
	name  string
	types map[string]bool
	fn    Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for the given types, or for every type when none
// are given.
func (b *Bus) Subscribe(name string, fn Handler, types ...string) {
	sub := subscription{name: name, fn: fn}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	b.handlers = append(b.handlers, sub)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.RLock()
	handlers := append([]subscription(nil), b.handlers...)
	b.mu.RUnlock()

	for _, sub := range handlers {
		if sub.types != nil && !sub.types[event.Type] {
			continue
		}
		b.dispatch(ctx, sub, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"subscriber":  sub.name,
				"event":       event.Type,
				"emergencyId": event.EmergencyID,
			}).Errorf("Event handler panicked: %v", r)
		}
	}()

	if err := sub.fn(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"subscriber":  sub.name,
			"event":       event.Type,
			"emergencyId": event.EmergencyID,
			"responderId": event.ResponderID,
		}).Errorf("Event handler failed: %v", err)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
