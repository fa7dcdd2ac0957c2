package service

import (
	"sync"

	"topomerge/internal/progress"
)

// EventType defines the type of event
type EventType string

const (
	EventProgress          EventType = "progress"
	EventRecordsLoaded     EventType = "records_loaded"
	EventConflictsLoaded   EventType = "conflicts_loaded"
	EventMerged            EventType = "merged"
	EventDeployed          EventType = "deployed"
	EventWorkflowAbandoned EventType = "workflow_abandoned"
)

// Event represents an event that occurred in a workflow
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	eb.subscribers = append(eb.subscribers, ch)
	eb.mu.Unlock()
}

// Unsubscribe removes ch; it is not closed
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// ProgressSink publishes every progress value as an EventProgress
func ProgressSink(eb *EventBus) progress.Sink {
	return func(v float64) {
		eb.Publish(Event{Type: EventProgress, Payload: v})
	}
}
