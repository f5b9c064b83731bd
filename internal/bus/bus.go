// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for CortexFace
const (
	// Speech lifecycle events
	EventTypeSpeechQueued   EventType = "speech.queued"
	EventTypeSpeechStarted  EventType = "speech.started"
	EventTypeSpeechEnded    EventType = "speech.ended"
	EventTypeSpeechPaused   EventType = "speech.paused"
	EventTypeSpeechResumed  EventType = "speech.resumed"
	EventTypeSpeechError    EventType = "speech.error"
	EventTypeSpeechCanceled EventType = "speech.canceled"
	EventTypeSpeechBoundary EventType = "speech.boundary"
	EventTypeSpeechStall    EventType = "speech.stall"
	EventTypeVoicesChanged  EventType = "speech.voices_changed"

	// Sentiment events
	EventTypeSentimentAnalyzed EventType = "sentiment.analyzed"

	// Face events
	EventTypeFaceStateChanged EventType = "face.state_changed"

	// Log streaming
	EventTypeLog EventType = "log.entry"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	return handlers
}

// Publish sends an event to all subscribed handlers without waiting
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync calls every handler in subscription order on the caller's
// goroutine. Successive PublishSync calls from one goroutine are observed in
// order, which the face controller relies on.
func (b *EventBus) PublishSync(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		handler(event)
	}
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
