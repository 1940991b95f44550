package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTrialBooked          = "trial_booked"
	EventStatusChanged        = "status_changed"
	EventPaymentLinkRequested = "payment_link_requested"
	EventFollowUpScheduled    = "follow_up_scheduled"
	EventFollowUpCompleted    = "follow_up_completed"
)

// BookingEventPayload is the minimal booking snapshot handed to consumers.
type BookingEventPayload struct {
	BookingID     int64     `json:"booking_id"`
	StudentID     int64     `json:"student_id"`
	StudentName   string    `json:"student_name"`
	Phone         string    `json:"phone,omitempty"`
	FamilyGroupID string    `json:"family_group_id,omitempty"`
	TeacherID     int64     `json:"teacher_id"`
	TeacherName   string    `json:"teacher_name,omitempty"`
	Status        string    `json:"status"`
	UTCStart      time.Time `json:"utc_start"`
	ChangedBy     string    `json:"changed_by,omitempty"`
}

// StatusEventPayload describes one lifecycle transition.
type StatusEventPayload struct {
	BookingID int64  `json:"booking_id"`
	From      string `json:"from"`
	Event     string `json:"event"`
	To        string `json:"to"`
	ChangedBy string `json:"changed_by,omitempty"`
}

// PaymentEventPayload describes a requested checkout link.
type PaymentEventPayload struct {
	FamilyGroupID string `json:"family_group_id,omitempty"`
	BookingID     int64  `json:"booking_id,omitempty"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
