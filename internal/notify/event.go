// Package notify delivers per-user session lifecycle events to connected
// websocket clients. Delivery is best effort and nothing is persisted.
package notify

import "time"

type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// EventError is the client-safe failure detail carried by a failed event.
type EventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	Progress  int         `json:"progress,omitempty"`
	Step      string      `json:"step,omitempty"`
	Analysis  any         `json:"analysis,omitempty"`
	Error     *EventError `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Terminal reports whether no further events follow for the session.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}

// Publisher is the capability the analysis pipeline uses to emit events.
type Publisher interface {
	Publish(userID string, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, Event) {}
