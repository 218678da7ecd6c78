// Package pubsub provides a generic publish/subscribe event system used to
// fan events (file changes, log lines, process output) into the Bubble Tea
// update loop.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// TranscriptChangedEvent signals the active session JSONL was rewritten.
	TranscriptChangedEvent EventType = "transcript_changed"
	// LogLineEvent carries a formatted log entry for the log overlay.
	LogLineEvent EventType = "log_line"
	// ProcessEvent carries output from a running Claude process.
	ProcessEvent EventType = "process"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
