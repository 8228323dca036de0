// Package pubsub publishes build progress to in-process subscribers, which
// the web server relays as Server-Sent Events.
package pubsub

import (
	"context"
	"encoding/json"
)

// TopicBuildStatus carries BuildStatus payloads
const TopicBuildStatus = "build_status"

// Build status event types
const (
	EventStarted     = "started"
	EventClassifying = "classifying"
	EventInferring   = "inferring"
	EventCompiling   = "compiling"
	EventSaving      = "saving"
	EventFinished    = "finished"
	EventFailed      = "failed"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // e.g. "build_status"
	Type    string          `json:"type"`    // e.g. "compiling"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic sequence number
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// BuildStatus is the payload of TopicBuildStatus events
type BuildStatus struct {
	State    string `json:"state"`   // one of the Event* types
	Message  string `json:"message"` // Human-readable status message
	Step     int    `json:"step"`    // Current step number (1-based)
	Total    int    `json:"total"`   // Total number of steps
	BuildID  string `json:"build_id"`
	ExitCode *int   `json:"exit_code,omitempty"` // set on finished
}
