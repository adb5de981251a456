package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SessionEvent marks session lifecycle transitions on session-aware
// transports (USSD, XMPP). Most SMS-style messages carry none.
type SessionEvent string

const (
	SessionNone   SessionEvent = ""
	SessionNew    SessionEvent = "new"
	SessionResume SessionEvent = "resume"
	SessionClose  SessionEvent = "close"
)

// EventType identifies a delivery event.
type EventType string

const (
	EventAck            EventType = "ack"
	EventNack           EventType = "nack"
	EventDeliveryReport EventType = "delivery_report"
)

// UserMessage is the user-message envelope carried on <name>.inbound and
// <name>.outbound queues. The wire form is a JSON object.
//
// TransportName is the endpoint of origin at the point of observation;
// routers that remap endpoints rewrite the field before publishing.
type UserMessage struct {
	MessageID         string         `json:"message_id"`
	TransportName     string         `json:"transport_name"`
	TransportType     string         `json:"transport_type,omitempty"`
	ToAddr            string         `json:"to_addr"`
	FromAddr          string         `json:"from_addr"`
	Content           string         `json:"content"`
	SessionEvent      SessionEvent   `json:"session_event,omitempty"`
	Group             string         `json:"group,omitempty"`
	TransportMetadata map[string]any `json:"transport_metadata,omitempty"`
}

// NewUserMessage creates an envelope with a fresh message id.
func NewUserMessage(transportName, toAddr, fromAddr, content string) *UserMessage {
	return &UserMessage{
		MessageID:     uuid.NewString(),
		TransportName: transportName,
		ToAddr:        toAddr,
		FromAddr:      fromAddr,
		Content:       content,
	}
}

// User returns the stable per-user key for this message.
func (m *UserMessage) User() string {
	return m.FromAddr
}

// Copy returns a structurally independent duplicate. Routers must clone
// before each fan-out publish so middleware never sees the same instance
// on two pipelines.
func (m *UserMessage) Copy() *UserMessage {
	dup := *m
	dup.TransportMetadata = copyMetadata(m.TransportMetadata)
	return &dup
}

// Encode renders the envelope to its JSON wire form.
func (m *UserMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("dispatchmux: encode user message: %w", err)
	}
	return data, nil
}

// DecodeUserMessage parses a user-message envelope from its wire form.
func DecodeUserMessage(data []byte) (*UserMessage, error) {
	var m UserMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("dispatchmux: decode user message: %w", err)
	}
	if m.MessageID == "" {
		return nil, fmt.Errorf("dispatchmux: decode user message: missing message_id")
	}
	if m.TransportName == "" {
		return nil, fmt.Errorf("dispatchmux: decode user message: missing transport_name")
	}
	return &m, nil
}

// Event is the delivery-event envelope carried on <name>.event queues.
// UserMessageID refers to the user message the event reports on.
type Event struct {
	EventID           string         `json:"event_id"`
	EventType         EventType      `json:"event_type"`
	UserMessageID     string         `json:"user_message_id"`
	TransportName     string         `json:"transport_name"`
	TransportMetadata map[string]any `json:"transport_metadata,omitempty"`
}

// NewEvent creates an event envelope with a fresh event id.
func NewEvent(eventType EventType, userMessageID, transportName string) *Event {
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		UserMessageID: userMessageID,
		TransportName: transportName,
	}
}

// Copy returns a structurally independent duplicate of the event.
func (e *Event) Copy() *Event {
	dup := *e
	dup.TransportMetadata = copyMetadata(e.TransportMetadata)
	return &dup
}

// Encode renders the event to its JSON wire form.
func (e *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("dispatchmux: encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an event envelope from its wire form.
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("dispatchmux: decode event: %w", err)
	}
	if e.UserMessageID == "" {
		return nil, fmt.Errorf("dispatchmux: decode event: missing user_message_id")
	}
	if e.EventType == "" {
		return nil, fmt.Errorf("dispatchmux: decode event: missing event_type")
	}
	return &e, nil
}

// FailureMessage wraps a user message that could not be processed,
// together with the reason. Failure queues are attached by external
// failure workers; the middleware contract carries the direction so
// those workers can share the same stack.
type FailureMessage struct {
	Message *UserMessage `json:"message"`
	Reason  string       `json:"reason"`
}

// copyMetadata deep-copies an open metadata mapping. Nested maps and
// slices are duplicated; scalar values are shared as-is.
func copyMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	dup := make(map[string]any, len(meta))
	for k, v := range meta {
		dup[k] = copyValue(v)
	}
	return dup
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMetadata(t)
	case []any:
		dup := make([]any, len(t))
		for i, e := range t {
			dup[i] = copyValue(e)
		}
		return dup
	default:
		return v
	}
}
