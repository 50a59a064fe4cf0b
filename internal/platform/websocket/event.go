package websocket

import (
	"context"
	"encoding/json"
	"time"
)

// Channel names joined by the role-based dashboards.
const (
	ChannelDoctors   = "doctors"
	ChannelPharmacy  = "pharmacy"
	ChannelAdmin     = "admin"
	ChannelPatients  = "patients"
	ChannelReception = "reception"
)

// Event names published by the coordination core.
const (
	EventQueueUpdated          = "QUEUE_UPDATED"
	EventDoctorStatusChanged   = "DOCTOR_STATUS_CHANGED"
	EventSOSAlert              = "SOS_ALERT"
	EventSOSAcknowledged       = "SOS_ACKNOWLEDGED"
	EventNotification          = "NOTIFICATION"
	EventPrescriptionSent      = "PRESCRIPTION_SENT"
	EventPrescriptionReceived  = "PRESCRIPTION_RECEIVED"
	EventPrescriptionDispensed = "PRESCRIPTION_DISPENSED"
)

// UserChannel returns the private channel of a single user.
func UserChannel(userID string) string {
	return "user_" + userID
}

// Event is a domain event addressed to a set of channels.
type Event struct {
	Type    string
	Payload interface{}
	Targets []string
}

// Envelope is the frame written to a client for every delivered event.
type Envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage represents an inbound message from a WebSocket client.
type ClientMessage struct {
	Action   string          `json:"action"`
	Channels []string        `json:"channels,omitempty"`
	Event    string          `json:"event,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Publisher is implemented by anything that can fan an event out to
// connected clients. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broadcaster is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// OrNop returns p, or a NopPublisher when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return NopPublisher{}
	}
	return p
}
