// Package websocket implements the real-time event broadcaster. Connections
// join named channels and receive every event published to any channel they
// belong to, exactly once per event, on a best-effort basis.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrEmptyEventType = errors.New("event type is required")
	ErrNoTargets      = errors.New("event has no target channels")
)

var channelPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// relayRoutes lists the client-originated events the hub forwards, and where.
var relayRoutes = map[string][]string{
	EventPrescriptionSent:      {ChannelPharmacy, ChannelAdmin},
	EventPrescriptionReceived:  {ChannelDoctors},
	EventPrescriptionDispensed: {ChannelPatients, ChannelAdmin},
}

// Client represents a single WebSocket connection.
type Client struct {
	ID   string
	Send chan []byte

	channels map[string]struct{}
}

// NewClient creates a client with a send buffer of the given size.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:       id,
		Send:     make(chan []byte, buffer),
		channels: make(map[string]struct{}),
	}
}

// Hub tracks clients and their channel membership. All operations are
// thread-safe via sync.RWMutex.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{} // channel -> set of clients
	all      map[*Client]struct{}

	logger zerolog.Logger
	now    func() time.Time
}

// NewHub creates a new Hub ready to manage WebSocket clients.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		all:      make(map[*Client]struct{}),
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a client to the hub. It belongs to no channel until it joins one.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Unregister removes a client from the hub and every channel, and closes its
// Send channel. Calling it twice is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for name := range client.channels {
		h.removeMember(name, client)
	}
	client.channels = make(map[string]struct{})
	delete(h.all, client)
	close(client.Send)
}

// Join adds a registered client to the given channels. Invalid names are
// skipped and returned as an error after the valid ones are applied.
func (h *Hub) Join(client *Client, names ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return fmt.Errorf("client %s is not registered", client.ID)
	}

	var invalid []string
	for _, name := range names {
		if !channelPattern.MatchString(name) {
			invalid = append(invalid, name)
			continue
		}
		if h.channels[name] == nil {
			h.channels[name] = make(map[*Client]struct{})
		}
		h.channels[name][client] = struct{}{}
		client.channels[name] = struct{}{}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid channel names: %v", invalid)
	}
	return nil
}

// Leave removes a client from the given channels.
func (h *Hub) Leave(client *Client, names ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range names {
		h.removeMember(name, client)
		delete(client.channels, name)
	}
}

func (h *Hub) removeMember(name string, client *Client) {
	if members, ok := h.channels[name]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
}

// ChannelsOf returns the sorted channel names a client belongs to.
func (h *Hub) ChannelsOf(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(client.channels))
	for name := range client.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Publish implements Publisher. The event is encoded once and queued on
// every client that belongs to at least one target channel. A client whose
// buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	_, err := h.deliver(event)
	return err
}

func (h *Hub) deliver(event Event) (int, error) {
	if event.Type == "" {
		return 0, ErrEmptyEventType
	}
	if len(event.Targets) == 0 {
		return 0, ErrNoTargets
	}

	data, err := json.Marshal(Envelope{
		Event:     event.Type,
		Data:      event.Payload,
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	recipients := make(map[*Client]struct{})
	for _, name := range event.Targets {
		for client := range h.channels[name] {
			recipients[client] = struct{}{}
		}
	}

	delivered := 0
	for client := range recipients {
		select {
		case client.Send <- data:
			delivered++
		default:
			h.logger.Warn().
				Str("client_id", client.ID).
				Str("event", event.Type).
				Msg("websocket send buffer full, event dropped")
		}
	}
	return delivered, nil
}

// ProcessMessage handles an inbound ClientMessage.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "join":
		if err := h.Join(client, msg.Channels...); err != nil {
			h.logger.Debug().Err(err).Str("client_id", client.ID).Msg("websocket join")
		}
	case "leave":
		h.Leave(client, msg.Channels...)
	case "emit":
		h.relay(client, msg)
	default:
		h.logger.Debug().Str("client_id", client.ID).Str("action", msg.Action).Msg("websocket unknown action")
	}
}

func (h *Hub) relay(client *Client, msg ClientMessage) {
	targets, ok := relayRoutes[msg.Event]
	if !ok {
		h.logger.Debug().Str("client_id", client.ID).Str("event", msg.Event).Msg("websocket relay not allowed")
		return
	}
	var payload interface{}
	if len(msg.Data) > 0 {
		payload = msg.Data
	}
	if _, err := h.deliver(Event{Type: msg.Event, Payload: payload, Targets: targets}); err != nil {
		h.logger.Warn().Err(err).Str("event", msg.Event).Msg("websocket relay failed")
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// ChannelCount returns the number of clients in a channel.
func (h *Hub) ChannelCount(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[name])
}

// Stats is a point-in-time view of hub membership.
type Stats struct {
	Clients  int            `json:"clients"`
	Channels map[string]int `json:"channels"`
}

// Stats returns the number of clients overall and per channel.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{Clients: len(h.all), Channels: make(map[string]int, len(h.channels))}
	for name, members := range h.channels {
		s.Channels[name] = len(members)
	}
	return s
}
