package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/zeromicro/go-zero/core/logx"
)

// Envelope is the unit delivered to members and relayed between instances.
type Envelope struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Data    any    `json:"data"`
	Origin  string `json:"origin,omitempty"`
	At      int64  `json:"at"`
}

// Member is one subscribed connection. Deliver must not block; it reports
// false when the envelope was dropped.
type Member interface {
	ID() string
	Deliver(env Envelope) bool
}

// Relay forwards envelopes to other instances sharing the same rooms.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
}

type Option func(*Coordinator)

func WithRelay(r Relay) Option                   { return func(c *Coordinator) { c.relay = r } }
func WithMetrics(m *telemetry.SimMetrics) Option { return func(c *Coordinator) { c.metrics = m } }
func WithNodeID(id string) Option                { return func(c *Coordinator) { c.node = id } }

// Coordinator tracks channel membership and fans events out to members.
// Delivery is at most once and only to members present at emission time.
type Coordinator struct {
	node    string
	relay   Relay
	metrics *telemetry.SimMetrics

	mu     sync.RWMutex
	rooms  map[string]map[string]Member
	joined map[string]map[string]struct{}

	outbox chan Envelope
	done   chan struct{}
	once   sync.Once
}

const relayBuffer = 1024

func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:  make(map[string]map[string]Member),
		joined: make(map[string]map[string]struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.node == "" {
		c.node = uuid.NewString()
	}
	if c.relay != nil {
		c.outbox = make(chan Envelope, relayBuffer)
		go c.relayLoop()
	}
	return c
}

// NodeID identifies this instance in relayed envelopes.
func (c *Coordinator) NodeID() string { return c.node }

// Join adds m to ch. Joining twice is harmless.
func (c *Coordinator) Join(ch Channel, m Member) error {
	if !ch.Valid() {
		return fmt.Errorf("join: invalid channel %q", ch.String())
	}
	key := ch.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.rooms[key]
	if room == nil {
		room = make(map[string]Member)
		c.rooms[key] = room
	}
	room[m.ID()] = m
	set := c.joined[m.ID()]
	if set == nil {
		set = make(map[string]struct{})
		c.joined[m.ID()] = set
	}
	set[key] = struct{}{}
	return nil
}

// Leave removes one membership. Unknown members and channels are ignored.
func (c *Coordinator) Leave(ch Channel, memberID string) {
	key := ch.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked(key, memberID)
}

// Drop removes memberID from every channel; it is called when a connection closes.
func (c *Coordinator) Drop(memberID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.joined[memberID] {
		c.leaveLocked(key, memberID)
	}
	delete(c.joined, memberID)
}

func (c *Coordinator) leaveLocked(key, memberID string) {
	if room := c.rooms[key]; room != nil {
		delete(room, memberID)
		if len(room) == 0 {
			delete(c.rooms, key)
		}
	}
	if set := c.joined[memberID]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(c.joined, memberID)
		}
	}
}

// Members returns the number of local members of ch.
func (c *Coordinator) Members(ch Channel) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms[ch.String()])
}

// Channels lists the channels memberID has joined, sorted.
func (c *Coordinator) Channels(memberID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.joined[memberID]))
	for key := range c.joined[memberID] {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Emit delivers event to every current member of ch and hands it to the relay.
// A channel without members is not an error.
func (c *Coordinator) Emit(ch Channel, event string, payload any) {
	env := Envelope{Channel: ch.String(), Event: event, Data: payload, Origin: c.node, At: time.Now().UnixMilli()}
	c.DeliverLocal(env)
	if c.outbox != nil {
		select {
		case c.outbox <- env:
		default:
			logx.Errorf("broadcast relay backlog full, dropping %s on %s", event, env.Channel)
		}
	}
}

// DeliverLocal fans env out to local members only.
func (c *Coordinator) DeliverLocal(env Envelope) {
	c.mu.RLock()
	room := c.rooms[env.Channel]
	members := make([]Member, 0, len(room))
	for _, m := range room {
		members = append(members, m)
	}
	c.mu.RUnlock()

	kind := kindOf(env.Channel)
	delivered := 0
	for _, m := range members {
		if m.Deliver(env) {
			delivered++
			continue
		}
		c.metrics.Drop(kind, env.Event)
	}
	c.metrics.Delivered(kind, env.Event, delivered)
}

// Close stops the relay loop.
func (c *Coordinator) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Coordinator) relayLoop() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := c.relay.Publish(ctx, env); err != nil {
				logx.Errorf("broadcast relay publish %s: %v", env.Event, err)
			}
			cancel()
		}
	}
}

func kindOf(channel string) string {
	if ch, err := ParseChannel(channel); err == nil {
		return string(ch.Kind)
	}
	return "unknown"
}
