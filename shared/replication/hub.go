// Package replication carries a projectile's published state from its
// authority to observers. Each field is versioned on its own; readers only
// ever see the latest value. One-shot events ride alongside in order.
package replication

import (
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sasha-s/go-deadlock"
)

// Field names one independently versioned value.
type Field int

const (
	FieldPosition Field = iota
	FieldVelocity
	FieldPointIndex
	FieldMoving
	FieldEffect
	fieldCount
)

func (f Field) String() string {
	switch f {
	case FieldPosition:
		return "position"
	case FieldVelocity:
		return "velocity"
	case FieldPointIndex:
		return "pointIndex"
	case FieldMoving:
		return "moving"
	case FieldEffect:
		return "effect"
	}
	return "unknown"
}

// State is the observable projection of a flight.
type State struct {
	Position   mgl64.Vec3 `json:"position"`
	Velocity   mgl64.Vec3 `json:"velocity"`
	PointIndex int        `json:"pointIndex"`
	Moving     bool       `json:"moving"`
}

// Snapshot is the latest value of every field with its version. A version of
// zero means the field was never published.
type Snapshot struct {
	State
	EffectID spawn.ObjectID    `json:"effectId"`
	Versions [fieldCount]uint64 `json:"-"`
}

func (s Snapshot) Version(f Field) uint64 { return s.Versions[f] }

// Seen reports whether any field has been published.
func (s Snapshot) Seen() bool {
	for _, v := range s.Versions {
		if v > 0 {
			return true
		}
	}
	return false
}

// Hub is the write side. Only the authority (or the observer-side mirror of
// a remote authority) publishes into it.
type Hub struct {
	mu     deadlock.Mutex
	snap   Snapshot
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
	}
}

// Publish writes every field of s, bumping versions of the ones that changed.
// It returns true if anything changed.
func (h *Hub) Publish(s State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	changed := h.setPosition(s.Position)
	changed = h.setVelocity(s.Velocity) || changed
	changed = h.setPointIndex(s.PointIndex) || changed
	changed = h.setMoving(s.Moving) || changed
	return changed
}

// SetEffect publishes the effect identity.
func (h *Hub) SetEffect(id spawn.ObjectID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snap.Versions[FieldEffect] > 0 && h.snap.EffectID == id {
		return false
	}
	h.snap.EffectID = id
	h.snap.Versions[FieldEffect]++
	return true
}

// Broadcast queues a one-shot event for every current subscriber.
func (h *Hub) Broadcast(evt any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		sub.events = append(sub.events, evt)
	}
}

// Latest returns the current snapshot.
func (h *Hub) Latest() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Subscribe registers a reader. Events broadcast before this call are not
// delivered to it.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h}
	h.mu.Lock()
	if !h.closed {
		h.subs[sub] = struct{}{}
	}
	h.mu.Unlock()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscription. Pending events stay readable.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	clear(h.subs)
}

func (h *Hub) setPosition(v mgl64.Vec3) bool {
	if h.snap.Versions[FieldPosition] > 0 && h.snap.Position == v {
		return false
	}
	h.snap.Position = v
	h.snap.Versions[FieldPosition]++
	return true
}

func (h *Hub) setVelocity(v mgl64.Vec3) bool {
	if h.snap.Versions[FieldVelocity] > 0 && h.snap.Velocity == v {
		return false
	}
	h.snap.Velocity = v
	h.snap.Versions[FieldVelocity]++
	return true
}

func (h *Hub) setPointIndex(i int) bool {
	if h.snap.Versions[FieldPointIndex] > 0 && h.snap.PointIndex == i {
		return false
	}
	h.snap.PointIndex = i
	h.snap.Versions[FieldPointIndex]++
	return true
}

func (h *Hub) setMoving(m bool) bool {
	if h.snap.Versions[FieldMoving] > 0 && h.snap.Moving == m {
		return false
	}
	h.snap.Moving = m
	h.snap.Versions[FieldMoving]++
	return true
}

// Subscription is the read side, drained once per tick by one observer.
type Subscription struct {
	hub    *Hub
	events []any
}

// Drain returns the latest snapshot and every event queued since the last
// call, oldest first.
func (s *Subscription) Drain() (Snapshot, []any) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	events := s.events
	s.events = nil
	return s.hub.snap, events
}

// Close stops delivery to this subscription.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
}
