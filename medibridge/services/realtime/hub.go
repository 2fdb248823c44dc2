package realtime

import (
	"fmt"
	"sync"
)

// Member is anything that can sit in a room. Send must not block: it queues the frame or
// reports false when the member can no longer take frames.
type Member interface {
	Send(frame []byte) bool
}

// Hub tracks room membership and fans events out to members.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Member]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Member]struct{})}
}

func (h *Hub) Join(m Member, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[Member]struct{})
		h.rooms[room] = members
	}
	members[m] = struct{}{}
}

func (h *Hub) Leave(m Member, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(m, room)
}

// LeaveAll removes m from every room it joined.
func (h *Hub) LeaveAll(m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.leaveLocked(m, room)
	}
}

func (h *Hub) leaveLocked(m Member, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit sends an event to everyone in the room. An empty room is a no-op.
func (h *Hub) Emit(room, event string, payload any) error {
	return h.EmitExcept(room, event, payload, nil)
}

// EmitExcept sends an event to everyone in the room but except.
// Frames are queued before EmitExcept returns, so two emits made in sequence
// reach each member in that order.
func (h *Hub) EmitExcept(room, event string, payload any, except Member) error {
	targets := h.snapshot(room, except)
	if len(targets) == 0 {
		return nil
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	for _, m := range targets {
		if !m.Send(frame) {
			h.LeaveAll(m)
		}
	}
	return nil
}

func (h *Hub) snapshot(room string, except Member) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	out := make([]Member, 0, len(members))
	for m := range members {
		if m != except {
			out = append(out, m)
		}
	}
	return out
}
