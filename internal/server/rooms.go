package server

import (
	"slices"
	"sync"
)

// room is the broadcast group of one session. Its mutex is held for the whole
// mutate-then-enqueue sequence of every request touching the session, which
// makes the enqueue order of frames equal to the commit order of mutations.
type room struct {
	mu      sync.Mutex
	id      string
	members map[*Conn]struct{}
	removed bool
}

func newRoom(id string) *room {
	return &room{id: id, members: make(map[*Conn]struct{})}
}

func (r *room) subscribe(c *Conn) {
	r.members[c] = struct{}{}
}

func (r *room) unsubscribe(c *Conn) {
	delete(r.members, c)
}

func (r *room) has(c *Conn) bool {
	_, ok := r.members[c]
	return ok
}

// broadcast enqueues frame for every member. Members whose send buffer is full
// are evicted and their connection is closed; they are cleaned up through the
// regular disconnect path.
func (r *room) broadcast(frame []byte) int {
	delivered := 0
	for c := range r.members {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		delete(r.members, c)
		if c.closeSend() {
			c.logger.Warn("evicted slow connection", "session_id", r.id)
		}
	}
	return delivered
}

// roomHub maps session ids to rooms. Rooms are created on demand and dropped
// once they have no members.
type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*room)}
}

// lock returns the live room for id with its mutex held. Callers must release
// it with unlock.
func (h *roomHub) lock(id string) *room {
	for {
		h.mu.Lock()
		r, ok := h.rooms[id]
		if !ok {
			r = newRoom(id)
			h.rooms[id] = r
		}
		h.mu.Unlock()

		r.mu.Lock()
		if !r.removed {
			return r
		}
		r.mu.Unlock()
	}
}

// unlock releases r, dropping it from the hub first if it has no members.
func (h *roomHub) unlock(r *room) {
	if len(r.members) == 0 {
		r.removed = true
		h.mu.Lock()
		if h.rooms[r.id] == r {
			delete(h.rooms, r.id)
		}
		h.mu.Unlock()
	}
	r.mu.Unlock()
}

// lockAll locks the rooms for every non-empty id, in id order so that two
// callers locking overlapping sets cannot deadlock. Release with unlockAll.
func (h *roomHub) lockAll(ids ...string) map[string]*room {
	sorted := slices.Compact(slices.Sorted(slices.Values(ids)))
	locked := make(map[string]*room, len(sorted))
	for _, id := range sorted {
		if id == "" {
			continue
		}
		locked[id] = h.lock(id)
	}
	return locked
}

func (h *roomHub) unlockAll(locked map[string]*room) {
	for _, r := range locked {
		h.unlock(r)
	}
}

// count returns the number of live rooms.
func (h *roomHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
