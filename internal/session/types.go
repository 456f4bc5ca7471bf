// Package session owns planning poker session state: the Store that maps
// session identifiers to sessions, and the Manager that applies every state
// transition atomically under the owning session's lock.
//
// Nothing in this package performs network I/O. Callers receive deep copies
// of session state and are free to encode or broadcast them after the lock
// has been released.
package session

import (
	"encoding/json"
	"maps"
	"time"
)

// Client is the metadata recorded for a participant registered in a session.
type Client struct {
	Name string `json:"name"`
}

// Item is a unit of work being estimated.
//
// Votes maps client identifiers to opaque vote values. The server never
// inspects a vote; any JSON value other than null is accepted.
type Item struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	Created     time.Time                  `json:"created"`
	Votes       map[string]json.RawMessage `json:"votes"`
}

// Session is a shared planning poker workspace.
//
// Host holds the client identifier of the session owner, or "" when no
// client has claimed the role. On the wire an unset host is null.
type Session struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Host    string            `json:"host"`
	Items   []Item            `json:"items"`
	Clients map[string]Client `json:"clients"`
	Reveal  bool              `json:"reveal"`
	Created time.Time         `json:"created"`

	lastActive time.Time
}

// JoinResult is returned by Manager.JoinOrCreate.
type JoinResult struct {
	SessionID string
	ClientID  string
	Session   Session
	Created   bool
}

// Departure describes the state left behind by Manager.RemoveClient.
// Items only lists the items whose vote maps lost an entry.
type Departure struct {
	Clients map[string]Client
	Items   []Item
}

// MarshalJSON encodes an unset Host as null.
func (s Session) MarshalJSON() ([]byte, error) {
	type plain Session
	return json.Marshal(struct {
		plain
		Host *string `json:"host"`
	}{plain: plain(s), Host: nullable(s.Host)})
}

// MarshalJSON encodes an empty Description as null.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		Description *string `json:"description"`
	}{plain: plain(it), Description: nullable(it.Description)})
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func newSession(id, name string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Name:       name,
		Items:      []Item{},
		Clients:    make(map[string]Client),
		Created:    now,
		lastActive: now,
	}
}

func (s *Session) snapshot() Session {
	out := *s
	out.Items = make([]Item, len(s.Items))
	for i := range s.Items {
		out.Items[i] = s.Items[i].snapshot()
	}
	out.Clients = s.clientsSnapshot()
	return out
}

func (s *Session) clientsSnapshot() map[string]Client {
	return maps.Clone(s.Clients)
}

func (s *Session) item(id string) (*Item, bool) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], true
		}
	}
	return nil, false
}

func (s *Session) touch(now time.Time) {
	s.lastActive = now
}

// Vote values are replaced, never modified in place, so sharing the byte
// slices between snapshots is safe.
func (it *Item) snapshot() Item {
	out := *it
	out.Votes = it.votesSnapshot()
	return out
}

func (it *Item) votesSnapshot() map[string]json.RawMessage {
	votes := maps.Clone(it.Votes)
	if votes == nil {
		votes = make(map[string]json.RawMessage)
	}
	return votes
}
