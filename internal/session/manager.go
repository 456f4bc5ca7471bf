package session

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Tyrowin/pokerroom/internal/idgen"
)

const (
	defaultClientName = "Guest"
)

// Manager applies planning poker state transitions on top of a Store. Every
// operation runs under the target session's lock and returns copies, so no
// caller can observe a partially applied mutation.
type Manager struct {
	store *Store
	newID idgen.Generator
}

// NewManager creates a Manager over store. gen produces item and client
// identifiers; nil selects the default token length.
func NewManager(store *Store, gen idgen.Generator) *Manager {
	if gen == nil {
		gen = idgen.NewGenerator(idgen.DefaultLength)
	}
	return &Manager{store: store, newID: gen}
}

// Store returns the registry the manager operates on.
func (m *Manager) Store() *Store {
	return m.store
}

// JoinOrCreate registers a new client named displayName.
//
// With a requestedID the client joins that session, or ErrSessionNotFound is
// returned and nothing is modified. Without one a new session named after
// displayName is created first. When asHost is set the new client becomes the
// session host, replacing any previous host.
func (m *Manager) JoinOrCreate(requestedID, displayName string, asHost bool) (JoinResult, error) {
	if displayName == "" {
		displayName = defaultClientName
	}

	created := false
	sessionID := requestedID
	if sessionID == "" {
		sessionID = m.store.Create(displayName)
		created = true
	}

	result := JoinResult{SessionID: sessionID, Created: created}
	err := m.store.update(sessionID, func(s *Session) error {
		clientID := m.freshID(func(id string) bool {
			_, taken := s.Clients[id]
			return taken
		})
		s.Clients[clientID] = Client{Name: displayName}
		if asHost {
			s.Host = clientID
		}
		s.touch(m.store.now())

		result.ClientID = clientID
		result.Session = s.snapshot()
		return nil
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("join: %w", err)
	}
	return result, nil
}

// AddItem appends a new item with an empty vote map to the session.
func (m *Manager) AddItem(sessionID, title, description string) (Item, error) {
	var item Item
	err := m.store.update(sessionID, func(s *Session) error {
		now := m.store.now()
		id := m.freshID(func(id string) bool {
			_, taken := s.item(id)
			return taken
		})
		s.Items = append(s.Items, Item{
			ID:          id,
			Title:       title,
			Description: description,
			Created:     now,
			Votes:       make(map[string]json.RawMessage),
		})
		s.touch(now)

		item = s.Items[len(s.Items)-1].snapshot()
		return nil
	})
	if err != nil {
		return Item{}, fmt.Errorf("add item: %w", err)
	}
	return item, nil
}

// RecordVote sets clientID's vote on itemID, replacing any earlier vote from
// the same client. The vote is stored verbatim. It returns the item's full
// vote map after the write.
func (m *Manager) RecordVote(sessionID, itemID, clientID string, vote json.RawMessage) (map[string]json.RawMessage, error) {
	var votes map[string]json.RawMessage
	err := m.store.update(sessionID, func(s *Session) error {
		item, ok := s.item(itemID)
		if !ok {
			return fmt.Errorf("item %q: %w", itemID, ErrItemNotFound)
		}
		if _, ok := s.Clients[clientID]; !ok {
			return fmt.Errorf("client %q: %w", clientID, ErrClientNotFound)
		}

		if item.Votes == nil {
			item.Votes = make(map[string]json.RawMessage)
		}
		item.Votes[clientID] = slices.Clone(vote)
		s.touch(m.store.now())

		votes = item.votesSnapshot()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record vote: %w", err)
	}
	return votes, nil
}

// RemoveClient unregisters clientID, drops its votes and clears the host role
// if it held it. Removing an unknown client is not an error; the returned
// Departure then lists the current clients and no items.
func (m *Manager) RemoveClient(sessionID, clientID string) (Departure, error) {
	var dep Departure
	err := m.store.update(sessionID, func(s *Session) error {
		if _, ok := s.Clients[clientID]; ok {
			delete(s.Clients, clientID)
			if s.Host == clientID {
				s.Host = ""
			}
			for i := range s.Items {
				if _, voted := s.Items[i].Votes[clientID]; voted {
					delete(s.Items[i].Votes, clientID)
					dep.Items = append(dep.Items, s.Items[i].snapshot())
				}
			}
			s.touch(m.store.now())
		}
		dep.Clients = s.clientsSnapshot()
		return nil
	})
	if err != nil {
		return Departure{}, fmt.Errorf("remove client: %w", err)
	}
	return dep, nil
}

// SetReveal sets the session's advisory reveal flag. Voting stays open
// whatever its value.
func (m *Manager) SetReveal(sessionID string, reveal bool) (bool, error) {
	err := m.store.update(sessionID, func(s *Session) error {
		s.Reveal = reveal
		s.touch(m.store.now())
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("set reveal: %w", err)
	}
	return reveal, nil
}

// Clients returns a copy of the session's registered clients.
func (m *Manager) Clients(sessionID string) (map[string]Client, error) {
	var clients map[string]Client
	err := m.store.update(sessionID, func(s *Session) error {
		clients = s.clientsSnapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// freshID draws identifiers until taken reports one as unused.
func (m *Manager) freshID(taken func(string) bool) string {
	id := m.newID()
	for id == "" || taken(id) {
		id = m.newID()
	}
	return id
}
