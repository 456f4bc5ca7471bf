package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session identifier does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrItemNotFound is returned when an item identifier is not part of the session.
	ErrItemNotFound = errors.New("item not found")
	// ErrClientNotFound is returned when a vote names a client that is not registered.
	ErrClientNotFound = errors.New("client not found")
)
