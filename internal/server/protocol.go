package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tyrowin/pokerroom/internal/session"
)

// Frame types exchanged over the websocket.
const (
	TypeCreateOrJoin = "create_or_join"
	TypeJoined       = "joined"
	TypeClientList   = "client_list"
	TypeError        = "error"
	TypeAddItem      = "add_item"
	TypeItemAdded    = "item_added"
	TypeVote         = "vote"
	TypeVoteUpdate   = "vote_update"
	TypeSetReveal    = "set_reveal"
	TypeRevealUpdate = "reveal_update"
)

var (
	// ErrMalformedPayload is returned for frames that are not valid JSON or
	// lack a required field.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownType is returned for frames whose type is not an inbound request.
	ErrUnknownType = errors.New("unknown message type")
)

// Frame is the envelope of every websocket message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is one decoded inbound frame. Each implementation maps to exactly
// one session.Manager operation.
type Request interface {
	Type() string
	Session() string
	validate() error
}

// JoinRequest asks to join SessionID, or to create a session when it is empty.
type JoinRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id,omitempty"`
	AsHost    bool   `json:"as_host,omitempty"`
}

// AddItemRequest proposes a new item.
type AddItemRequest struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// VoteRequest records ClientID's vote on ItemID. Vote is passed through untouched.
type VoteRequest struct {
	SessionID string          `json:"session_id"`
	ItemID    string          `json:"item_id"`
	ClientID  string          `json:"client_id"`
	Vote      json.RawMessage `json:"vote"`
}

// RevealRequest toggles the session's reveal flag.
type RevealRequest struct {
	SessionID string `json:"session_id"`
	Reveal    bool   `json:"reveal"`
}

func (JoinRequest) Type() string    { return TypeCreateOrJoin }
func (AddItemRequest) Type() string { return TypeAddItem }
func (VoteRequest) Type() string    { return TypeVote }
func (RevealRequest) Type() string  { return TypeSetReveal }

func (r JoinRequest) Session() string    { return r.SessionID }
func (r AddItemRequest) Session() string { return r.SessionID }
func (r VoteRequest) Session() string    { return r.SessionID }
func (r RevealRequest) Session() string  { return r.SessionID }

func (JoinRequest) validate() error { return nil }

func (r AddItemRequest) validate() error {
	return requireFields(map[string]string{"session_id": r.SessionID, "title": r.Title})
}

func (r VoteRequest) validate() error {
	if err := requireFields(map[string]string{
		"session_id": r.SessionID,
		"item_id":    r.ItemID,
		"client_id":  r.ClientID,
	}); err != nil {
		return err
	}
	vote := bytes.TrimSpace(r.Vote)
	if len(vote) == 0 || bytes.Equal(vote, []byte("null")) {
		return fmt.Errorf("%w: missing vote", ErrMalformedPayload)
	}
	return nil
}

func (r RevealRequest) validate() error {
	return requireFields(map[string]string{"session_id": r.SessionID})
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"session_id", "item_id", "client_id", "title"} {
		if value, ok := fields[name]; ok && value == "" {
			return fmt.Errorf("%w: missing %s", ErrMalformedPayload, name)
		}
	}
	return nil
}

// DecodeRequest parses a raw websocket message into its request variant.
func DecodeRequest(raw []byte) (Request, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var req Request
	var err error
	switch frame.Type {
	case TypeCreateOrJoin:
		req, err = decodePayload[JoinRequest](frame.Payload)
	case TypeAddItem:
		req, err = decodePayload[AddItemRequest](frame.Payload)
	case TypeVote:
		req, err = decodePayload[VoteRequest](frame.Payload)
	case TypeSetReveal:
		req, err = decodePayload[RevealRequest](frame.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, frame.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func decodePayload[T Request](payload json.RawMessage) (T, error) {
	var req T
	if len(bytes.TrimSpace(payload)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return req, nil
}

// JoinedPayload is sent only to the connection that joined.
type JoinedPayload struct {
	SessionID string          `json:"session_id"`
	ClientID  string          `json:"client_id"`
	Session   session.Session `json:"session"`
}

// ClientListPayload carries the full set of registered clients.
type ClientListPayload struct {
	Clients map[string]session.Client `json:"clients"`
}

// ErrorPayload reports a failed request to its sender.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ItemAddedPayload announces a new item.
type ItemAddedPayload struct {
	Item session.Item `json:"item"`
}

// VoteUpdatePayload carries an item's full vote map keyed by client id.
type VoteUpdatePayload struct {
	ItemID string                     `json:"item_id"`
	Votes  map[string]json.RawMessage `json:"votes"`
}

// RevealUpdatePayload announces the session's reveal flag.
type RevealUpdatePayload struct {
	Reveal bool `json:"reveal"`
}

// EncodeFrame wraps payload in a Frame of the given type.
func EncodeFrame(msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	frame, err := json.Marshal(Frame{Type: msgType, Payload: body})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", msgType, err)
	}
	return frame, nil
}
