package server

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tyrowin/pokerroom/internal/session"
)

const tracerName = "github.com/Tyrowin/pokerroom/internal/server"

// Gateway translates decoded requests into session.Manager calls and fans the
// resulting state out to the session's room.
//
// Every request touching a session holds that session's room lock while the
// manager commits the mutation and the resulting frames are queued, so all
// members see broadcasts in commit order. Network writes happen later in each
// connection's write pump.
type Gateway struct {
	manager *session.Manager
	rooms   *roomHub
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewGateway creates a Gateway over manager.
func NewGateway(manager *session.Manager, logger *slog.Logger) *Gateway {
	return &Gateway{
		manager: manager,
		rooms:   newRoomHub(),
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Dispatch decodes one raw message from c and applies it. Requests that fail
// validation or refer to unknown items are dropped and logged; only a failed
// join is reported back to the sender.
func (g *Gateway) Dispatch(ctx context.Context, c *Conn, raw []byte) {
	req, err := DecodeRequest(raw)
	if err != nil {
		c.logger.Warn("dropping invalid message", "error", err)
		return
	}

	_, span := g.tracer.Start(ctx, "poker."+req.Type(), trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	switch r := req.(type) {
	case JoinRequest:
		err = g.join(c, r)
	case AddItemRequest:
		err = g.addItem(r)
	case VoteRequest:
		err = g.vote(r)
	case RevealRequest:
		err = g.setReveal(r)
	}

	sessionID := req.Session()
	memberSession, clientID := c.Membership()
	if sessionID == "" {
		sessionID = memberSession
	}
	span.SetAttributes(
		attribute.String("poker.session_id", sessionID),
		attribute.String("poker.client_id", clientID),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("request failed", "type", req.Type(), "session_id", sessionID, "error", err)
	}
}

// Disconnect leaves the connection's room, if any, and unregisters its
// client from the session.
func (g *Gateway) Disconnect(c *Conn) {
	g.leave(c)
}

// join registers c in the requested session, or a new one, and only then
// moves it out of the session it was in before. A failed join leaves the
// previous membership untouched.
func (g *Gateway) join(c *Conn, req JoinRequest) error {
	prev := c.currentMembership()

	var res session.JoinResult
	var err error
	sessionID := req.SessionID
	if sessionID == "" {
		// Nobody else knows the new id yet, so creating outside the room lock
		// cannot reorder anything.
		res, err = g.manager.JoinOrCreate("", req.Name, req.AsHost)
		if err != nil {
			g.unicast(c, TypeError, ErrorPayload{Message: "Unable to join session"})
			return err
		}
		sessionID = res.SessionID
	}

	rooms := g.rooms.lockAll(sessionID, prev.SessionID)
	defer g.rooms.unlockAll(rooms)

	if res.ClientID == "" {
		res, err = g.manager.JoinOrCreate(sessionID, req.Name, req.AsHost)
		if errors.Is(err, session.ErrSessionNotFound) {
			g.unicast(c, TypeError, ErrorPayload{Message: "Session not found"})
			return err
		}
		if err != nil {
			g.unicast(c, TypeError, ErrorPayload{Message: "Unable to join session"})
			return err
		}
	}

	if prev.SessionID != "" {
		g.depart(rooms[prev.SessionID], c, prev)
	}

	snapshot := res.Session
	if prev.SessionID == res.SessionID {
		// Rejoining the same session just dropped the old client id.
		if current, ok := g.manager.Store().Get(res.SessionID); ok {
			snapshot = current
		}
	}

	r := rooms[res.SessionID]
	c.setMembership(membership{SessionID: res.SessionID, ClientID: res.ClientID})
	r.subscribe(c)

	g.unicast(c, TypeJoined, JoinedPayload{
		SessionID: res.SessionID,
		ClientID:  res.ClientID,
		Session:   snapshot,
	})
	g.broadcast(r, TypeClientList, ClientListPayload{Clients: snapshot.Clients})

	g.logger.Info("client joined",
		"session_id", res.SessionID,
		"client_id", res.ClientID,
		"created", res.Created,
		"host", req.AsHost)
	return nil
}

func (g *Gateway) addItem(req AddItemRequest) error {
	r := g.rooms.lock(req.SessionID)
	defer g.rooms.unlock(r)

	item, err := g.manager.AddItem(req.SessionID, req.Title, req.Description)
	if err != nil {
		return err
	}
	g.broadcast(r, TypeItemAdded, ItemAddedPayload{Item: item})
	return nil
}

func (g *Gateway) vote(req VoteRequest) error {
	r := g.rooms.lock(req.SessionID)
	defer g.rooms.unlock(r)

	votes, err := g.manager.RecordVote(req.SessionID, req.ItemID, req.ClientID, req.Vote)
	if err != nil {
		return err
	}
	g.broadcast(r, TypeVoteUpdate, VoteUpdatePayload{ItemID: req.ItemID, Votes: votes})
	return nil
}

func (g *Gateway) setReveal(req RevealRequest) error {
	r := g.rooms.lock(req.SessionID)
	defer g.rooms.unlock(r)

	reveal, err := g.manager.SetReveal(req.SessionID, req.Reveal)
	if err != nil {
		return err
	}
	g.broadcast(r, TypeRevealUpdate, RevealUpdatePayload{Reveal: reveal})
	return nil
}

// leave removes c from its current room and session.
func (g *Gateway) leave(c *Conn) {
	prev := c.setMembership(membership{})
	if prev.SessionID == "" {
		return
	}

	r := g.rooms.lock(prev.SessionID)
	defer g.rooms.unlock(r)
	g.depart(r, c, prev)
}

// depart unsubscribes c from r and unregisters its client, telling the
// remaining members about the new client list and any vote maps that
// changed. r must be locked.
func (g *Gateway) depart(r *room, c *Conn, m membership) {
	r.unsubscribe(c)
	dep, err := g.manager.RemoveClient(m.SessionID, m.ClientID)
	if err != nil {
		// The session was reaped; there is nobody left to notify.
		g.logger.Debug("leave: session gone", "session_id", m.SessionID, "error", err)
		return
	}

	g.broadcast(r, TypeClientList, ClientListPayload{Clients: dep.Clients})
	for _, item := range dep.Items {
		g.broadcast(r, TypeVoteUpdate, VoteUpdatePayload{ItemID: item.ID, Votes: item.Votes})
	}
	g.logger.Info("client left", "session_id", m.SessionID, "client_id", m.ClientID)
}

// unicast queues a frame for c alone. A connection that cannot take it is
// closed.
func (g *Gateway) unicast(c *Conn, msgType string, payload any) {
	frame, err := EncodeFrame(msgType, payload)
	if err != nil {
		g.logger.Error("encode frame", "type", msgType, "error", err)
		return
	}
	if !c.enqueue(frame) {
		c.closeSend()
	}
}

// broadcast queues a frame for every member of r. r must be locked.
func (g *Gateway) broadcast(r *room, msgType string, payload any) {
	frame, err := EncodeFrame(msgType, payload)
	if err != nil {
		g.logger.Error("encode frame", "type", msgType, "session_id", r.id, "error", err)
		return
	}
	delivered := r.broadcast(frame)
	g.logger.Debug("broadcast", "type", msgType, "session_id", r.id, "recipients", delivered)
}
