package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/pokerroom/internal/config"
	"github.com/Tyrowin/pokerroom/internal/logging"
	"github.com/Tyrowin/pokerroom/internal/session"
)

const testOrigin = "http://localhost:8080"

// testGateway wires a Gateway and Hub without starting any goroutines.
// Connections created through it have no socket; their frames are read
// straight from the send queue.
type testGateway struct {
	gateway *Gateway
	hub     *Hub
	store   *session.Store
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	store := session.NewStore()
	gateway := NewGateway(session.NewManager(store, nil), logging.Discard())
	return &testGateway{
		gateway: gateway,
		hub:     NewHub(gateway, config.Default(), logging.Discard()),
		store:   store,
	}
}

func (tg *testGateway) conn(addr string) *Conn {
	return NewConn(nil, tg.hub, addr)
}

func (tg *testGateway) send(t *testing.T, c *Conn, msgType string, payload any) {
	t.Helper()
	raw, err := EncodeFrame(msgType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	tg.gateway.Dispatch(context.Background(), c, raw)
}

// drain returns every frame currently queued for c.
func drain(t *testing.T, c *Conn) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case raw, ok := <-c.GetSendChan():
			if !ok {
				return frames
			}
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("decode frame %s: %v", raw, err)
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func frameTypes(frames []Frame) []string {
	types := make([]string, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

func decodeInto[T any](t *testing.T, f Frame) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("decode %s payload: %v", f.Type, err)
	}
	return payload
}

// joinAs dispatches a create_or_join for c and returns the joined payload.
func (tg *testGateway) joinAs(t *testing.T, c *Conn, sessionID, name string, asHost bool) JoinedPayload {
	t.Helper()
	tg.send(t, c, TypeCreateOrJoin, JoinRequest{Name: name, SessionID: sessionID, AsHost: asHost})
	frames := drain(t, c)
	if len(frames) == 0 || frames[0].Type != TypeJoined {
		t.Fatalf("expected joined frame first, got %v", frameTypes(frames))
	}
	return decodeInto[JoinedPayload](t, frames[0])
}

// startTestServer runs a Server behind httptest and returns its websocket URL.
func startTestServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server, string) {
	t.Helper()
	srv := New(cfg, logging.Discard())
	srv.Start()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		if err := srv.Shutdown(5 * time.Second); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})

	return srv, ts, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	header := map[string][]string{"Origin": {testOrigin}}
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func writeFrame(t *testing.T, ws *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := EncodeFrame(msgType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads frames until one of type want arrives, failing after timeout.
func readUntil(t *testing.T, ws *websocket.Conn, want string, timeout time.Duration) Frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if err := ws.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame %s: %v", raw, err)
		}
		if f.Type == want {
			return f
		}
	}
}

// expectNoFrame fails if ws receives any frame within wait.
func expectNoFrame(t *testing.T, ws *websocket.Conn, wait time.Duration) {
	t.Helper()
	if err := ws.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if _, raw, err := ws.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
}
