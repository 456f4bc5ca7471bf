package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultSessionName = "Planning Poker"
	defaultGuestName   = "Guest"
	healthMessage      = "Planning poker server is running!"
)

// WebSocketHandler upgrades GET requests from allowed origins and hands the
// connection to the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := NewConn(ws, s.hub, r.RemoteAddr)
	if !s.hub.Register(c) {
		c.logger.Warn("hub is shut down; rejecting connection")
		if err := ws.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("close rejected connection", "error", err)
		}
	}
}

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, healthMessage)
}

// LandingHandler serves the entry page with the host and join forms.
func (s *Server) LandingHandler(w http.ResponseWriter, _ *http.Request) {
	s.renderForms(w, formsPage{Title: defaultSessionName, ShowHost: true, ShowJoin: true})
}

// HostFormPageHandler serves the form that creates a session.
func (s *Server) HostFormPageHandler(w http.ResponseWriter, _ *http.Request) {
	s.renderForms(w, formsPage{Title: "Host a session", ShowHost: true})
}

// JoinFormPageHandler serves the form that joins an existing session.
func (s *Server) JoinFormPageHandler(w http.ResponseWriter, _ *http.Request) {
	s.renderForms(w, formsPage{Title: "Join a session", ShowJoin: true})
}

// TestPageHandler serves the protocol console without a preselected session.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	s.renderConsole(w, consoleSeed{Name: defaultGuestName})
}

// HostFormHandler creates a session from the host form and redirects to its
// host page.
func (s *Server) HostFormHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("session_name"))
	if name == "" {
		name = defaultSessionName
	}

	id := s.store.Create(name)
	s.logger.Info("session created from host form", "session_id", id, "name", name)

	http.Redirect(w, r, "/host/"+url.PathEscape(id), http.StatusSeeOther)
}

// HostPageHandler serves the console seeded to join the session as host.
func (s *Server) HostPageHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	sess, ok := s.store.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	s.renderConsole(w, consoleSeed{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		Name:        "Host",
		AsHost:      true,
	})
}

// JoinFormHandler redirects the join form to the session's join page,
// carrying the display name in the query string.
func (s *Server) JoinFormHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	id := strings.TrimSpace(r.PostFormValue("session_id"))
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		name = defaultGuestName
	}

	target := "/join/" + url.PathEscape(id) + "?" + url.Values{"name": {name}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// JoinPageHandler serves the console seeded to join an existing session.
func (s *Server) JoinPageHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	sess, ok := s.store.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = defaultGuestName
	}

	s.renderConsole(w, consoleSeed{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		Name:        name,
	})
}

func (s *Server) renderForms(w http.ResponseWriter, page formsPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formsTemplate.Execute(w, page); err != nil {
		s.logger.Error("render form page", "error", err)
	}
}

func (s *Server) renderConsole(w http.ResponseWriter, seed consoleSeed) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := consoleTemplate.Execute(w, consolePage{Seed: seed}); err != nil {
		s.logger.Error("render console page", "error", err)
	}
}
