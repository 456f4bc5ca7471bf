package server

import "net/http"

// Routes returns the HTTP handler serving the landing page, health checks,
// the websocket endpoint and the host/join pages.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.LandingHandler)
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("GET /test", s.TestPageHandler)
	mux.HandleFunc("GET /host", s.HostFormPageHandler)
	mux.HandleFunc("POST /host", s.HostFormHandler)
	mux.HandleFunc("GET /host/{session_id}", s.HostPageHandler)
	mux.HandleFunc("GET /join", s.JoinFormPageHandler)
	mux.HandleFunc("POST /join", s.JoinFormHandler)
	mux.HandleFunc("GET /join/{session_id}", s.JoinPageHandler)
	return mux
}
