// Package server is the realtime edge of the planning poker service.
//
// Browsers connect to /ws and exchange JSON frames with the Gateway, which
// turns each request into a session.Manager operation and fans the result
// out to every connection in the session's room. The Hub owns connection
// lifecycles; each Conn runs a read pump and a write pump. Server ties these
// together with the HTTP routes and the idle session reaper.
package server
