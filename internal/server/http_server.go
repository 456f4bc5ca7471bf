package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// newHTTPServer creates an http.Server with production timeouts whose
// internal errors go to logger.
func newHTTPServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// shutdownHTTPServer gracefully shuts down server without interrupting active
// requests, waiting at most timeout. Hijacked websocket connections are not
// affected.
func shutdownHTTPServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
		return err
	}

	logger.Info("HTTP server shutdown completed")
	return nil
}
