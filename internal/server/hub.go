package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/pokerroom/internal/config"
)

// Hub tracks every live connection. Registration and unregistration are
// serialized through its Run loop; room membership and broadcasting are the
// Gateway's concern.
type Hub struct {
	conns      map[*Conn]bool
	register   chan *Conn
	unregister chan *Conn
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	doneOnce   sync.Once
	started    atomic.Bool

	gateway *Gateway
	cfg     config.Config
	logger  *slog.Logger
}

// NewHub creates a Hub whose connections dispatch requests to gateway and
// use the message size and rate limits from cfg.
func NewHub(gateway *Gateway, cfg config.Config, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		conns:      make(map[*Conn]bool),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		gateway:    gateway,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register hands c to the Run loop, which starts its pumps. It reports false
// if the hub has already shut down.
func (h *Hub) Register(c *Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterConn(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.closeSend()
	}
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.conns)
}

// Context is cancelled when the hub shuts down.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Run starts the hub's main event loop, handling connection registration and
// unregistration. It returns after Shutdown is called.
func (h *Hub) Run() {
	h.started.Store(true)
	defer h.closeDone()

	for {
		if h.ctx.Err() != nil {
			h.shutdownConns()
			return
		}

		select {
		case <-h.ctx.Done():
			h.shutdownConns()
			return

		case c := <-h.register:
			if c == nil {
				h.logger.Warn("received nil connection registration; skipping")
				continue
			}

			h.mutex.Lock()
			h.conns[c] = true
			count := len(h.conns)
			h.mutex.Unlock()
			c.logger.Info("connection registered", "connections", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				c.writePump()
			}()
			go func() {
				defer h.wg.Done()
				c.readPump()
			}()

		case c := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.conns[c]
			delete(h.conns, c)
			count := len(h.conns)
			h.mutex.Unlock()

			c.closeSend()
			if ok {
				c.logger.Info("connection unregistered", "connections", count)
			}
		}
	}
}

func (h *Hub) closeDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

// shutdownConns closes every registered connection. Their read pumps then run
// the regular disconnect path.
func (h *Hub) shutdownConns() {
	h.logger.Info("shutting down all connections")

	h.mutex.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mutex.Unlock()

	for _, c := range conns {
		if c.conn == nil {
			continue
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("close connection during shutdown", "error", err)
		}
	}

	h.logger.Info("closed connections", "count", len(conns))
}

// Shutdown stops the hub and waits for all pump goroutines to finish, or for
// timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	if !h.started.Load() {
		// Run never started; nothing else will close done.
		h.closeDone()
	}
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
