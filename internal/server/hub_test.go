package server

import (
	"testing"
	"time"
)

func TestHubShutdownWithoutConnections(t *testing.T) {
	tg := newTestGateway(t)
	go tg.hub.Run()

	if n := tg.hub.Count(); n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
	if err := tg.hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	c := tg.conn("late")
	if tg.hub.Register(c) {
		t.Fatal("Register succeeded after shutdown")
	}

	// Unregistering after shutdown still closes the send queue.
	tg.hub.unregisterConn(c)
	if c.enqueue([]byte("x")) {
		t.Error("send queue still open after unregister")
	}
}

func TestHubShutdownBeforeRun(t *testing.T) {
	tg := newTestGateway(t)

	done := make(chan error, 1)
	go func() { done <- tg.hub.Shutdown(time.Second) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked on a hub that never ran")
	}

	if tg.hub.Register(tg.conn("late")) {
		t.Error("Register succeeded after shutdown")
	}

	// A late Run exits at once instead of serving.
	ran := make(chan struct{})
	go func() {
		tg.hub.Run()
		close(ran)
	}()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going after shutdown")
	}
}
