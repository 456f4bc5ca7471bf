package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/pokerroom/internal/idgen"
)

// sequenceGenerator replays ids in order, then falls back to random tokens.
func sequenceGenerator(ids ...string) idgen.Generator {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return idgen.Token(idgen.DefaultLength)
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreCreate(t *testing.T) {
	store := NewStore()

	id := store.Create("Sprint 1")
	if id == "" {
		t.Fatal("expected non-empty id")
	}
	if len(id) != idgen.DefaultLength {
		t.Errorf("expected %d-character id, got %q", idgen.DefaultLength, id)
	}

	sess, ok := store.Get(id)
	if !ok {
		t.Fatalf("session %q not found after create", id)
	}
	if sess.ID != id {
		t.Errorf("expected id %q, got %q", id, sess.ID)
	}
	if sess.Name != "Sprint 1" {
		t.Errorf("expected name %q, got %q", "Sprint 1", sess.Name)
	}
	if sess.Host != "" {
		t.Errorf("expected no host, got %q", sess.Host)
	}
	if sess.Reveal {
		t.Error("expected reveal to start false")
	}
	if len(sess.Items) != 0 || len(sess.Clients) != 0 {
		t.Errorf("expected empty session, got %d items and %d clients", len(sess.Items), len(sess.Clients))
	}
	if sess.Created.IsZero() {
		t.Error("expected creation timestamp")
	}
}

func TestStoreCreateDefaultName(t *testing.T) {
	store := NewStore(WithIDGenerator(sequenceGenerator("abc12345")))

	id := store.Create("")
	sess, _ := store.Get(id)
	if sess.Name != "Session abc12345" {
		t.Errorf("expected default name, got %q", sess.Name)
	}
}

func TestStoreCreateRetriesOnCollision(t *testing.T) {
	store := NewStore(WithIDGenerator(sequenceGenerator("aaaa", "aaaa", "", "bbbb")))

	first := store.Create("first")
	second := store.Create("second")

	if first != "aaaa" {
		t.Fatalf("expected first id aaaa, got %q", first)
	}
	if second != "bbbb" {
		t.Fatalf("expected collision to be redrawn as bbbb, got %q", second)
	}

	sess, _ := store.Get(first)
	if sess.Name != "first" {
		t.Errorf("first session was overwritten: name %q", sess.Name)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}
}

func TestStoreGetUnknown(t *testing.T) {
	store := NewStore()

	if _, ok := store.Get("missing"); ok {
		t.Error("expected unknown session lookup to fail")
	}
	if store.Exists("missing") {
		t.Error("expected Exists to report false")
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	mgr := NewManager(store, nil)

	joined, err := mgr.JoinOrCreate("", "Ana", true)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	snap, _ := store.Get(joined.SessionID)
	snap.Clients["intruder"] = Client{Name: "x"}
	snap.Name = "changed"

	fresh, _ := store.Get(joined.SessionID)
	if _, ok := fresh.Clients["intruder"]; ok {
		t.Error("mutating a snapshot leaked into the store")
	}
	if fresh.Name != "Ana" {
		t.Errorf("expected name Ana, got %q", fresh.Name)
	}
}

func TestStoreConcurrentCreate(t *testing.T) {
	store := NewStore()

	const workers = 50
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- store.Create("parallel")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
	if store.Len() != workers {
		t.Errorf("expected %d sessions, got %d", workers, store.Len())
	}
}

func TestStoreReap(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))
	mgr := NewManager(store, nil)

	idle := store.Create("idle")
	occupied, err := mgr.JoinOrCreate("", "Ana", false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	clock.Advance(30 * time.Minute)
	if reaped := store.Reap(time.Hour); len(reaped) != 0 {
		t.Fatalf("expected nothing reaped before ttl, got %v", reaped)
	}

	clock.Advance(31 * time.Minute)
	reaped := store.Reap(time.Hour)
	if len(reaped) != 1 || reaped[0] != idle {
		t.Fatalf("expected only %q reaped, got %v", idle, reaped)
	}
	if store.Exists(idle) {
		t.Error("reaped session still resolves")
	}
	if !store.Exists(occupied.SessionID) {
		t.Error("session with clients must not be reaped")
	}

	if _, err := mgr.AddItem(idle, "late", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after reap, got %v", err)
	}
}

func TestStoreReapHonoursActivity(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))
	mgr := NewManager(store, nil)

	joined, err := mgr.JoinOrCreate("", "Ana", false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	clock.Advance(50 * time.Minute)
	if _, err := mgr.RemoveClient(joined.SessionID, joined.ClientID); err != nil {
		t.Fatalf("remove client: %v", err)
	}

	clock.Advance(50 * time.Minute)
	if reaped := store.Reap(time.Hour); len(reaped) != 0 {
		t.Fatalf("expected recent departure to keep session alive, got %v", reaped)
	}

	clock.Advance(11 * time.Minute)
	if reaped := store.Reap(time.Hour); len(reaped) != 1 {
		t.Fatalf("expected session reaped once idle, got %v", reaped)
	}
}
