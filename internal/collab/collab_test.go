package collab

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/edulive/collab/internal/presence"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

func newTestEngine(historyCap int) *Engine {
	return NewEngine(room.NewStore(historyCap), ws.NewRegistry(), presence.NewTracker(), nil, nil)
}

// conn records every event delivered to one fake device.
type conn struct {
	userID string
	mu     sync.Mutex
	events []ws.Envelope
	fail   bool
	closed bool
}

func (c *conn) UserID() string { return c.userID }

func (c *conn) Enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ws.ErrSendBufferFull
	}
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.events = append(c.events, env)
	return nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *conn) ofType(eventType string) []ws.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ws.Envelope
	for _, env := range c.events {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

func connect(e *Engine, userID string) *conn {
	c := &conn{userID: userID}
	e.Registry().Register(c)
	return c
}

func mustCreateRoom(t *testing.T, e *Engine, capacity int) *room.Room {
	t.Helper()
	r, err := e.CreateRoom("physics", "course-1", "teacher-1", capacity, room.KindClassroom, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return r
}

func mustJoin(t *testing.T, e *Engine, roomID, userID string, role room.Role) {
	t.Helper()
	if err := e.JoinRoom(roomID, userID, "user "+userID, role); err != nil {
		t.Fatalf("join %s: %v", userID, err)
	}
}

// fakeShared is an in-memory SharedStore recording bus publishes in
// arrival order.
type fakeShared struct {
	mu        sync.Mutex
	kv        map[string][]byte
	published map[string][][]byte
}

func newFakeShared() *fakeShared {
	return &fakeShared{
		kv:        make(map[string][]byte),
		published: make(map[string][][]byte),
	}
}

func (s *fakeShared) SetWithExpiry(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *fakeShared) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv[key], nil
}

func (s *fakeShared) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *fakeShared) PublishRoom(_ context.Context, _, roomID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[roomID] = append(s.published[roomID], payload)
	return nil
}

func (s *fakeShared) publishedFor(roomID string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.published[roomID]))
	copy(out, s.published[roomID])
	return out
}

// waitFor polls cond until it holds, failing the test after two seconds.
// Bus and mirror writes drain on the engine's publisher goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
