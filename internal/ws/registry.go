package ws

import (
	"sync"
	"sync/atomic"
)

// Registry maps a user id to its set of live connections. Locking is
// keyed per user so concurrent register/unregister on different users
// never contend on a single lock.
type Registry struct {
	users sync.Map // userID -> *connSet
	total atomic.Int64
}

// connSet holds one user's handles. A set that empties is marked dead
// under its own lock before being removed from the map, so a racing
// Register can never add a handle to a set that is about to vanish.
type connSet struct {
	mu    sync.Mutex
	conns map[Handle]struct{}
	dead  bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handle. Multiple devices/tabs per user coexist.
func (r *Registry) Register(h Handle) {
	for {
		v, _ := r.users.LoadOrStore(h.UserID(), &connSet{conns: make(map[Handle]struct{})})
		set := v.(*connSet)
		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			r.users.CompareAndDelete(h.UserID(), v)
			continue
		}
		if _, dup := set.conns[h]; !dup {
			set.conns[h] = struct{}{}
			r.total.Add(1)
		}
		set.mu.Unlock()
		return
	}
}

// Unregister removes a handle. Idempotent; a user with zero connections
// left is dropped from the map but remains a room participant.
func (r *Registry) Unregister(h Handle) {
	v, ok := r.users.Load(h.UserID())
	if !ok {
		return
	}
	set := v.(*connSet)
	set.mu.Lock()
	if _, ok := set.conns[h]; ok {
		delete(set.conns, h)
		r.total.Add(-1)
	}
	if len(set.conns) == 0 {
		set.dead = true
	}
	dead := set.dead
	set.mu.Unlock()
	if dead {
		r.users.CompareAndDelete(h.UserID(), v)
	}
}

// ConnectionsFor returns a snapshot of the user's live handles.
func (r *Registry) ConnectionsFor(userID string) []Handle {
	v, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	set := v.(*connSet)
	set.mu.Lock()
	out := make([]Handle, 0, len(set.conns))
	for h := range set.conns {
		out = append(out, h)
	}
	set.mu.Unlock()
	return out
}

// Connected reports whether the user has at least one live connection.
func (r *Registry) Connected(userID string) bool {
	v, ok := r.users.Load(userID)
	if !ok {
		return false
	}
	set := v.(*connSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.conns) > 0
}

// TotalConnections counts live handles across all users.
func (r *Registry) TotalConnections() int {
	return int(r.total.Load())
}

// ConnectedUsers counts users with at least one live handle.
func (r *Registry) ConnectedUsers() int {
	n := 0
	r.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
