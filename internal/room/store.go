package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryCapacity bounds per-room message retention.
const DefaultHistoryCapacity = 1000

// Store is the in-memory table of active rooms. It serializes access to
// its own map only; per-room state is guarded by each room's lock, so the
// store stays reusable by the artifact managers built on top of it.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	historyCap int
}

func NewStore(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCapacity
	}
	return &Store{
		rooms:      make(map[string]*Room),
		historyCap: historyCap,
	}
}

// Create registers a new room. The only rejected input is a non-positive
// capacity.
func (s *Store) Create(name, courseID, creatorID string, capacity int, kind Kind, settings map[string]string) (*Room, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	r := &Room{
		ID:           uuid.NewString(),
		Name:         name,
		CourseID:     courseID,
		CreatorID:    creatorID,
		Kind:         kind,
		Capacity:     capacity,
		CreatedAt:    time.Now(),
		Settings:     settings,
		Active:       true,
		participants: make(map[string]*Participant),
		history:      NewRing(s.historyCap),
		polls:        make(map[string]*Poll),
	}
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()
	return r, nil
}

// Restore re-registers a room under its existing id, rebuilding
// participant and history state from a recovered snapshot. Participants
// come back offline until they reconnect. A live room under the same id
// is kept, never overwritten.
func (s *Store) Restore(id, name, courseID string, capacity int, kind Kind, participants []Participant, history []Message) (*Room, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	r := &Room{
		ID:           id,
		Name:         name,
		CourseID:     courseID,
		Kind:         kind,
		Capacity:     capacity,
		CreatedAt:    time.Now(),
		Active:       true,
		participants: make(map[string]*Participant, len(participants)),
		history:      NewRing(s.historyCap),
		polls:        make(map[string]*Poll),
	}
	for i := range participants {
		p := participants[i]
		p.Online = false
		r.participants[p.UserID] = &p
	}
	for i := range history {
		m := history[i]
		r.history.Append(&m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[id]; ok {
		return existing, nil
	}
	s.rooms[id] = r
	return r, nil
}

func (s *Store) Get(id string) (*Room, error) {
	s.mu.RLock()
	r, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove deletes a room. Idempotent; the room is also marked inactive so
// an operation that already resolved it fails instead of mutating a
// detached aggregate.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if ok {
		r.mu.Lock()
		r.Active = false
		r.mu.Unlock()
	}
}

// WithRoom runs fn with exclusive access to the room's mutable state.
// fn must not perform I/O and must not call WithRoom again.
func (s *Store) WithRoom(id string, fn func(*Room) error) error {
	r, err := s.Get(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.Active {
		return ErrRoomNotFound
	}
	return fn(r)
}

// All returns the current set of rooms. Callers lock each room before
// touching its state.
func (s *Store) All() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
