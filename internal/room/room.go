package room

import (
	"sync"
	"time"
)

// Room is a bounded live session. The mutex lives inside the room so its
// lifetime matches the room's; it guards participants, history and polls.
// Mutations must go through Store.WithRoom, which acquires it. Re-entrant
// acquisition deadlocks, so WithRoom callbacks never call WithRoom.
type Room struct {
	mu sync.Mutex

	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CourseID  string            `json:"course_id"`
	CreatorID string            `json:"creator_id"`
	Kind      Kind              `json:"kind"`
	Capacity  int               `json:"capacity"`
	CreatedAt time.Time         `json:"created_at"`
	Settings  map[string]string `json:"settings,omitempty"`
	Active    bool              `json:"active"`

	// Breakout provenance: empty for top-level rooms.
	ParentID  string    `json:"parent_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	participants map[string]*Participant
	history      *Ring
	polls        map[string]*Poll
}

// AddParticipant admits a user, enforcing the capacity invariant. Joining
// again refreshes the existing record instead of consuming a slot.
func (r *Room) AddParticipant(userID, username string, role Role) (*Participant, error) {
	if p, ok := r.participants[userID]; ok {
		p.Online = true
		p.LastSeen = time.Now()
		return p, nil
	}
	if len(r.participants) >= r.Capacity {
		return nil, ErrRoomFull
	}
	now := time.Now()
	p := &Participant{
		UserID:      userID,
		Username:    username,
		Role:        role,
		Online:      true,
		JoinedAt:    now,
		LastSeen:    now,
		Permissions: defaultPermissions(role),
	}
	r.participants[userID] = p
	return p, nil
}

// RemoveParticipant reports whether the user was a participant.
func (r *Room) RemoveParticipant(userID string) bool {
	if _, ok := r.participants[userID]; !ok {
		return false
	}
	delete(r.participants, userID)
	return true
}

func (r *Room) Participant(userID string) (*Participant, bool) {
	p, ok := r.participants[userID]
	return p, ok
}

// Participants returns a snapshot copy of the membership records.
func (r *Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

// ParticipantIDs returns the ids broadcast fan-out resolves against.
func (r *Room) ParticipantIDs() []string {
	out := make([]string, 0, len(r.participants))
	for id := range r.participants {
		out = append(out, id)
	}
	return out
}

func (r *Room) ParticipantCount() int { return len(r.participants) }

func (r *Room) AppendMessage(msg *Message) (evicted *Message) {
	return r.history.Append(msg)
}

func (r *Room) FindMessage(id string) *Message {
	return r.history.Find(id)
}

// History returns the retained messages oldest-first, as copies.
func (r *Room) History() []Message {
	msgs := r.history.Snapshot()
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}

func (r *Room) HistoryLen() int { return r.history.Len() }

func (r *Room) AddPoll(p *Poll) { r.polls[p.ID] = p }

func (r *Room) Poll(id string) (*Poll, bool) {
	p, ok := r.polls[id]
	return p, ok
}

// ReapExpiredPolls deactivates and drops polls past their duration,
// returning the ones that were still marked active so their final tally
// can be announced.
func (r *Room) ReapExpiredPolls(now time.Time) []*Poll {
	var closed []*Poll
	for id, p := range r.polls {
		if p.Expired(now) {
			if p.Active {
				p.Active = false
				closed = append(closed, p)
			}
			delete(r.polls, id)
		}
	}
	return closed
}

// Idle reports whether the room qualifies for removal by the sweeper:
// empty, past the maximum session age, or past its own expiry.
func (r *Room) Idle(now time.Time, maxAge time.Duration) bool {
	if len(r.participants) == 0 {
		return true
	}
	if maxAge > 0 && now.Sub(r.CreatedAt) > maxAge {
		return true
	}
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return true
	}
	return false
}

func defaultPermissions(role Role) map[string]bool {
	perms := map[string]bool{
		"send_message": true,
		"react":        true,
		"vote":         true,
		"create_poll":  true,
	}
	if role.CanModerate() {
		perms["moderate"] = true
		perms["create_breakout"] = true
	}
	return perms
}
