package collab

import (
	"time"

	"github.com/edulive/collab/internal/metrics"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

// BreakoutResult records the outcome of a partial-failure move: users
// absent from the parent are skipped, never fatal to the rest.
type BreakoutResult struct {
	BreakoutID string   `json:"breakout_id"`
	Moved      []string `json:"moved"`
	Skipped    []string `json:"skipped,omitempty"`
}

// CreateBreakout spawns a child room and moves the listed participants
// out of the parent into it, one at a time: each move removes under the
// parent's lock, then adds under the child's, never holding both. The
// parent room receives one notification with the full outcome.
func (e *Engine) CreateBreakout(parentID, creatorID, name string, participantIDs []string, duration time.Duration) (*BreakoutResult, error) {
	var courseID string
	var capacity int
	err := e.rooms.WithRoom(parentID, func(r *room.Room) error {
		p, ok := r.Participant(creatorID)
		if !ok {
			return room.ErrNotAParticipant
		}
		if !p.Permissions["create_breakout"] {
			return room.ErrPermissionDenied
		}
		courseID = r.CourseID
		capacity = r.Capacity
		return nil
	})
	if err != nil {
		return nil, err
	}

	child, err := e.rooms.Create(name, courseID, creatorID, capacity, room.KindBreakout, nil)
	if err != nil {
		return nil, err
	}
	endsAt := time.Now().Add(duration)
	_ = e.rooms.WithRoom(child.ID, func(r *room.Room) error {
		r.ParentID = parentID
		r.ExpiresAt = endsAt
		return nil
	})

	result := &BreakoutResult{BreakoutID: child.ID}
	for _, userID := range participantIDs {
		var username string
		var role room.Role
		moved := false
		err := e.rooms.WithRoom(parentID, func(r *room.Room) error {
			p, ok := r.Participant(userID)
			if !ok {
				return nil
			}
			username = p.Username
			role = p.Role
			moved = r.RemoveParticipant(userID)
			return nil
		})
		if err != nil || !moved {
			result.Skipped = append(result.Skipped, userID)
			continue
		}

		err = e.rooms.WithRoom(child.ID, func(r *room.Room) error {
			if _, err := r.AddParticipant(userID, username, role); err != nil {
				return err
			}
			e.broadcaster.ToUser(userID, event(ws.TypeRoomState, r.ID, roomState(r)))
			return nil
		})
		if err != nil {
			// Child rejected the move; put the user back.
			_ = e.rooms.WithRoom(parentID, func(r *room.Room) error {
				_, aerr := r.AddParticipant(userID, username, role)
				return aerr
			})
			result.Skipped = append(result.Skipped, userID)
			continue
		}
		result.Moved = append(result.Moved, userID)
	}

	_ = e.rooms.WithRoom(parentID, func(r *room.Room) error {
		e.fanout(r, "", event(ws.TypeBreakoutCreate, parentID, ws.BreakoutCreatePayload{
			BreakoutID: child.ID,
			Name:       name,
			CreatorID:  creatorID,
			Moved:      result.Moved,
			Skipped:    result.Skipped,
			EndsAt:     endsAt,
		}))
		return nil
	})

	e.presence.Touch(creatorID, "breakout")
	e.mirrorRoom(parentID)
	e.mirrorRoom(child.ID)
	metrics.BreakoutsCreated.Inc()
	return result, nil
}
