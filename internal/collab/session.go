package collab

import (
	"errors"
	"time"

	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

// RoomStats is the aggregate view returned to the application layer.
type RoomStats struct {
	RoomID       string    `json:"room_id"`
	Name         string    `json:"name"`
	Kind         room.Kind `json:"kind"`
	Capacity     int       `json:"capacity"`
	Participants int       `json:"participants"`
	Online       int       `json:"online"`
	Messages     int       `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
}

type RoomSummary struct {
	RoomID   string    `json:"room_id"`
	Name     string    `json:"name"`
	Kind     room.Kind `json:"kind"`
	CourseID string    `json:"course_id,omitempty"`
}

// CreateRoom registers a new live session. Only a non-positive capacity
// is rejected.
func (e *Engine) CreateRoom(name, courseID, creatorID string, capacity int, kind room.Kind, settings map[string]string) (*room.Room, error) {
	r, err := e.rooms.Create(name, courseID, creatorID, capacity, kind, settings)
	if err != nil {
		return nil, err
	}
	e.mirrorRoom(r.ID)
	return r, nil
}

// JoinRoom admits the user, announces the join to the other participants
// and sends the joiner a consistent room snapshot taken under the room
// lock. A room missing from the in-memory store is first restored from
// the shared mirror, so rejoins survive a process restart.
func (e *Engine) JoinRoom(roomID, userID, username string, role room.Role) error {
	err := e.admit(roomID, userID, username, role)
	if errors.Is(err, room.ErrRoomNotFound) && e.restoreRoom(roomID) {
		err = e.admit(roomID, userID, username, role)
	}
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "joined "+roomID)
	e.mirrorRoom(roomID)
	return nil
}

func (e *Engine) admit(roomID, userID, username string, role room.Role) error {
	return e.rooms.WithRoom(roomID, func(r *room.Room) error {
		if _, err := r.AddParticipant(userID, username, role); err != nil {
			return err
		}
		e.fanout(r, userID, event(ws.TypeUserJoin, r.ID, ws.UserJoinPayload{
			UserID:   userID,
			Username: username,
			Role:     role,
		}))
		e.broadcaster.ToUser(userID, event(ws.TypeRoomState, r.ID, roomState(r)))
		return nil
	})
}

// LeaveRoom removes the user. A second leave for an already-removed user
// reports false without an error, so callers can treat it as a stable
// "not a participant" outcome.
func (e *Engine) LeaveRoom(roomID, userID string) (bool, error) {
	var left bool
	var username string
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		p, ok := r.Participant(userID)
		if !ok {
			return nil
		}
		username = p.Username
		left = r.RemoveParticipant(userID)
		e.fanout(r, "", event(ws.TypeUserLeave, r.ID, ws.UserLeavePayload{
			UserID:   userID,
			Username: username,
		}))
		return nil
	})
	if err != nil {
		return false, err
	}
	if left {
		e.mirrorRoom(roomID)
	}
	return left, nil
}

// RemoveParticipant is a moderator-forced leave.
func (e *Engine) RemoveParticipant(roomID, actorID, userID string) (bool, error) {
	var allowed bool
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		actor, ok := r.Participant(actorID)
		if !ok {
			return room.ErrNotAParticipant
		}
		allowed = actor.Permissions["moderate"]
		return nil
	})
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, room.ErrPermissionDenied
	}
	return e.LeaveRoom(roomID, userID)
}

func (e *Engine) RoomStats(roomID string) (RoomStats, error) {
	var stats RoomStats
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		online := 0
		for _, p := range r.Participants() {
			if p.Online {
				online++
			}
		}
		stats = RoomStats{
			RoomID:       r.ID,
			Name:         r.Name,
			Kind:         r.Kind,
			Capacity:     r.Capacity,
			Participants: r.ParticipantCount(),
			Online:       online,
			Messages:     r.HistoryLen(),
			CreatedAt:    r.CreatedAt,
		}
		return nil
	})
	return stats, err
}

// UserRooms lists the rooms the user currently participates in.
func (e *Engine) UserRooms(userID string) []RoomSummary {
	var out []RoomSummary
	for _, r := range e.rooms.All() {
		_ = e.rooms.WithRoom(r.ID, func(r *room.Room) error {
			if _, ok := r.Participant(userID); ok {
				out = append(out, RoomSummary{
					RoomID:   r.ID,
					Name:     r.Name,
					Kind:     r.Kind,
					CourseID: r.CourseID,
				})
			}
			return nil
		})
	}
	return out
}
