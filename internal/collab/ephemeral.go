package collab

import (
	"encoding/json"
	"time"

	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

// The ephemeral signals below update a participant field (if any) and
// broadcast immediately. Nothing is retained past the in-memory record.

func (e *Engine) SetTyping(roomID, userID string, typing bool) error {
	var username string
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		p, ok := r.Participant(userID)
		if !ok {
			return room.ErrNotAParticipant
		}
		p.Typing = typing
		p.LastSeen = time.Now()
		username = p.Username
		e.fanout(r, userID, event(ws.TypeTyping, r.ID, ws.TypingPayload{
			UserID:   userID,
			Username: username,
			IsTyping: typing,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "")
	return nil
}

func (e *Engine) MoveCursor(roomID, userID string, x, y float64) error {
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		p, ok := r.Participant(userID)
		if !ok {
			return room.ErrNotAParticipant
		}
		p.Cursor = &room.CursorPos{X: x, Y: y}
		p.LastSeen = time.Now()
		e.fanout(r, userID, event(ws.TypeCursorMove, r.ID, ws.CursorPayload{
			UserID: userID,
			X:      x,
			Y:      y,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "")
	return nil
}

func (e *Engine) RaiseHand(roomID, userID string, raised bool) error {
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		p, ok := r.Participant(userID)
		if !ok {
			return room.ErrNotAParticipant
		}
		p.HandRaised = raised
		p.LastSeen = time.Now()
		e.fanout(r, "", event(ws.TypeHandRaise, r.ID, ws.HandRaisePayload{
			UserID:   userID,
			Username: p.Username,
			Raised:   raised,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "")
	return nil
}

// Draw is a pure pass-through: the stroke is relayed to the other
// participants and never stored.
func (e *Engine) Draw(roomID, userID string, stroke json.RawMessage) error {
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		if _, ok := r.Participant(userID); !ok {
			return room.ErrNotAParticipant
		}
		e.fanout(r, userID, event(ws.TypeWhiteboardDraw, r.ID, ws.DrawPayload{
			UserID: userID,
			Stroke: stroke,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "whiteboard")
	return nil
}
