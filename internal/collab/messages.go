package collab

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edulive/collab/internal/metrics"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

// ErrEmptyMessage rejects messages with neither body nor attachments.
var ErrEmptyMessage = errors.New("message body or attachments required")

// PostMessage appends to the room's bounded history (evicting the oldest
// entry when full) and broadcasts the message to all participants.
func (e *Engine) PostMessage(roomID, userID string, p ws.MessagePayload) (string, error) {
	body := strings.TrimSpace(p.Body)
	if body == "" && len(p.Attachments) == 0 {
		return "", ErrEmptyMessage
	}
	kind := p.Kind
	if kind == "" {
		kind = "text"
	}

	msg := &room.Message{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		AuthorID:    userID,
		Body:        body,
		Kind:        kind,
		CreatedAt:   time.Now(),
		Attachments: p.Attachments,
		ReplyTo:     p.ReplyTo,
	}

	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		author, ok := r.Participant(userID)
		if !ok {
			return room.ErrNotAParticipant
		}
		msg.AuthorName = author.Username
		author.LastSeen = time.Now()
		author.Typing = false
		r.AppendMessage(msg)
		e.fanout(r, "", event(ws.TypeMessage, r.ID, msg))
		return nil
	})
	if err != nil {
		return "", err
	}

	e.presence.Touch(userID, "messaging")
	e.mirrorRoom(roomID)
	metrics.MessagesPosted.WithLabelValues(kind).Inc()
	return msg.ID, nil
}

// EditMessage updates the body of a retained message. A reference to an
// evicted message reports ErrMessageNotFound rather than silently
// succeeding.
func (e *Engine) EditMessage(roomID, messageID, userID, body string) error {
	body = strings.TrimSpace(body)
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		p, ok := r.Participant(userID)
		if !ok {
			return room.ErrNotAParticipant
		}
		msg := r.FindMessage(messageID)
		if msg == nil {
			return room.ErrMessageNotFound
		}
		if msg.AuthorID != userID && !p.Permissions["moderate"] {
			return room.ErrPermissionDenied
		}
		now := time.Now()
		msg.Body = body
		msg.EditedAt = &now
		e.fanout(r, "", event(ws.TypeMessageEdit, r.ID, ws.MessageEditPayload{
			MessageID: messageID,
			Body:      body,
			EditedAt:  now,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "")
	return nil
}

// Reaction adds or removes userID under a reaction symbol on a retained
// message and broadcasts the change.
func (e *Engine) Reaction(roomID, messageID, userID, symbol string, remove bool) error {
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		if _, ok := r.Participant(userID); !ok {
			return room.ErrNotAParticipant
		}
		msg := r.FindMessage(messageID)
		if msg == nil {
			return room.ErrMessageNotFound
		}
		if remove {
			msg.Unreact(symbol, userID)
		} else {
			msg.React(symbol, userID)
		}
		e.fanout(r, "", event(ws.TypeReaction, r.ID, ws.ReactionPayload{
			MessageID: messageID,
			Symbol:    symbol,
			Remove:    remove,
			UserID:    userID,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	e.presence.Touch(userID, "")
	return nil
}
