package collab

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/edulive/collab/internal/auth"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

// ServeWS upgrades a client connection. The token carries the identity
// assertion minted by the platform; the engine only verifies it.
func ServeWS(e *Engine, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		identity, err := auth.VerifyIdentity(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Upgrade(w, r)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		client := ws.NewClient(conn, identity.UserID, identity.Username, NormalizeRole(identity.Role),
			e.eventRate, e.eventBurst, e.handleEvent, e.handleClose)

		e.registry.Register(client)
		e.presence.Touch(identity.UserID, "connected")
		if rec, ok := e.presence.Get(identity.UserID); ok {
			e.announcePresence(rec)
		}
		slog.Info("client connected", "user_id", client.UserID(),
			"username", client.Username(), "role", client.Role())

		client.Run()
	}
}

// handleEvent dispatches one inbound envelope. The event set is closed;
// anything else lands in the default arm and is ignored with a warning,
// never fatal to the connection.
func (e *Engine) handleEvent(c *ws.Client, env ws.Envelope) {
	var err error
	switch env.Type {
	case ws.TypeMessage:
		var p ws.MessagePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			_, err = e.PostMessage(env.RoomID, c.UserID(), p)
		}

	case ws.TypeTyping:
		var p ws.TypingPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = e.SetTyping(env.RoomID, c.UserID(), p.IsTyping)
		}

	case ws.TypeCursorMove:
		var p ws.CursorPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = e.MoveCursor(env.RoomID, c.UserID(), p.X, p.Y)
		}

	case ws.TypeReaction:
		var p ws.ReactionPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = e.Reaction(env.RoomID, p.MessageID, c.UserID(), p.Symbol, p.Remove)
		}

	case ws.TypeWhiteboardDraw:
		var p ws.DrawPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = e.Draw(env.RoomID, c.UserID(), p.Stroke)
		}

	case ws.TypeHandRaise:
		var p ws.HandRaisePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = e.RaiseHand(env.RoomID, c.UserID(), p.Raised)
		}

	case ws.TypePollCreate:
		var p ws.PollCreatePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			_, err = e.CreatePoll(env.RoomID, c.UserID(), p.Question, p.Options,
				room.PollKind(p.Kind), time.Duration(p.DurationSeconds)*time.Second)
		}

	case ws.TypePollVote:
		var p ws.PollVotePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = e.Vote(p.PollID, c.UserID(), p.Choices)
		}

	default:
		slog.Warn("unknown event type, ignoring", "type", env.Type, "user_id", c.UserID())
		return
	}

	if err != nil {
		c.SendEvent(ws.TypeError, env.RoomID, ws.ErrorPayload{
			Message: err.Error(),
			Code:    ErrorCode(err),
		})
	}
}

// handleClose runs once per connection when its read pump exits.
func (e *Engine) handleClose(c *ws.Client) {
	e.registry.Unregister(c)
	slog.Info("client disconnected", "user_id", c.UserID())

	if e.registry.Connected(c.UserID()) {
		return
	}

	// Last device gone: offline for presence, but still a participant of
	// every room until an explicit leave or the sweeper times it out.
	e.presence.SetOffline(c.UserID())
	for _, summary := range e.UserRooms(c.UserID()) {
		_ = e.rooms.WithRoom(summary.RoomID, func(r *room.Room) error {
			if p, ok := r.Participant(c.UserID()); ok {
				p.Online = false
			}
			return nil
		})
	}
	if rec, ok := e.presence.Get(c.UserID()); ok {
		e.announcePresence(rec)
	}
}

// ErrorCode maps the error taxonomy to stable wire codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, room.ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, room.ErrNotAParticipant):
		return "NOT_A_PARTICIPANT"
	case errors.Is(err, room.ErrPollNotFound):
		return "POLL_NOT_FOUND"
	case errors.Is(err, room.ErrPollClosed):
		return "POLL_CLOSED"
	case errors.Is(err, room.ErrMessageNotFound):
		return "MESSAGE_NOT_FOUND"
	case errors.Is(err, room.ErrInvalidCapacity):
		return "INVALID_CAPACITY"
	case errors.Is(err, room.ErrPermissionDenied):
		return "PERMISSION_DENIED"
	default:
		return "INVALID_PAYLOAD"
	}
}

// NormalizeRole maps an identity-service role claim onto the room role
// set, defaulting unknown values to student.
func NormalizeRole(role string) room.Role {
	switch room.Role(role) {
	case room.RoleTeacher, room.RoleModerator, room.RoleAdmin:
		return room.Role(role)
	default:
		return room.RoleStudent
	}
}
