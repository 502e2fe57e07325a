package ws

import (
	"encoding/json"
	"time"

	"github.com/edulive/collab/internal/presence"
	"github.com/edulive/collab/internal/room"
)

// Inbound event types carried on the client envelope.
const (
	TypeMessage        = "message"
	TypeTyping         = "typing"
	TypeCursorMove     = "cursor_move"
	TypeReaction       = "reaction"
	TypeWhiteboardDraw = "whiteboard_draw"
	TypeHandRaise      = "hand_raise"
	TypePollCreate     = "poll_create"
	TypePollVote       = "poll_vote"
)

// Outbound-only event types.
const (
	TypeUserJoin       = "user_join"
	TypeUserLeave      = "user_leave"
	TypePresenceUpdate = "presence_update"
	TypeRoomState      = "room_state"
	TypeMessageEdit    = "message_edit"
	TypePollState      = "poll_state"
	TypeBreakoutCreate = "breakout_create"
	TypeError          = "error"
)

// Envelope is the wire frame in both directions. Timestamp is RFC 3339
// and set only on outbound events.
type Envelope struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// NewEvent marshals an outbound envelope with the current timestamp.
func NewEvent(eventType, roomID string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type MessagePayload struct {
	Body        string            `json:"body"`
	Kind        string            `json:"kind,omitempty"`
	Attachments []room.Attachment `json:"attachments,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
}

type TypingPayload struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

type CursorPayload struct {
	UserID string  `json:"user_id,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type ReactionPayload struct {
	MessageID string `json:"message_id"`
	Symbol    string `json:"symbol"`
	Remove    bool   `json:"remove,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type DrawPayload struct {
	UserID string          `json:"user_id,omitempty"`
	Stroke json.RawMessage `json:"stroke"`
}

type HandRaisePayload struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Raised   bool   `json:"raised"`
}

type PollCreatePayload struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	Kind            string   `json:"kind"`
	DurationSeconds int      `json:"duration_seconds"`
}

type PollVotePayload struct {
	PollID  string   `json:"poll_id"`
	Choices []string `json:"choices"`
}

type UserJoinPayload struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Role     room.Role `json:"role"`
}

type UserLeavePayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

type PresencePayload struct {
	UserID       string          `json:"user_id"`
	Status       presence.Status `json:"status"`
	LastActivity time.Time       `json:"last_activity"`
}

// RoomStatePayload is the full snapshot sent once on successful join.
type RoomStatePayload struct {
	RoomID       string             `json:"room_id"`
	Name         string             `json:"name"`
	CourseID     string             `json:"course_id,omitempty"`
	Kind         room.Kind          `json:"kind"`
	Capacity     int                `json:"capacity"`
	Participants []room.Participant `json:"participants"`
	History      []room.Message     `json:"history"`
}

type PollStatePayload struct {
	PollID   string         `json:"poll_id"`
	Question string         `json:"question"`
	Options  []string       `json:"options"`
	Kind     room.PollKind  `json:"kind"`
	Tally    map[string]int `json:"tally"`
	Voters   int            `json:"voters"`
	Active   bool           `json:"active"`
	EndsAt   time.Time      `json:"ends_at"`
}

type BreakoutCreatePayload struct {
	BreakoutID string    `json:"breakout_id"`
	Name       string    `json:"name"`
	CreatorID  string    `json:"creator_id"`
	Moved      []string  `json:"moved"`
	Skipped    []string  `json:"skipped,omitempty"`
	EndsAt     time.Time `json:"ends_at"`
}

type MessageEditPayload struct {
	MessageID string    `json:"message_id"`
	Body      string    `json:"body"`
	EditedAt  time.Time `json:"edited_at"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
