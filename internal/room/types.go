package room

import "time"

type Kind string

const (
	KindClassroom   Kind = "classroom"
	KindBreakout    Kind = "breakout"
	KindStudyGroup  Kind = "study_group"
	KindOfficeHours Kind = "office_hours"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CanModerate reports whether the role may act on other participants'
// content (edit messages, spawn breakouts, force removal).
func (r Role) CanModerate() bool {
	return r == RoleTeacher || r == RoleModerator || r == RoleAdmin
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is a user's membership record within one room. It is owned
// by its room and must only be mutated under the room lock.
type Participant struct {
	UserID      string          `json:"user_id"`
	Username    string          `json:"username"`
	Role        Role            `json:"role"`
	Online      bool            `json:"online"`
	JoinedAt    time.Time       `json:"joined_at"`
	LastSeen    time.Time       `json:"last_seen"`
	Cursor      *CursorPos      `json:"cursor,omitempty"`
	Typing      bool            `json:"typing"`
	HandRaised  bool            `json:"hand_raised"`
	Permissions map[string]bool `json:"permissions"`
}

type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message lives only inside a room's bounded history buffer. The durable
// mirror in the shared store carries its own TTL.
type Message struct {
	ID          string              `json:"id"`
	RoomID      string              `json:"room_id"`
	AuthorID    string              `json:"author_id"`
	AuthorName  string              `json:"author_name"`
	Body        string              `json:"body"`
	Kind        string              `json:"kind"`
	CreatedAt   time.Time           `json:"created_at"`
	EditedAt    *time.Time          `json:"edited_at,omitempty"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	ReplyTo     string              `json:"reply_to,omitempty"`
}

// React records userID under the given symbol, once.
func (m *Message) React(symbol, userID string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	for _, id := range m.Reactions[symbol] {
		if id == userID {
			return
		}
	}
	m.Reactions[symbol] = append(m.Reactions[symbol], userID)
}

// Unreact removes userID from the given symbol, dropping the symbol
// entirely once nobody holds it.
func (m *Message) Unreact(symbol, userID string) {
	ids := m.Reactions[symbol]
	for i, id := range ids {
		if id == userID {
			m.Reactions[symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.Reactions[symbol]) == 0 {
		delete(m.Reactions, symbol)
	}
}

type PollKind string

const (
	PollSingle   PollKind = "single"
	PollMultiple PollKind = "multiple"
	PollOpen     PollKind = "open"
)

// Vote is one voter's current choice. Re-voting overwrites it.
type Vote struct {
	Choices []string  `json:"choices"`
	CastAt  time.Time `json:"cast_at"`
}

type Poll struct {
	ID        string           `json:"id"`
	RoomID    string           `json:"room_id"`
	Question  string           `json:"question"`
	Options   []string         `json:"options"`
	Kind      PollKind         `json:"kind"`
	CreatorID string           `json:"creator_id"`
	CreatedAt time.Time        `json:"created_at"`
	Duration  time.Duration    `json:"duration"`
	Votes     map[string]*Vote `json:"votes"`
	Active    bool             `json:"active"`
}

// ExpiresAt is the instant after which votes are rejected.
func (p *Poll) ExpiresAt() time.Time {
	return p.CreatedAt.Add(p.Duration)
}

// Expired reports whether the poll's duration has elapsed at now.
func (p *Poll) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt())
}

// Tally counts current votes per option. Open polls tally free-text
// answers the same way.
func (p *Poll) Tally() map[string]int {
	tally := make(map[string]int, len(p.Options))
	for _, opt := range p.Options {
		tally[opt] = 0
	}
	for _, v := range p.Votes {
		for _, c := range v.Choices {
			tally[c]++
		}
	}
	return tally
}
