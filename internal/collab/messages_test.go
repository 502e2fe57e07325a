package collab

import (
	"errors"
	"fmt"
	"testing"

	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

func TestPostMessageBroadcastsAndRetains(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)
	mustJoin(t, e, r.ID, "bob", room.RoleStudent)
	alice := connect(e, "alice")
	bob := connect(e, "bob")

	id, err := e.PostMessage(r.ID, "alice", ws.MessagePayload{Body: "  hello  "})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if id == "" {
		t.Fatal("post returned an empty message id")
	}

	for _, c := range []*conn{alice, bob} {
		if got := len(c.ofType(ws.TypeMessage)); got != 1 {
			t.Fatalf("%s got %d message events, want 1", c.userID, got)
		}
	}

	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		msg := r.FindMessage(id)
		if msg == nil {
			return fmt.Errorf("message %s not retained", id)
		}
		if msg.Body != "hello" {
			return fmt.Errorf("body = %q, want trimmed %q", msg.Body, "hello")
		}
		if msg.AuthorName != "user alice" || msg.Kind != "text" {
			return fmt.Errorf("message = %+v", msg)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPostMessageRejectsEmptyAndOutsiders(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)

	if _, err := e.PostMessage(r.ID, "alice", ws.MessagePayload{Body: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank body: got %v, want ErrEmptyMessage", err)
	}
	if _, err := e.PostMessage(r.ID, "ghost", ws.MessagePayload{Body: "hi"}); !errors.Is(err, room.ErrNotAParticipant) {
		t.Fatalf("outsider post: got %v, want ErrNotAParticipant", err)
	}
}

func TestEditEvictedMessage(t *testing.T) {
	e := newTestEngine(2)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)

	first, err := e.PostMessage(r.ID, "alice", ws.MessagePayload{Body: "one"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	for _, body := range []string{"two", "three"} {
		if _, err := e.PostMessage(r.ID, "alice", ws.MessagePayload{Body: body}); err != nil {
			t.Fatalf("post %q: %v", body, err)
		}
	}

	if err := e.EditMessage(r.ID, first, "alice", "rewritten"); !errors.Is(err, room.ErrMessageNotFound) {
		t.Fatalf("edit evicted: got %v, want ErrMessageNotFound", err)
	}
	if err := e.Reaction(r.ID, first, "alice", "👍", false); !errors.Is(err, room.ErrMessageNotFound) {
		t.Fatalf("react to evicted: got %v, want ErrMessageNotFound", err)
	}
}

func TestEditMessagePermissions(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "teach", room.RoleTeacher)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)
	mustJoin(t, e, r.ID, "bob", room.RoleStudent)

	id, err := e.PostMessage(r.ID, "alice", ws.MessagePayload{Body: "draft"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := e.EditMessage(r.ID, id, "bob", "hijacked"); !errors.Is(err, room.ErrPermissionDenied) {
		t.Fatalf("peer edit: got %v, want ErrPermissionDenied", err)
	}
	if err := e.EditMessage(r.ID, id, "alice", "final"); err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if err := e.EditMessage(r.ID, id, "teach", "[removed]"); err != nil {
		t.Fatalf("moderator edit: %v", err)
	}

	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		msg := r.FindMessage(id)
		if msg.Body != "[removed]" || msg.EditedAt == nil {
			return fmt.Errorf("message after edits = %+v", msg)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReactionAddAndRemove(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)
	mustJoin(t, e, r.ID, "bob", room.RoleStudent)

	id, err := e.PostMessage(r.ID, "alice", ws.MessagePayload{Body: "react to me"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := e.Reaction(r.ID, id, "bob", "🎉", false); err != nil {
		t.Fatalf("react: %v", err)
	}
	// Double add stays a single entry.
	if err := e.Reaction(r.ID, id, "bob", "🎉", false); err != nil {
		t.Fatalf("repeat react: %v", err)
	}

	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		if got := len(r.FindMessage(id).Reactions["🎉"]); got != 1 {
			return fmt.Errorf("reaction count = %d, want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Reaction(r.ID, id, "bob", "🎉", true); err != nil {
		t.Fatalf("unreact: %v", err)
	}
	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		if got := len(r.FindMessage(id).Reactions["🎉"]); got != 0 {
			return fmt.Errorf("reaction count after removal = %d, want 0", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
