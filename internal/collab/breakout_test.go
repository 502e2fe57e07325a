package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

func TestCreateBreakoutMovesAndSkips(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	parent := mustCreateRoom(t, e, 10)
	mustJoin(t, e, parent.ID, "teach", room.RoleTeacher)
	mustJoin(t, e, parent.ID, "alice", room.RoleStudent)
	mustJoin(t, e, parent.ID, "bob", room.RoleStudent)
	teach := connect(e, "teach")
	alice := connect(e, "alice")

	result, err := e.CreateBreakout(parent.ID, "teach", "group 1", []string{"alice", "ghost"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("create breakout: %v", err)
	}
	if len(result.Moved) != 1 || result.Moved[0] != "alice" {
		t.Fatalf("moved = %v, want [alice]", result.Moved)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "ghost" {
		t.Fatalf("skipped = %v, want [ghost]", result.Skipped)
	}

	// Alice left the parent and landed in the child.
	err = e.Rooms().WithRoom(parent.ID, func(r *room.Room) error {
		if _, ok := r.Participant("alice"); ok {
			return fmt.Errorf("alice still in parent")
		}
		if _, ok := r.Participant("bob"); !ok {
			return fmt.Errorf("bob lost from parent")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = e.Rooms().WithRoom(result.BreakoutID, func(r *room.Room) error {
		if r.Kind != room.KindBreakout || r.ParentID != parent.ID {
			return fmt.Errorf("child = kind %s parent %s", r.Kind, r.ParentID)
		}
		if _, ok := r.Participant("alice"); !ok {
			return fmt.Errorf("alice missing from child")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	notices := teach.ofType(ws.TypeBreakoutCreate)
	if len(notices) != 1 {
		t.Fatalf("parent got %d breakout_create events, want 1", len(notices))
	}
	var payload ws.BreakoutCreatePayload
	if err := json.Unmarshal(notices[0].Payload, &payload); err != nil {
		t.Fatalf("decode breakout_create: %v", err)
	}
	if payload.BreakoutID != result.BreakoutID || len(payload.Skipped) != 1 {
		t.Fatalf("breakout_create payload = %+v", payload)
	}

	// The moved user gets a snapshot of the child room.
	states := alice.ofType(ws.TypeRoomState)
	if len(states) != 1 || states[0].RoomID != result.BreakoutID {
		t.Fatalf("moved user room_state events = %+v", states)
	}
}

func TestCreateBreakoutPermissions(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	parent := mustCreateRoom(t, e, 10)
	mustJoin(t, e, parent.ID, "alice", room.RoleStudent)

	if _, err := e.CreateBreakout(parent.ID, "alice", "g", []string{"alice"}, time.Minute); !errors.Is(err, room.ErrPermissionDenied) {
		t.Fatalf("student creator: got %v, want ErrPermissionDenied", err)
	}
	if _, err := e.CreateBreakout(parent.ID, "ghost", "g", nil, time.Minute); !errors.Is(err, room.ErrNotAParticipant) {
		t.Fatalf("outsider creator: got %v, want ErrNotAParticipant", err)
	}
	if _, err := e.CreateBreakout("no-such-room", "alice", "g", nil, time.Minute); !errors.Is(err, room.ErrRoomNotFound) {
		t.Fatalf("unknown parent: got %v, want ErrRoomNotFound", err)
	}
}
