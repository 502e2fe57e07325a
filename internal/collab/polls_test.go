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

func TestCreatePollValidation(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "teach", room.RoleTeacher)

	if _, err := e.CreatePoll(r.ID, "teach", "", []string{"a", "b"}, room.PollSingle, time.Minute); err == nil {
		t.Fatal("empty question accepted")
	}
	if _, err := e.CreatePoll(r.ID, "teach", "pick one", []string{"a"}, room.PollSingle, time.Minute); err == nil {
		t.Fatal("single option accepted")
	}
	if _, err := e.CreatePoll(r.ID, "ghost", "pick one", []string{"a", "b"}, room.PollSingle, time.Minute); !errors.Is(err, room.ErrNotAParticipant) {
		t.Fatalf("outsider create: got %v, want ErrNotAParticipant", err)
	}
	// Open polls carry no preset options.
	if _, err := e.CreatePoll(r.ID, "teach", "thoughts?", nil, room.PollOpen, time.Minute); err != nil {
		t.Fatalf("open poll: %v", err)
	}
}

func TestVoteLastWriteWins(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "teach", room.RoleTeacher)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)

	pollID, err := e.CreatePoll(r.ID, "teach", "yes or no?", []string{"yes", "no"}, room.PollSingle, time.Minute)
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}

	if err := e.Vote(pollID, "alice", []string{"yes"}); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := e.Vote(pollID, "alice", []string{"no"}); err != nil {
		t.Fatalf("second vote: %v", err)
	}

	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		p, _ := r.Poll(pollID)
		tally := p.Tally()
		if tally["no"] != 1 || tally["yes"] != 0 {
			return fmt.Errorf("tally = %v, want only the latest vote counted", tally)
		}
		if len(p.Votes) != 1 {
			return fmt.Errorf("voter count = %d, want 1", len(p.Votes))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestVoteAfterExpiry(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "teach", room.RoleTeacher)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)
	teach := connect(e, "teach")

	pollID, err := e.CreatePoll(r.ID, "teach", "quick one", []string{"a", "b"}, room.PollSingle, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	if err := e.Vote(pollID, "alice", []string{"a"}); err != nil {
		t.Fatalf("vote within window: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := e.Vote(pollID, "alice", []string{"b"}); !errors.Is(err, room.ErrPollClosed) {
		t.Fatalf("late vote: got %v, want ErrPollClosed", err)
	}

	// The late vote closes the poll and announces the final tally right
	// away, not on the next sweep.
	states := teach.ofType(ws.TypePollState)
	if len(states) != 3 {
		t.Fatalf("got %d poll_state events, want create+vote+close", len(states))
	}
	var final ws.PollStatePayload
	if err := json.Unmarshal(states[2].Payload, &final); err != nil {
		t.Fatalf("decode final poll_state: %v", err)
	}
	if final.Active || final.Tally["a"] != 1 {
		t.Fatalf("final poll_state = %+v, want closed with the surviving vote", final)
	}
	// The earlier vote survives the close.
	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		p, _ := r.Poll(pollID)
		if p.Tally()["a"] != 1 {
			return fmt.Errorf("tally after close = %v", p.Tally())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestVoteErrors(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "teach", room.RoleTeacher)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)

	pollID, err := e.CreatePoll(r.ID, "teach", "pick", []string{"a", "b"}, room.PollSingle, time.Minute)
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}

	if err := e.Vote("no-such-poll", "alice", []string{"a"}); !errors.Is(err, room.ErrPollNotFound) {
		t.Fatalf("unknown poll: got %v, want ErrPollNotFound", err)
	}
	if err := e.Vote(pollID, "ghost", []string{"a"}); !errors.Is(err, room.ErrNotAParticipant) {
		t.Fatalf("outsider vote: got %v, want ErrNotAParticipant", err)
	}
	if err := e.Vote(pollID, "alice", []string{"c"}); err == nil {
		t.Fatal("unknown option accepted")
	}
	if err := e.Vote(pollID, "alice", []string{"a", "b"}); err == nil {
		t.Fatal("two choices accepted on a single-choice poll")
	}
}

func TestMultipleChoiceTally(t *testing.T) {
	e := newTestEngine(room.DefaultHistoryCapacity)
	r := mustCreateRoom(t, e, 10)
	mustJoin(t, e, r.ID, "teach", room.RoleTeacher)
	mustJoin(t, e, r.ID, "alice", room.RoleStudent)
	mustJoin(t, e, r.ID, "bob", room.RoleStudent)

	pollID, err := e.CreatePoll(r.ID, "teach", "topics?", []string{"waves", "optics", "fields"}, room.PollMultiple, time.Minute)
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	if err := e.Vote(pollID, "alice", []string{"waves", "optics"}); err != nil {
		t.Fatalf("alice vote: %v", err)
	}
	if err := e.Vote(pollID, "bob", []string{"waves"}); err != nil {
		t.Fatalf("bob vote: %v", err)
	}

	err = e.Rooms().WithRoom(r.ID, func(r *room.Room) error {
		p, _ := r.Poll(pollID)
		tally := p.Tally()
		if tally["waves"] != 2 || tally["optics"] != 1 || tally["fields"] != 0 {
			return fmt.Errorf("tally = %v", tally)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
