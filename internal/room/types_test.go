package room

import (
	"testing"
	"time"
)

func TestMessageReactions(t *testing.T) {
	m := &Message{ID: "m1"}
	m.React("👍", "a")
	m.React("👍", "a") // duplicate, ignored
	m.React("👍", "b")
	m.React("🎉", "a")

	if got := len(m.Reactions["👍"]); got != 2 {
		t.Errorf("👍 reactors = %d, want 2", got)
	}

	m.Unreact("👍", "a")
	if got := len(m.Reactions["👍"]); got != 1 {
		t.Errorf("👍 reactors after unreact = %d, want 1", got)
	}

	m.Unreact("🎉", "a")
	if _, ok := m.Reactions["🎉"]; ok {
		t.Error("empty symbol should be dropped")
	}
}

func TestPollExpiry(t *testing.T) {
	p := &Poll{CreatedAt: time.Now(), Duration: time.Second}
	if p.Expired(p.CreatedAt.Add(500 * time.Millisecond)) {
		t.Error("poll should still be open")
	}
	if !p.Expired(p.CreatedAt.Add(2 * time.Second)) {
		t.Error("poll should be expired")
	}
}

func TestPollTally(t *testing.T) {
	p := &Poll{
		Options: []string{"yes", "no"},
		Votes: map[string]*Vote{
			"a": {Choices: []string{"yes"}},
			"b": {Choices: []string{"yes"}},
			"c": {Choices: []string{"no"}},
		},
	}
	tally := p.Tally()
	if tally["yes"] != 2 || tally["no"] != 1 {
		t.Errorf("tally = %v, want yes:2 no:1", tally)
	}
}

func TestRoleCanModerate(t *testing.T) {
	cases := map[Role]bool{
		RoleStudent:   false,
		RoleTeacher:   true,
		RoleModerator: true,
		RoleAdmin:     true,
	}
	for role, want := range cases {
		if got := role.CanModerate(); got != want {
			t.Errorf("%s.CanModerate() = %v, want %v", role, got, want)
		}
	}
}
