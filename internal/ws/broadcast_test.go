package ws

import (
	"testing"
)

func TestBroadcastDeliversToAllConnections(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	a1 := &fakeHandle{userID: "a"}
	a2 := &fakeHandle{userID: "a"}
	c := &fakeHandle{userID: "c"}
	r.Register(a1)
	r.Register(a2)
	r.Register(c)

	b.Broadcast([]string{"a", "c"}, []byte("hello"))

	for _, h := range []*fakeHandle{a1, a2, c} {
		if h.received() != 1 {
			t.Errorf("%s handle received %d events, want 1", h.userID, h.received())
		}
	}
}

// One broken connection must never block delivery to the rest.
func TestBroadcastIsolatesBrokenConnection(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	good1 := &fakeHandle{userID: "a"}
	broken := &fakeHandle{userID: "b", fail: true}
	good2 := &fakeHandle{userID: "c"}
	r.Register(good1)
	r.Register(broken)
	r.Register(good2)

	b.Broadcast([]string{"a", "b", "c"}, []byte("event"))

	if good1.received() != 1 || good2.received() != 1 {
		t.Error("healthy connections should still receive the event")
	}
	if !broken.closed {
		t.Error("broken connection should be closed")
	}
	if r.Connected("b") {
		t.Error("broken connection should be deregistered")
	}

	// Subsequent broadcasts skip the removed connection entirely.
	b.Broadcast([]string{"a", "b", "c"}, []byte("next"))
	if good1.received() != 2 || good2.received() != 2 {
		t.Error("delivery should continue after removal")
	}
}

func TestToUser(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	tab := &fakeHandle{userID: "a"}
	phone := &fakeHandle{userID: "a"}
	other := &fakeHandle{userID: "b"}
	r.Register(tab)
	r.Register(phone)
	r.Register(other)

	b.ToUser("a", []byte("direct"))

	if tab.received() != 1 || phone.received() != 1 {
		t.Error("both of a's devices should receive the event")
	}
	if other.received() != 0 {
		t.Error("other users should not receive a direct event")
	}
}

func TestBroadcastToUserWithoutConnections(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)
	// Participants without live connections are simply skipped.
	b.Broadcast([]string{"ghost"}, []byte("event"))
}
