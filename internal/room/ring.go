package room

// Ring is a fixed-capacity message buffer that evicts the oldest entry
// when full. It is not safe for concurrent use; callers hold the room lock.
type Ring struct {
	buf  []*Message
	head int
	size int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]*Message, capacity)}
}

// Append adds msg, evicting and returning the oldest entry when the
// buffer is already full.
func (r *Ring) Append(msg *Message) (evicted *Message) {
	if r.size == len(r.buf) {
		evicted = r.buf[r.head]
		r.buf[r.head] = msg
		r.head = (r.head + 1) % len(r.buf)
		return evicted
	}
	r.buf[(r.head+r.size)%len(r.buf)] = msg
	r.size++
	return nil
}

// Find returns the message with the given id, or nil if it was never
// posted or has been evicted.
func (r *Ring) Find(id string) *Message {
	for i := 0; i < r.size; i++ {
		if m := r.buf[(r.head+i)%len(r.buf)]; m.ID == id {
			return m
		}
	}
	return nil
}

// Snapshot returns the retained messages oldest-first.
func (r *Ring) Snapshot() []*Message {
	out := make([]*Message, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

func (r *Ring) Len() int { return r.size }

func (r *Ring) Cap() int { return len(r.buf) }
