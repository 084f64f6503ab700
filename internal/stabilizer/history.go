package stabilizer

// History is a fixed-capacity FIFO of readings backed by a ring buffer.
type History struct {
	buf   []string
	start int
	size  int
}

// NewHistory creates an empty history holding at most capacity readings.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]string, capacity)}
}

// Push appends s, dropping the oldest reading when full.
func (h *History) Push(s string) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Items returns the readings oldest first.
func (h *History) Items() []string {
	out := make([]string, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of stored readings.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Clear drops all readings.
func (h *History) Clear() {
	clear(h.buf)
	h.start = 0
	h.size = 0
}
