package session

import "github.com/ayusman/mudra/internal/gesture"

// DefaultHistorySize is the rolling history capacity when none is configured.
const DefaultHistorySize = 100

// History is a fixed-capacity window of recent labels. When full, each
// append evicts the oldest entry. It is not safe for concurrent use on its
// own; Session guards it.
type History struct {
	buf   []gesture.Label
	start int
	size  int
}

// NewHistory returns an empty history holding at most capacity labels.
// A non-positive capacity selects DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]gesture.Label, capacity)}
}

// Add appends l, evicting the oldest label if the window is full.
func (h *History) Add(l gesture.Label) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = l
		h.size++
		return
	}
	h.buf[h.start] = l
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of labels held.
func (h *History) Len() int {
	return h.size
}

// Cap returns the fixed capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Labels returns a copy of the window, oldest first.
func (h *History) Labels() []gesture.Label {
	out := make([]gesture.Label, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Counts tallies each label present in the window.
func (h *History) Counts() map[gesture.Label]int {
	counts := make(map[gesture.Label]int, len(gesture.Labels))
	for i := 0; i < h.size; i++ {
		counts[h.buf[(h.start+i)%len(h.buf)]]++
	}
	return counts
}
