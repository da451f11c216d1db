package rules

// Window is a fixed-capacity ring buffer of per-frame booleans with a
// running true-count, so each tick costs O(1).
type Window struct {
	slots []bool
	head  int
	size  int
	trues int
}

// NewWindow creates a rolling window with the given capacity
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{slots: make([]bool, capacity)}
}

// Push records one frame observation, evicting the oldest when full
func (w *Window) Push(v bool) {
	if w.size == len(w.slots) {
		if w.slots[w.head] {
			w.trues--
		}
	} else {
		w.size++
	}
	w.slots[w.head] = v
	if v {
		w.trues++
	}
	w.head = (w.head + 1) % len(w.slots)
}

// Trues returns the number of true observations currently in the window
func (w *Window) Trues() int {
	return w.trues
}

// Falses returns the number of false observations currently in the window
func (w *Window) Falses() int {
	return w.size - w.trues
}

// Len returns how many observations the window currently holds
func (w *Window) Len() int {
	return w.size
}

// Cap returns the window capacity
func (w *Window) Cap() int {
	return len(w.slots)
}

// Reset clears all observations
func (w *Window) Reset() {
	w.head = 0
	w.size = 0
	w.trues = 0
}
