package discovery

const (
	// InitialWindow is how many candidates are revealed at first
	InitialWindow = 8
	// WindowStep is how many more are revealed per request
	WindowStep = 5
)

// Window paces the reveal of an already fetched list
type Window struct {
	shown int
}

// NewWindow returns a window at its initial size
func NewWindow() *Window {
	return &Window{shown: InitialWindow}
}

// WindowFor returns a window showing count items, clamped to at least the initial size
func WindowFor(count int) *Window {
	if count < InitialWindow {
		count = InitialWindow
	}
	return &Window{shown: count}
}

// Reset shrinks the window back to its initial size
func (w *Window) Reset() {
	w.shown = InitialWindow
}

// Size returns the number of items the window currently allows
func (w *Window) Size() int {
	return w.shown
}

// HasMore reports whether total exceeds what is shown
func (w *Window) HasMore(total int) bool {
	return w.shown < total
}

// Grow reveals the next step, never beyond total. It reports whether anything changed.
func (w *Window) Grow(total int) bool {
	if !w.HasMore(total) {
		return false
	}
	w.shown += WindowStep
	if w.shown > total {
		w.shown = total
	}
	return true
}

// Apply returns the visible prefix of list
func Apply[T any](w *Window, list []T) []T {
	if w.shown >= len(list) {
		return list
	}
	return list[:w.shown]
}
