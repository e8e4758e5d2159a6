package status

import "time"

// Frames are the spinner glyphs in display order.
var Frames = []string{"⠋", "⠙", "⠚", "⠉"}

// Interval is the spinner cadence.
const Interval = 100 * time.Millisecond

// Spinner is an explicit frame counter with a running flag. It holds no
// timer; the owning UI loop calls Advance on its own tick.
type Spinner struct {
	frame   int
	running bool
}

// Start marks the spinner running from the first frame. Starting a running
// spinner keeps its current frame.
func (s *Spinner) Start() {
	if s.running {
		return
	}
	s.running = true
	s.frame = 0
}

// Stop halts the spinner and resets it to the first frame.
func (s *Spinner) Stop() {
	s.running = false
	s.frame = 0
}

// Advance moves to the next frame while running.
func (s *Spinner) Advance() {
	if !s.running {
		return
	}
	s.frame = (s.frame + 1) % len(Frames)
}

// Running reports whether the spinner is animating.
func (s *Spinner) Running() bool {
	return s.running
}

// Frame returns the current frame index.
func (s *Spinner) Frame() int {
	return s.frame
}

// Glyph returns the glyph for the current frame, or "" when stopped.
func (s *Spinner) Glyph() string {
	if !s.running {
		return ""
	}
	return Frames[s.frame]
}
