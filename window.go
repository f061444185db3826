package trajview

import "iter"

// windowFactor is the window width in strides.
const windowFactor = 4

// Window is a half-open slice [Start, End) of consecutive samples rendered as one frame.
type Window struct {
	Index int // Position in the sequence, from 0
	Start int
	End   int
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// EndFrame returns the sample index the windows must stay below:
// min(frames, n) when frames > 0, n otherwise.
func EndFrame(n, frames int) int {
	if frames > 0 && frames < n {
		return frames
	}
	return n
}

// WindowCount returns how many windows a Windower over (n, frames, skip) yields.
func WindowCount(n, frames, skip int) int {
	if skip <= 0 {
		return 0
	}
	end := EndFrame(n, frames)
	width := windowFactor * skip
	if width >= end {
		return 0
	}
	return (end-width-1)/skip + 1
}

// Windower walks a trajectory in overlapping windows of 4*skip samples,
// advancing skip samples at a time. It is single-use: once drained it
// stays drained.
type Windower struct {
	end   int
	skip  int
	next  int
	index int
}

// NewWindower creates a windower over n samples capped at frames (0 = no cap).
// skip must be positive; a non-positive skip yields no windows.
func NewWindower(n, frames, skip int) *Windower {
	return &Windower{
		end:  EndFrame(n, frames),
		skip: skip,
	}
}

// Next returns the next window, or false when the sequence is exhausted.
func (w *Windower) Next() (Window, bool) {
	if w.skip <= 0 {
		return Window{}, false
	}
	width := windowFactor * w.skip
	if w.next+width >= w.end {
		w.next = w.end
		return Window{}, false
	}

	win := Window{Index: w.index, Start: w.next, End: w.next + width}
	w.next += w.skip
	w.index++
	return win, true
}

// Remaining returns the number of windows Next will still produce.
func (w *Windower) Remaining() int {
	if w.skip <= 0 {
		return 0
	}
	width := windowFactor * w.skip
	if w.next+width >= w.end {
		return 0
	}
	return (w.end-w.next-width-1)/w.skip + 1
}

// All drains the windower as a range-over-func sequence.
func (w *Windower) All() iter.Seq[Window] {
	return func(yield func(Window) bool) {
		for {
			win, ok := w.Next()
			if !ok || !yield(win) {
				return
			}
		}
	}
}
