// Package timeline converts timeline elements from continuous time into
// discrete, ordered render instructions.
//
// Everything here is pure and total: invalid input is clamped, never rejected.
package timeline

import "math"

// Window is a display window in seconds.
type Window struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// FrameRange is a window expressed in whole frames. DurationFrames is always >= 1.
type FrameRange struct {
	FromFrame      int `json:"fromFrame"`
	DurationFrames int `json:"durationFrames"`
}

// EndFrame returns the first frame after the range.
func (r FrameRange) EndFrame() int {
	return r.FromFrame + r.DurationFrames
}

// Contains reports whether frame falls inside the range.
func (r FrameRange) Contains(frame int) bool {
	return frame >= r.FromFrame && frame < r.EndFrame()
}

// Mapper maps windows to frame ranges. SafeFrames is extra padding added to
// every duration to hide flicker at segment boundaries; negative values count as 0.
type Mapper struct {
	SafeFrames int
}

// MapToFrames maps w at fps with no padding.
func MapToFrames(w Window, fps float64) FrameRange {
	return Mapper{}.Map(w, fps)
}

// Map converts w into a frame range at fps.
func (m Mapper) Map(w Window, fps float64) FrameRange {
	pad := m.SafeFrames
	if pad < 0 {
		pad = 0
	}
	if !validFPS(fps) {
		return FrameRange{FromFrame: 0, DurationFrames: 1 + pad}
	}

	from := toFrame(w.From, fps)
	to := toFrame(w.To, fps)

	duration := to - from
	if duration < 1 {
		duration = 1
	}
	return FrameRange{FromFrame: from, DurationFrames: duration + pad}
}

// FrameToSeconds converts a frame index back to seconds.
func FrameToSeconds(frame int, fps float64) float64 {
	if !validFPS(fps) {
		return 0
	}
	return float64(frame) / fps
}

func toFrame(seconds, fps float64) int {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	// No rounding correction: 0.29s at 100fps is frame 28.
	f := math.Floor(seconds * fps)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func validFPS(fps float64) bool {
	return fps > 0 && !math.IsInf(fps, 0) && !math.IsNaN(fps)
}
