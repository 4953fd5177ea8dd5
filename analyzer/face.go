// Package analyzer contains the stateless signal analyzers that turn
// landmark frames and audio buffers into the numeric indicators the
// challenge scheduler polls. All functions are deterministic given their
// inputs; the only stateful type is BlinkCounter, which exists to debounce
// consecutive eye closures.
package analyzer

import (
	"math"
	"time"

	"github.com/layer-3/presence/core"
)

func distance(a, b core.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio computes the EAR of six ordered eyelid points:
// p0/p3 the horizontal corners, p1/p5 and p2/p4 the vertical pairs.
// A closed eye yields a small ratio.
func EyeAspectRatio(eye []core.Point) float64 {
	if len(eye) < 6 {
		return 0
	}
	a := distance(eye[1], eye[5])
	b := distance(eye[2], eye[4])
	c := distance(eye[0], eye[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2.0 * c)
}

// EyesClosed averages the EAR of both eyes and reports closure against the
// configured threshold.
func EyesClosed(frame core.LandmarkFrame, threshold float64) bool {
	ear := (EyeAspectRatio(frame.LeftEye) + EyeAspectRatio(frame.RightEye)) / 2.0
	return ear < threshold
}

// BlinkCounter counts debounced blink events. A closure is counted only if
// at least the debounce interval elapsed since the previous counted blink,
// so a single slow closure spanning several frames increments once.
type BlinkCounter struct {
	threshold float64
	debounce  time.Duration
	count     int
	lastBlink time.Time
}

// NewBlinkCounter creates a counter with the given EAR threshold and
// debounce interval.
func NewBlinkCounter(threshold float64, debounce time.Duration) *BlinkCounter {
	return &BlinkCounter{threshold: threshold, debounce: debounce}
}

// Observe feeds one frame and returns true when it counted a blink.
func (c *BlinkCounter) Observe(frame core.LandmarkFrame) bool {
	if !EyesClosed(frame, c.threshold) {
		return false
	}
	if !c.lastBlink.IsZero() && frame.At.Sub(c.lastBlink) < c.debounce {
		return false
	}
	c.count++
	c.lastBlink = frame.At
	return true
}

// Count returns the number of counted blinks.
func (c *BlinkCounter) Count() int {
	return c.count
}

// Reset clears the counter for a new challenge stage.
func (c *BlinkCounter) Reset() {
	c.count = 0
	c.lastBlink = time.Time{}
}

// SmileRatio computes the mouth width-to-height ratio from the 12 mouth
// contour points: points 0/6 are the horizontal corners, 3/9 the vertical
// extremes.
func SmileRatio(mouth []core.Point) float64 {
	if len(mouth) < 12 {
		return 0
	}
	width := distance(mouth[0], mouth[6])
	height := distance(mouth[3], mouth[9])
	if height == 0 {
		return 0
	}
	return width / height
}

// IsSmiling reports whether the mouth ratio exceeds the threshold.
func IsSmiling(frame core.LandmarkFrame, threshold float64) bool {
	return SmileRatio(frame.Mouth) > threshold
}

// FlattenPoints serializes landmark points into the flat vector used by the
// lip-movement energy computation.
func FlattenPoints(pts []core.Point) []float64 {
	out := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}
