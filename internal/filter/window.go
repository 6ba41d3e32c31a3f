// Package filter smooths successive gas estimates with a fixed-window
// moving average and rejects implausible values before they reach it.
package filter

import (
	"fmt"
	"math"
)

// DefaultWindowSize is the number of estimates averaged once the window is full.
const DefaultWindowSize = 5

// MaxPlausiblePPM is the ceiling above which an estimate is treated as a
// saturated or broken read.
const MaxPlausiblePPM = 50000.0

// Window is a fixed-capacity ring buffer of estimates. The mean covers
// only the filled slots, so it grows from 1 to Size samples and then
// stays at Size.
type Window struct {
	values []float64
	next   int
	filled int
}

// NewWindow creates a window holding the last size values
func NewWindow(size int) *Window {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &Window{
		values: make([]float64, size),
	}
}

// Push stores v over the oldest slot once full and returns the new mean.
func (w *Window) Push(v float64) float64 {
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
	if w.filled < len(w.values) {
		w.filled++
	}
	return w.Mean()
}

// Mean returns the arithmetic mean of the filled slots, NaN when empty.
func (w *Window) Mean() float64 {
	if w.filled == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := 0; i < w.filled; i++ {
		sum += w.values[i]
	}
	return sum / float64(w.filled)
}

// Len returns the number of filled slots
func (w *Window) Len() int {
	return w.filled
}

// Size returns the capacity of the window
func (w *Window) Size() int {
	return len(w.values)
}

// Reset empties the window
func (w *Window) Reset() {
	for i := range w.values {
		w.values[i] = 0
	}
	w.next = 0
	w.filled = 0
}

// String returns something like "Window[3/5, mean: 412.0]"
func (w *Window) String() string {
	return fmt.Sprintf("Window[%d/%d, mean: %.1f]", w.filled, len(w.values), w.Mean())
}
