package filter

import "math"

// Valid reports whether a gas estimate may enter the running mean:
// finite, positive and not above MaxPlausiblePPM.
func Valid(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v > 0 && v <= MaxPlausiblePPM
}

// Filter gates raw estimates and smooths the valid ones.
type Filter struct {
	window   *Window
	rejected int64
}

// New creates a filter averaging over the last size valid estimates
func New(size int) *Filter {
	return &Filter{window: NewWindow(size)}
}

// Apply pushes raw when it is valid and returns the smoothed estimate.
// Invalid input leaves the window untouched and yields NaN for this cycle.
func (f *Filter) Apply(raw float64) float64 {
	if !Valid(raw) {
		f.rejected++
		return math.NaN()
	}
	smoothed := f.window.Push(raw)
	if !Valid(smoothed) {
		return math.NaN()
	}
	return smoothed
}

// Len returns how many valid estimates are currently averaged
func (f *Filter) Len() int {
	return f.window.Len()
}

// Rejected returns how many inputs failed the validity gate
func (f *Filter) Rejected() int64 {
	return f.rejected
}

// Reset drops all history, used after a recalibration changes the baseline.
func (f *Filter) Reset() {
	f.window.Reset()
}
