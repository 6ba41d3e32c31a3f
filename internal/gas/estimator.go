package gas

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotCalibrated is returned when a baseline is required but none was recorded.
	ErrNotCalibrated = errors.New("gas sensor not calibrated")
	// ErrNoSamples is returned when calibration is asked for zero samples.
	ErrNoSamples = errors.New("calibration needs at least one sample")
)

// CalibrationState is the clean-air baseline. It is only ever replaced whole.
type CalibrationState struct {
	R0         float64 `json:"r0"`
	Calibrated bool    `json:"calibrated"`
}

// Diagnostics describes the most recent raw sample.
type Diagnostics struct {
	Raw        int     `json:"raw"`
	Voltage    float64 `json:"voltage"`
	Rs         float64 `json:"rs"`
	R0         float64 `json:"r0"`
	Ratio      float64 `json:"ratio"`
	Calibrated bool    `json:"calibrated"`
}

// Estimator owns the calibration state and the latest sensed resistance.
type Estimator struct {
	reader        AnalogReader
	model         ResistanceModel
	cleanAirRatio float64
	logger        zerolog.Logger

	mu      sync.RWMutex
	state   CalibrationState
	raw     int
	rs      float64
	sampled bool

	// swapped in tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewEstimator creates an uncalibrated estimator reading from reader
func NewEstimator(reader AnalogReader, model ResistanceModel, logger zerolog.Logger) *Estimator {
	return &Estimator{
		reader:        reader,
		model:         model,
		cleanAirRatio: CleanAirRatio,
		logger:        logger,
		rs:            math.NaN(),
		now:           time.Now,
		sleep:         time.Sleep,
	}
}

// Update takes one raw sample and records it as the latest Rs.
func (e *Estimator) Update() error {
	_, err := e.sample()
	return err
}

func (e *Estimator) sample() (float64, error) {
	raw, err := e.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read analog input: %w", err)
	}
	rs := e.model.Resistance(e.model.Voltage(raw))

	e.mu.Lock()
	e.raw = raw
	e.rs = rs
	e.sampled = true
	e.mu.Unlock()

	return rs, nil
}

// Estimate returns the ppm of target from the latest sample. Callers
// must check Calibrated first: without a baseline the ratio is
// meaningless and the result is +Inf or NaN.
func (e *Estimator) Estimate(target Gas) float64 {
	c, ok := curves[target]
	if !ok {
		return math.NaN()
	}
	return PPM(c, e.Ratio())
}

// Ratio returns Rs/R0 for the latest sample.
func (e *Estimator) Ratio() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.sampled {
		return math.NaN()
	}
	return e.rs / e.state.R0
}

// Calibrated reports whether a baseline has been recorded
func (e *Estimator) Calibrated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Calibrated
}

// State returns a copy of the calibration state
func (e *Estimator) State() CalibrationState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Baseline returns R0, or NaN before the first calibration.
func (e *Estimator) Baseline() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.state.Calibrated {
		return math.NaN()
	}
	return e.state.R0
}

// Diagnostics reports the latest raw sample and derived values
func (e *Estimator) Diagnostics() Diagnostics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d := Diagnostics{
		Raw:        e.raw,
		Voltage:    e.model.Voltage(e.raw),
		Rs:         e.rs,
		R0:         e.state.R0,
		Calibrated: e.state.Calibrated,
		Ratio:      math.NaN(),
	}
	if e.sampled && e.state.Calibrated {
		d.Ratio = e.rs / e.state.R0
	}
	return d
}
