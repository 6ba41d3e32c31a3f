package gas

import (
	"fmt"
	"math"
	"time"
)

// Default calibration parameters.
const (
	DefaultWarmup              = 5 * time.Second
	DefaultCalibrationSamples  = 100
	DefaultCalibrationInterval = 100 * time.Millisecond

	warmupSampleInterval = 50 * time.Millisecond
)

// BaselineProvider exposes the calibration capability to the HTTP API.
type BaselineProvider interface {
	// Baseline returns R0, NaN when not calibrated.
	Baseline() float64
	// Recalibrate blocks for warmup + samples*interval and returns the new R0.
	Recalibrate(samples int, interval, warmup time.Duration) (float64, error)
}

var _ BaselineProvider = (*Estimator)(nil)

// WarmUp samples and discards readings for d so the heater settles.
// It blocks for the whole duration.
func (e *Estimator) WarmUp(d time.Duration) {
	if d <= 0 {
		return
	}
	start := e.now()
	discarded := 0
	for e.now().Sub(start) < d {
		if _, err := e.sample(); err != nil {
			e.logger.Debug().Err(err).Msg("warm-up sample failed")
		}
		discarded++
		e.sleep(warmupSampleInterval)
	}
	e.logger.Debug().Dur("duration", d).Int("discarded", discarded).Msg("Gas sensor warm-up done")
}

// Calibrate records a new clean-air baseline from samples reads taken
// interval apart. The sensor must sit in clean air. It blocks for
// samples*interval and cannot be cancelled; on error the previous
// baseline is kept.
func (e *Estimator) Calibrate(samples int, interval time.Duration) error {
	if samples <= 0 {
		return ErrNoSamples
	}

	sum := 0.0
	for i := 0; i < samples; i++ {
		rs, err := e.sample()
		if err != nil {
			return fmt.Errorf("calibration sample %d: %w", i+1, err)
		}
		sum += rs / e.cleanAirRatio
		if i < samples-1 {
			e.sleep(interval)
		}
	}

	r0 := sum / float64(samples)
	if math.IsNaN(r0) || math.IsInf(r0, 0) || r0 <= 0 {
		return fmt.Errorf("calibration produced unusable baseline %v", r0)
	}

	e.mu.Lock()
	e.state = CalibrationState{R0: r0, Calibrated: true}
	e.mu.Unlock()

	e.logger.Info().
		Float64("r0", r0).
		Int("samples", samples).
		Dur("interval", interval).
		Msg("Gas sensor calibrated")
	return nil
}

// Recalibrate runs a warm-up followed by a full calibration pass.
func (e *Estimator) Recalibrate(samples int, interval, warmup time.Duration) (float64, error) {
	e.WarmUp(warmup)
	if err := e.Calibrate(samples, interval); err != nil {
		return e.Baseline(), err
	}
	return e.Baseline(), nil
}
