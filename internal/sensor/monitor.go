package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/afroash/airmon/internal/filter"
	"github.com/afroash/airmon/internal/gas"
	"github.com/afroash/airmon/internal/metrics"
	"github.com/afroash/airmon/internal/models"
	"github.com/rs/zerolog"
)

// DefaultInterval is the acquisition cycle period
const DefaultInterval = 1500 * time.Millisecond

const defaultDiagnosticsEvery = 10

// GasSensor is the part of the gas estimator the cycle drives
type GasSensor interface {
	Update() error
	Calibrated() bool
	Estimate(target gas.Gas) float64
	Diagnostics() gas.Diagnostics
	Recalibrate(samples int, interval, warmup time.Duration) (float64, error)
	Baseline() float64
}

// SnapshotSink receives the snapshot produced by each successful cycle
type SnapshotSink interface {
	Update(s models.Snapshot)
}

// HistoryWriter archives readings; Write must not block
type HistoryWriter interface {
	Write(r *models.Reading) bool
}

// Publisher is ticked once per cycle, whether or not acquisition succeeded
type Publisher interface {
	Tick(ctx context.Context, clientID, user, pass string) bool
}

// Components are the collaborators of a Monitor. Climate, Gas, Filter
// and Sink are required; the rest may be nil.
type Components struct {
	Climate    Hygrometer
	Gas        GasSensor
	Filter     *filter.Filter
	Sink       SnapshotSink
	Display    Display
	History    HistoryWriter
	Publisher  Publisher
	Comparator gas.Comparator

	// Gate is held for the whole cycle. Share it with anything that must
	// not interleave with acquisition.
	Gate sync.Locker

	// Clock returns the snapshot timestamp in seconds
	Clock func() uint64
}

// MonitorConfig holds the cycle settings
type MonitorConfig struct {
	Interval         time.Duration
	Target           gas.Gas
	RoomID           string
	DiagnosticsEvery int

	ClientID string
	Username string
	Password string
}

// Monitor runs the acquisition cycle: read, estimate, filter, store,
// display, archive and publish.
type Monitor struct {
	c      Components
	cfg    MonitorConfig
	logger zerolog.Logger
	cycles int
}

// NewMonitor creates a monitor. Missing optional components are no-ops.
func NewMonitor(c Components, cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.DiagnosticsEvery <= 0 {
		cfg.DiagnosticsEvery = defaultDiagnosticsEvery
	}
	if c.Gate == nil {
		c.Gate = &sync.Mutex{}
	}
	if c.Clock == nil {
		start := time.Now()
		c.Clock = func() uint64 { return uint64(time.Since(start) / time.Second) }
	}
	return &Monitor{
		c:      c,
		cfg:    cfg,
		logger: logger,
	}
}

// Run cycles every interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.Interval).Str("target", m.cfg.Target.String()).Msg("Monitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("cycle skipped")
			}
		}
	}
}

// RunOnce performs a single cycle under the gate. On a temperature or
// humidity failure the snapshot is left as it was and the error is
// returned; the publisher is ticked either way.
func (m *Monitor) RunOnce(ctx context.Context) (models.Snapshot, error) {
	m.c.Gate.Lock()
	defer m.c.Gate.Unlock()

	metrics.Cycles.Inc()
	m.cycles++

	co2 := m.estimateGas()

	if m.cycles%m.cfg.DiagnosticsEvery == 0 {
		m.logDiagnostics()
	}
	m.readComparator()

	snap, err := m.acquire(co2)
	if err == nil {
		m.c.Sink.Update(snap)
		if m.c.Display != nil {
			m.c.Display.Show(snap)
		}
		if m.c.History != nil {
			m.c.History.Write(models.NewReading(m.cfg.RoomID, snap))
		}
		metrics.ObserveReadings(snap.Temperature, snap.Humidity, snap.HeatIndex, snap.GasPPM)
	}

	if m.c.Publisher != nil {
		m.c.Publisher.Tick(ctx, m.cfg.ClientID, m.cfg.Username, m.cfg.Password)
	}
	return snap, err
}

func (m *Monitor) acquire(co2 float64) (models.Snapshot, error) {
	t, h, err := m.c.Climate.Read()
	if err == nil {
		err = validateReading(t, h)
	}
	if err != nil {
		metrics.ReadErrors.WithLabelValues("climate").Inc()
		return models.Snapshot{}, fmt.Errorf("climate read: %w", err)
	}
	return models.Snapshot{
		Temperature: t,
		Humidity:    h,
		HeatIndex:   HeatIndex(t, h),
		GasPPM:      co2,
		Timestamp:   m.c.Clock(),
	}, nil
}

// estimateGas samples the gas sensor and returns the smoothed estimate,
// NaN when uncalibrated or rejected by the filter.
func (m *Monitor) estimateGas() float64 {
	if err := m.c.Gas.Update(); err != nil {
		metrics.ReadErrors.WithLabelValues("gas").Inc()
		m.logger.Debug().Err(err).Msg("gas sample failed")
		return math.NaN()
	}
	if !m.c.Gas.Calibrated() {
		return math.NaN()
	}
	return m.c.Filter.Apply(m.c.Gas.Estimate(m.cfg.Target))
}

func (m *Monitor) logDiagnostics() {
	d := m.c.Gas.Diagnostics()
	m.logger.Debug().
		Int("raw", d.Raw).
		Float64("voltage", d.Voltage).
		Float64("rs", d.Rs).
		Float64("r0", d.R0).
		Float64("ratio", d.Ratio).
		Bool("calibrated", d.Calibrated).
		Int("window", m.c.Filter.Len()).
		Int64("rejected", m.c.Filter.Rejected()).
		Msg("gas diagnostics")
}

func (m *Monitor) readComparator() {
	if m.c.Comparator == nil {
		return
	}
	above, err := m.c.Comparator.Above()
	if err != nil {
		metrics.ReadErrors.WithLabelValues("comparator").Inc()
		return
	}
	if above {
		metrics.GasThreshold.Set(1)
	} else {
		metrics.GasThreshold.Set(0)
	}
}

// Baseline implements gas.BaselineProvider
func (m *Monitor) Baseline() float64 {
	return m.c.Gas.Baseline()
}

// Recalibrate implements gas.BaselineProvider. The caller must already
// hold the gate so no cycle runs during calibration. The smoothing
// window is cleared on success since older estimates used the old R0.
func (m *Monitor) Recalibrate(samples int, interval, warmup time.Duration) (float64, error) {
	m.logger.Info().
		Int("samples", samples).
		Dur("interval", interval).
		Dur("warmup", warmup).
		Msg("Recalibrating gas sensor")

	r0, err := m.c.Gas.Recalibrate(samples, interval, warmup)
	metrics.ObserveCalibration(r0, err)
	if err != nil {
		m.logger.Error().Err(err).Msg("Recalibration failed")
		return r0, err
	}
	m.c.Filter.Reset()
	return r0, nil
}

var _ gas.BaselineProvider = (*Monitor)(nil)

// Close releases the climate sensor
func (m *Monitor) Close() error {
	return m.c.Climate.Close()
}
