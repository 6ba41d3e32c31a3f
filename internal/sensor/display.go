package sensor

import (
	"math"

	"github.com/afroash/airmon/internal/models"
	"github.com/rs/zerolog"
)

// Display renders each cycle's snapshot locally
type Display interface {
	Show(s models.Snapshot)
}

// ConsoleDisplay writes snapshots to the log, standing in for a panel
type ConsoleDisplay struct {
	logger zerolog.Logger
}

// NewConsoleDisplay creates a display that logs at info level
func NewConsoleDisplay(logger zerolog.Logger) *ConsoleDisplay {
	return &ConsoleDisplay{logger: logger}
}

// Show implements Display
func (d *ConsoleDisplay) Show(s models.Snapshot) {
	ev := d.logger.Info().
		Float64("temperature", s.Temperature).
		Float64("humidity", s.Humidity).
		Float64("heat_index", s.HeatIndex)
	if math.IsNaN(s.GasPPM) || math.IsInf(s.GasPPM, 0) {
		ev = ev.Str("co2", "ERR")
	} else {
		ev = ev.Float64("co2_ppm", math.Round(s.GasPPM))
	}
	ev.Msg("read from sensors")
}
