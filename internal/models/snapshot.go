package models

import (
	"fmt"
	"math"
)

// Snapshot is the most recent set of validated readings shared by the
// HTTP API, the publisher and the live stream. Any field may hold NaN
// meaning "currently invalid".
type Snapshot struct {
	Temperature float64
	Humidity    float64
	HeatIndex   float64
	GasPPM      float64

	// Timestamp is seconds since the monitor started.
	Timestamp uint64
}

// EmptySnapshot returns a snapshot with every reading marked invalid.
func EmptySnapshot() Snapshot {
	nan := math.NaN()
	return Snapshot{
		Temperature: nan,
		Humidity:    nan,
		HeatIndex:   nan,
		GasPPM:      nan,
	}
}

// Finite replaces NaN and infinities with 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// State returns the /state view of the snapshot.
func (s Snapshot) State() StateView {
	return StateView{
		T:   OneDecimal(s.Temperature),
		H:   OneDecimal(s.Humidity),
		HI:  OneDecimal(s.HeatIndex),
		CO2: NoDecimals(s.GasPPM),
		TS:  s.Timestamp,
	}
}

// Payload returns the broker payload for the snapshot.
func (s Snapshot) Payload(roomID string, timestampMs uint64) PublishPayload {
	return PublishPayload{
		RoomID:      roomID,
		Timestamp:   timestampMs,
		Temperature: OneDecimal(s.Temperature),
		Humidity:    OneDecimal(s.Humidity),
		HeatIndex:   OneDecimal(s.HeatIndex),
		CO2:         NoDecimals(s.GasPPM),
	}
}

// String renders the snapshot the way the console display prints it.
func (s Snapshot) String() string {
	gas := "ERR"
	if !math.IsNaN(s.GasPPM) && !math.IsInf(s.GasPPM, 0) {
		gas = fmt.Sprintf("%.0f ppm", s.GasPPM)
	}
	return fmt.Sprintf("Humidity: %.1f%%, Temp: %.1f°C, Heat index: %.1f°C, CO2: %s",
		s.Humidity,
		s.Temperature,
		s.HeatIndex,
		gas,
	)
}
