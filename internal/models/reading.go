package models

import (
	"fmt"
	"math"
	"time"
)

// Reading is one archived cycle of the monitor, kept in the history store.
type Reading struct {
	RoomID      string    `json:"room_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	HeatIndex   float64   `json:"heat_index"`
	GasPPM      float64   `json:"gas_ppm"`
}

// IsValid checks if the reading values are within acceptable ranges.
// An invalid gas estimate is stored as 0 and does not invalidate the row.
func (r *Reading) IsValid() bool {
	const (
		minTemp     = -40.0
		maxTemp     = 80.0
		minHumidity = 0.0
		maxHumidity = 100.0
	)

	if r.RoomID == "" {
		return false
	}
	if r.Timestamp.IsZero() {
		return false
	}
	if math.IsNaN(r.Temperature) || r.Temperature < minTemp || r.Temperature > maxTemp {
		return false
	}
	if math.IsNaN(r.Humidity) || r.Humidity < minHumidity || r.Humidity > maxHumidity {
		return false
	}
	return true
}

// String returns the reading as a log-friendly line
func (r *Reading) String() string {
	return fmt.Sprintf("RoomID: %s, Timestamp: %s, Humidity: %.1f%%, Temperature: %.1f°C, HeatIndex: %.1f°C, Gas: %.0fppm",
		r.RoomID,
		r.Timestamp.Format(time.RFC3339),
		r.Humidity,
		r.Temperature,
		r.HeatIndex,
		r.GasPPM,
	)
}

// NewReading archives a snapshot taken now. Non-finite values become 0.
func NewReading(roomID string, s Snapshot) *Reading {
	return &Reading{
		RoomID:      roomID,
		Timestamp:   time.Now().UTC(),
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		HeatIndex:   Finite(s.HeatIndex),
		GasPPM:      Finite(s.GasPPM),
	}
}

// Copy returns a deep copy of the Reading
func (r *Reading) Copy() *Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
