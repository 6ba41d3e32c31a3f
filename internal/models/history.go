package models

import "time"

// DailySummary aggregates one room's readings for a single UTC day
type DailySummary struct {
	Date           time.Time `json:"date"`
	RoomID         string    `json:"room_id"`
	MinTemperature float64   `json:"min_temperature"`
	MaxTemperature float64   `json:"max_temperature"`
	AvgTemperature float64   `json:"avg_temperature"`
	MinHumidity    float64   `json:"min_humidity"`
	MaxHumidity    float64   `json:"max_humidity"`
	AvgHumidity    float64   `json:"avg_humidity"`
	MaxHeatIndex   float64   `json:"max_heat_index"`
	AvgGasPPM      float64   `json:"avg_gas_ppm"`
	MaxGasPPM      float64   `json:"max_gas_ppm"`
	ReadingCount   int       `json:"reading_count"`
}
