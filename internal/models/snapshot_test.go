// internal/models/snapshot_test.go
package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestSnapshot_State_NaNSerializesAsZero(t *testing.T) {
	s := Snapshot{
		Temperature: math.NaN(),
		Humidity:    45.04,
		HeatIndex:   math.Inf(1),
		GasPPM:      math.NaN(),
		Timestamp:   12,
	}

	data, err := json.Marshal(s.State())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"t":0.0,"h":45.0,"hi":0.0,"co2":0,"ts":12}`
	if string(data) != want {
		t.Errorf("State JSON = %s, want %s", data, want)
	}
	if strings.Contains(strings.ToLower(string(data)), "nan") {
		t.Errorf("State JSON must not contain nan: %s", data)
	}
	if !json.Valid(data) {
		t.Errorf("State JSON is not valid: %s", data)
	}
}

func TestSnapshot_Payload(t *testing.T) {
	s := Snapshot{
		Temperature: 22.46,
		Humidity:    51.25,
		HeatIndex:   23.01,
		GasPPM:      803.4,
		Timestamp:   3,
	}

	data, err := json.Marshal(s.Payload("204", 3500))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"roomId":"204","timestamp":3500,"temperature":22.5,"humidity":51.3,"heatIndex":23.0,"co2":803}`
	if string(data) != want {
		t.Errorf("Payload JSON = %s, want %s", data, want)
	}
}

func TestFixed_Precision(t *testing.T) {
	tests := []struct {
		name  string
		value Fixed
		want  string
	}{
		{"one decimal", OneDecimal(21.04), "21.0"},
		{"one decimal rounds up", OneDecimal(21.06), "21.1"},
		{"no decimals", NoDecimals(802.6), "803"},
		{"three decimals", ThreeDecimals(30.12345), "30.123"},
		{"negative", OneDecimal(-3.25), "-3.3"},
		{"nan", ThreeDecimals(math.NaN()), "0.000"},
		{"inf", NoDecimals(math.Inf(-1)), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFixed_UnmarshalJSON(t *testing.T) {
	var v StateView
	if err := json.Unmarshal([]byte(`{"t":21.5,"h":40.0,"hi":22.1,"co2":410,"ts":9}`), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.T.Value != 21.5 {
		t.Errorf("T = %v, want 21.5", v.T.Value)
	}
	if v.CO2.Value != 410 {
		t.Errorf("CO2 = %v, want 410", v.CO2.Value)
	}
	if v.TS != 9 {
		t.Errorf("TS = %v, want 9", v.TS)
	}
}

func TestSnapshot_String(t *testing.T) {
	s := EmptySnapshot()
	s.Temperature, s.Humidity, s.HeatIndex = 22.5, 45, 23
	if got := s.String(); !strings.Contains(got, "CO2: ERR") {
		t.Errorf("String() = %q, want CO2: ERR", got)
	}

	s.GasPPM = 410.2
	if got := s.String(); !strings.Contains(got, "CO2: 410 ppm") {
		t.Errorf("String() = %q, want CO2: 410 ppm", got)
	}
}
