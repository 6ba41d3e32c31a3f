package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Fixed is a number serialized to JSON with a fixed count of decimal
// places. Non-finite values serialize as zero.
type Fixed struct {
	Value  float64
	Places int32
}

// OneDecimal is used for temperature, humidity and heat index.
func OneDecimal(v float64) Fixed { return Fixed{Value: v, Places: 1} }

// NoDecimals is used for gas concentrations.
func NoDecimals(v float64) Fixed { return Fixed{Value: v, Places: 0} }

// ThreeDecimals is used for the baseline resistance.
func ThreeDecimals(v float64) Fixed { return Fixed{Value: v, Places: 3} }

// String returns the fixed-point text of the value.
func (f Fixed) String() string {
	return decimal.NewFromFloat(Finite(f.Value)).StringFixed(f.Places)
}

// MarshalJSON implements json.Marshaler.
func (f Fixed) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler. Places is left unchanged.
func (f *Fixed) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	f.Value = v
	return nil
}
