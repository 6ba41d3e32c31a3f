package gas

import (
	"math"
)

// CleanAirRatio is Rs/R0 for the MQ-135 in clean air.
const CleanAirRatio = 3.6

// ResistanceModel converts ADC counts into sensor resistance for a
// voltage divider made of the sensor and a load resistor RL.
type ResistanceModel struct {
	// VRef is the ADC full-scale voltage.
	VRef float64
	// ADCBits is the ADC resolution.
	ADCBits int
	// LoadResistance is RL in kilo-ohms.
	LoadResistance float64
}

// DefaultModel matches a 12-bit 3.3V ADC with a 10k load resistor.
func DefaultModel() ResistanceModel {
	return ResistanceModel{
		VRef:           3.3,
		ADCBits:        12,
		LoadResistance: 10.0,
	}
}

// Voltage converts a raw ADC count to volts.
func (m ResistanceModel) Voltage(raw int) float64 {
	full := math.Exp2(float64(m.ADCBits)) - 1
	return float64(raw) * m.VRef / full
}

// Resistance returns Rs for a measured voltage. Zero volts yields +Inf
// and negative results clamp to 0.
func (m ResistanceModel) Resistance(volts float64) float64 {
	if volts <= 0 {
		return math.Inf(1)
	}
	rs := (m.VRef*m.LoadResistance)/volts - m.LoadResistance
	if rs < 0 {
		return 0
	}
	return rs
}

// PPM evaluates a curve at the given Rs/R0 ratio. Negative results clamp to 0.
func PPM(c Curve, ratio float64) float64 {
	ppm := c.A * math.Pow(ratio, c.B)
	if ppm < 0 {
		return 0
	}
	return ppm
}
