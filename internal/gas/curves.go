// Package gas turns raw readings from an MQ-135 style metal-oxide sensor
// into concentration estimates.
//
// The sensor's resistance Rs is derived from the analog voltage across a
// load resistor. A baseline R0 is recorded in clean air during
// calibration, and each target gas maps the ratio Rs/R0 to ppm with an
// exponential curve ppm = A * (Rs/R0)^B fitted from the datasheet.
package gas

import (
	"fmt"
	"strings"
)

// Gas identifies a target gas with a known sensitivity curve.
type Gas int

const (
	CO2 Gas = iota
	NH3
	Alcohol
	CO
	Toluene
	Acetone
)

// Curve holds the regression coefficients for one target gas.
type Curve struct {
	A float64
	B float64
}

var curves = map[Gas]Curve{
	CO2:     {A: 110.47, B: -2.862},
	NH3:     {A: 102.2, B: -2.473},
	Alcohol: {A: 77.255, B: -3.18},
	CO:      {A: 605.18, B: -3.937},
	Toluene: {A: 44.947, B: -3.445},
	Acetone: {A: 34.668, B: -3.369},
}

var gasNames = map[Gas]string{
	CO2:     "co2",
	NH3:     "nh3",
	Alcohol: "alcohol",
	CO:      "co",
	Toluene: "toluene",
	Acetone: "acetone",
}

// Gases lists every supported target.
func Gases() []Gas {
	return []Gas{CO2, NH3, Alcohol, CO, Toluene, Acetone}
}

// CurveFor returns the curve of g.
func CurveFor(g Gas) (Curve, bool) {
	c, ok := curves[g]
	return c, ok
}

func (g Gas) String() string {
	if name, ok := gasNames[g]; ok {
		return name
	}
	return fmt.Sprintf("gas(%d)", int(g))
}

// ParseGas maps a config name such as "co2" or "Toluene" to its Gas.
func ParseGas(name string) (Gas, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for g, n := range gasNames {
		if n == name {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown target gas %q", name)
}
