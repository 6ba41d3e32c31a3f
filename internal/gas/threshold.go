package gas

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Comparator reports the module's onboard comparator output, whose
// threshold is set with the board potentiometer.
type Comparator interface {
	Above() (bool, error)
}

// ThresholdPin reads the comparator DOUT line through the GPIO character device.
type ThresholdPin struct {
	line *gpiocdev.Line
}

// OpenThresholdPin requests offset on chip (e.g. "gpiochip0") as an input
func OpenThresholdPin(chip string, offset int) (*ThresholdPin, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithConsumer("airmon"),
	)
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	return &ThresholdPin{line: line}, nil
}

// Above reports whether the gas level is above the comparator threshold
func (p *ThresholdPin) Above() (bool, error) {
	v, err := p.line.Value()
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// Close releases the GPIO line
func (p *ThresholdPin) Close() error {
	return p.line.Close()
}
