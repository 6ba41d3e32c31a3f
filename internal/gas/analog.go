package gas

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AnalogReader returns one raw ADC count from the sensor's analog output.
type AnalogReader interface {
	Read() (int, error)
}

// IIOReader reads a Linux industrial I/O ADC channel through sysfs.
type IIOReader struct {
	path string
}

// NewIIOReader reads in_voltage<channel>_raw of iio:device<device>
func NewIIOReader(device, channel int) *IIOReader {
	return &IIOReader{
		path: fmt.Sprintf("/sys/bus/iio/devices/iio:device%d/in_voltage%d_raw", device, channel),
	}
}

// NewIIOReaderPath reads raw counts from an explicit sysfs file
func NewIIOReaderPath(path string) *IIOReader {
	return &IIOReader{path: path}
}

// Read implements AnalogReader
func (r *IIOReader) Read() (int, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, err
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", r.path, err)
	}
	if raw < 0 {
		return 0, fmt.Errorf("negative ADC count %d", raw)
	}
	return raw, nil
}

// SimulatedReader produces ADC counts wandering around a clean-air level,
// for running the monitor without hardware.
type SimulatedReader struct {
	mu   sync.Mutex
	rand *rand.Rand
	base int
	max  int
	cur  float64
}

// NewSimulatedReader creates a simulated ADC for a bits-wide converter
func NewSimulatedReader(base, bits int) *SimulatedReader {
	return &SimulatedReader{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		base: base,
		max:  (1 << bits) - 1,
		cur:  float64(base),
	}
}

// Read implements AnalogReader with a mean-reverting random walk
func (s *SimulatedReader) Read() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur += (s.rand.Float64()-0.5)*20 + (float64(s.base)-s.cur)*0.1
	raw := int(s.cur)
	if raw < 0 {
		raw = 0
	}
	if raw > s.max {
		raw = s.max
	}
	return raw, nil
}
