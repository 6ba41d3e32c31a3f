package sensor

import (
	"fmt"
	"math"

	"github.com/afroash/dht"
)

// Hygrometer reads temperature and relative humidity
type Hygrometer interface {
	// Read returns temperature (°C) and humidity (%)
	Read() (temperature float64, humidity float64, err error)

	// Close releases the underlying line
	Close() error
}

// Supported DHT models
const (
	ModelDHT11 = "dht11"
	ModelDHT22 = "dht22"
)

// DHTReader implements Hygrometer on a DHT11 or DHT22 data line
type DHTReader struct {
	model      string
	pin        int
	maxRetries int
	sensor     *dht.Sensor
}

// NewDHTReader opens a sensor of the given model on a GPIO pin
func NewDHTReader(model string, pin, maxRetries int) (*DHTReader, error) {
	if maxRetries < 1 {
		maxRetries = 3
	}

	var open func(int) (*dht.Sensor, error)
	switch model {
	case ModelDHT11:
		open = dht.NewDHT11
	case ModelDHT22:
		open = dht.NewDHT22
	default:
		return nil, fmt.Errorf("unsupported DHT model %q", model)
	}

	s, err := open(pin)
	if err != nil {
		return nil, fmt.Errorf("open %s on pin %d: %w", model, pin, err)
	}
	return &DHTReader{
		model:      model,
		pin:        pin,
		maxRetries: maxRetries,
		sensor:     s,
	}, nil
}

// Read performs a reading with the driver's retry logic
func (d *DHTReader) Read() (float64, float64, error) {
	reading, err := d.sensor.ReadRetry(d.maxRetries)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s on pin %d after %d retries: %w", d.model, d.pin, d.maxRetries, err)
	}
	if err := validateReading(reading.Temperature, reading.Humidity); err != nil {
		return 0, 0, fmt.Errorf("invalid reading: %w", err)
	}
	return reading.Temperature, reading.Humidity, nil
}

// Close releases GPIO resources
func (d *DHTReader) Close() error {
	return d.sensor.Close()
}

// validateReading rejects values outside the DHT family's measuring range
func validateReading(temp, humidity float64) error {
	const (
		minTemp     = -40.0
		maxTemp     = 80.0
		minHumidity = 0.0
		maxHumidity = 100.0
	)
	if math.IsNaN(temp) || math.IsNaN(humidity) {
		return fmt.Errorf("missing value (temperature %v, humidity %v)", temp, humidity)
	}
	if temp < minTemp || temp > maxTemp {
		return fmt.Errorf("temperature %.1f°C outside %.0f..%.0f°C", temp, minTemp, maxTemp)
	}
	if humidity < minHumidity || humidity > maxHumidity {
		return fmt.Errorf("humidity %.1f%% outside %.0f..%.0f%%", humidity, minHumidity, maxHumidity)
	}
	return nil
}

// HeatIndex returns the apparent temperature in °C using the Celsius
// form of the Rothfusz regression.
func HeatIndex(t, h float64) float64 {
	return -8.784695 + 1.61139411*t + 2.338549*h -
		0.14611605*t*h - 0.01230809*t*t -
		0.01642482*h*h + 0.00221173*t*t*h +
		0.00072546*t*h*h -
		0.00000358*t*t*h*h
}
