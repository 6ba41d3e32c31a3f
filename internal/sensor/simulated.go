package sensor

import (
	"math/rand"
	"sync"
	"time"
)

// SimulatedHygrometer produces plausible indoor readings without hardware
type SimulatedHygrometer struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewSimulatedHygrometer creates a simulated temperature/humidity source
func NewSimulatedHygrometer() *SimulatedHygrometer {
	return &SimulatedHygrometer{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read implements Hygrometer
func (s *SimulatedHygrometer) Read() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp := 26.0 + (s.rand.Float64()-0.5)*6.0      // 23-29°C
	humidity := 60.0 + (s.rand.Float64()-0.5)*20.0 // 50-70%
	return temp, humidity, nil
}

// Close implements Hygrometer
func (s *SimulatedHygrometer) Close() error {
	return nil
}
