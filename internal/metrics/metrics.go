// Package metrics exports the monitor's readings and link health to Prometheus.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Temperature = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_temperature_celsius",
			Help: "Latest temperature reading",
		},
	)

	Humidity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_humidity_percent",
			Help: "Latest relative humidity reading",
		},
	)

	HeatIndex = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_heat_index_celsius",
			Help: "Heat index derived from temperature and humidity",
		},
	)

	GasPPM = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_gas_ppm",
			Help: "Smoothed gas concentration estimate",
		},
	)

	// GasValid is 0 while the smoothed estimate is rejected by the validity gate
	GasValid = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_gas_valid",
			Help: "Whether the latest gas estimate passed the validity gate",
		},
	)

	GasBaseline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_gas_r0_kohms",
			Help: "Clean-air baseline resistance R0",
		},
	)

	GasThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_gas_threshold_exceeded",
			Help: "Comparator output of the gas module (1 = above threshold)",
		},
	)

	Calibrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmon_calibrations_total",
			Help: "Calibration runs by result",
		},
		[]string{"result"},
	)

	Cycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airmon_cycles_total",
			Help: "Acquisition cycles run",
		},
	)

	ReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmon_read_errors_total",
			Help: "Failed sensor reads by source",
		},
		[]string{"source"},
	)

	// NetworkState is 1 for the current connectivity state label, 0 otherwise
	NetworkState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airmon_network_state",
			Help: "Connectivity manager state",
		},
		[]string{"state"},
	)

	MQTTConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_mqtt_connected",
			Help: "Whether the broker link is up",
		},
	)

	MQTTConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmon_mqtt_connect_attempts_total",
			Help: "Broker connect attempts by result",
		},
		[]string{"result"},
	)

	MQTTPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmon_mqtt_publishes_total",
			Help: "Publish attempts by result",
		},
		[]string{"result"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmon_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airmon_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15},
		},
		[]string{"route"},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmon_stream_clients",
			Help: "Connected websocket clients",
		},
	)
)

// ObserveReadings sets the reading gauges. Invalid values are left untouched
// so a scrape keeps the last good value, and GasValid reports the gate.
func ObserveReadings(temperature, humidity, heatIndex, gasPPM float64) {
	setFinite(Temperature, temperature)
	setFinite(Humidity, humidity)
	setFinite(HeatIndex, heatIndex)
	if setFinite(GasPPM, gasPPM) {
		GasValid.Set(1)
	} else {
		GasValid.Set(0)
	}
}

// ObserveCalibration records one calibration outcome.
func ObserveCalibration(r0 float64, err error) {
	if err != nil {
		Calibrations.WithLabelValues("error").Inc()
		return
	}
	Calibrations.WithLabelValues("ok").Inc()
	setFinite(GasBaseline, r0)
}

// SetNetworkState flips the state gauge to the given state.
func SetNetworkState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		NetworkState.WithLabelValues(s).Set(v)
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func setFinite(g prometheus.Gauge, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	g.Set(v)
	return true
}
