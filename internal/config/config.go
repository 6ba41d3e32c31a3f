// Package config loads the monitor configuration from YAML, applies
// defaults and environment overrides, and validates the result.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/afroash/airmon/internal/gas"
)

// Config holds all configuration for the monitor
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	WiFi    WiFiConfig    `yaml:"wifi"`
	HTTP    HTTPConfig    `yaml:"http"`
	Gas     GasConfig     `yaml:"gas"`
	DHT     DHTConfig     `yaml:"dht"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig identifies the monitor and paces its cycle
type DeviceConfig struct {
	Hostname         string        `yaml:"hostname"`
	RoomID           string        `yaml:"room_id"`
	Interval         time.Duration `yaml:"interval"`
	DiagnosticsEvery int           `yaml:"diagnostics_every"`
}

// AddressConfig is a static IPv4 address block
type AddressConfig struct {
	IP      string `yaml:"ip"`
	Gateway string `yaml:"gateway"`
	Netmask string `yaml:"netmask"`
	DNS     string `yaml:"dns"`
}

// APConfig is the fallback access point
type APConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	SSID     string        `yaml:"ssid"`
	Password string        `yaml:"password"`
	Address  AddressConfig `yaml:"address"`
}

// WiFiConfig contains the station credentials and fallback settings
type WiFiConfig struct {
	Interface      string        `yaml:"interface"`
	SSID           string        `yaml:"ssid"`
	Password       string        `yaml:"password"`
	Static         AddressConfig `yaml:"static"`
	StationTimeout time.Duration `yaml:"station_timeout"`
	FallbackAP     APConfig      `yaml:"fallback_ap"`
}

// HTTPConfig contains API server settings
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	CORS           *bool         `yaml:"cors"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// ThresholdConfig is the gas module's digital output line
type ThresholdConfig struct {
	Chip   string `yaml:"chip"`
	Offset int    `yaml:"offset"`
}

// GasConfig contains the gas sensor front end and calibration settings
type GasConfig struct {
	// Source is "iio" or "simulated"
	Source     string `yaml:"source"`
	IIODevice  int    `yaml:"iio_device"`
	IIOChannel int    `yaml:"iio_channel"`
	IIOPath    string `yaml:"iio_path"`

	VRef           float64 `yaml:"vref"`
	ADCBits        int     `yaml:"adc_bits"`
	LoadResistance float64 `yaml:"load_resistance"`

	Target              string        `yaml:"target"`
	WarmUp              time.Duration `yaml:"warmup"`
	CalibrationSamples  int           `yaml:"calibration_samples"`
	CalibrationInterval time.Duration `yaml:"calibration_interval"`
	FilterWindow        int           `yaml:"filter_window"`

	Threshold ThresholdConfig `yaml:"threshold"`
}

// DHTConfig contains the temperature/humidity sensor settings
type DHTConfig struct {
	// Source is "dht22", "dht11" or "simulated"
	Source     string `yaml:"source"`
	Pin        int    `yaml:"pin"`
	MaxRetries int    `yaml:"max_retries"`
}

// MQTTConfig contains the broker link and publish settings.
// An empty Broker disables publishing.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	Port           int           `yaml:"port"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topic          string        `yaml:"topic"`
	Interval       time.Duration `yaml:"interval"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// HistoryConfig contains the optional SQLite reading history
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	BatchSize     int           `yaml:"batch_size"`
	FlushPeriod   time.Duration `yaml:"flush_period"`
	QueueSize     int           `yaml:"queue_size"`
	RetentionDays int           `yaml:"retention_days"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// LoadConfig loads configuration from a YAML file. An empty path yields
// the defaults with environment overrides applied.
func LoadConfig(path string) (*Config, error) {
	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func boolPtr(v bool) *bool { return &v }

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Device.Hostname == "" {
		c.Device.Hostname = "esp32c3"
	}
	if c.Device.RoomID == "" {
		c.Device.RoomID = "204"
	}
	if c.Device.Interval == 0 {
		c.Device.Interval = 1500 * time.Millisecond
	}
	if c.Device.DiagnosticsEvery == 0 {
		c.Device.DiagnosticsEvery = 10
	}

	if c.WiFi.StationTimeout == 0 {
		c.WiFi.StationTimeout = 8 * time.Second
	}
	ap := &c.WiFi.FallbackAP
	if ap.Enabled == nil {
		ap.Enabled = boolPtr(true)
	}
	if ap.SSID == "" {
		ap.SSID = "ESP32C3-AP"
	}
	if ap.Password == "" {
		ap.Password = "pass12345"
	}
	if ap.Address.IP == "" {
		ap.Address.IP = "192.168.4.1"
	}
	if ap.Address.Gateway == "" {
		ap.Address.Gateway = ap.Address.IP
	}
	if ap.Address.Netmask == "" {
		ap.Address.Netmask = "255.255.255.0"
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 80
	}
	if c.HTTP.CORS == nil {
		c.HTTP.CORS = boolPtr(true)
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		// recalibration holds the response for seconds
		c.HTTP.WriteTimeout = 60 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}

	if c.Gas.Source == "" {
		c.Gas.Source = "iio"
	}
	if c.Gas.VRef == 0 {
		c.Gas.VRef = 3.3
	}
	if c.Gas.ADCBits == 0 {
		c.Gas.ADCBits = 12
	}
	if c.Gas.LoadResistance == 0 {
		c.Gas.LoadResistance = 10
	}
	if c.Gas.Target == "" {
		c.Gas.Target = gas.CO2.String()
	}
	if c.Gas.WarmUp == 0 {
		c.Gas.WarmUp = 5 * time.Second
	}
	if c.Gas.CalibrationSamples == 0 {
		c.Gas.CalibrationSamples = 100
	}
	if c.Gas.CalibrationInterval == 0 {
		c.Gas.CalibrationInterval = 100 * time.Millisecond
	}
	if c.Gas.FilterWindow == 0 {
		c.Gas.FilterWindow = 5
	}

	if c.DHT.Source == "" {
		c.DHT.Source = "dht22"
	}
	if c.DHT.Pin == 0 {
		c.DHT.Pin = 4
	}
	if c.DHT.MaxRetries == 0 {
		c.DHT.MaxRetries = 3
	}

	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "esp32c3-sensor"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "kosan/room204/sensors"
	}
	if c.MQTT.Interval == 0 {
		c.MQTT.Interval = 5 * time.Second
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 15 * time.Second
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 5 * time.Second
	}

	if c.History.Path == "" {
		c.History.Path = "./data/airmon.db"
	}
	if c.History.BatchSize == 0 {
		c.History.BatchSize = 20
	}
	if c.History.FlushPeriod == 0 {
		c.History.FlushPeriod = 30 * time.Second
	}
	if c.History.QueueSize == 0 {
		c.History.QueueSize = 256
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = 7
	}
	if c.History.CleanupPeriod == 0 {
		c.History.CleanupPeriod = time.Hour
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() {
	if v := os.Getenv("AIRMON_HOSTNAME"); v != "" {
		c.Device.Hostname = v
	}
	if v := os.Getenv("AIRMON_ROOM_ID"); v != "" {
		c.Device.RoomID = v
	}
	if v := os.Getenv("AIRMON_WIFI_SSID"); v != "" {
		c.WiFi.SSID = v
	}
	if v := os.Getenv("AIRMON_WIFI_PASSWORD"); v != "" {
		c.WiFi.Password = v
	}
	if v := os.Getenv("AIRMON_HTTP_PORT"); v != "" {
		// Validate reports the bad value
		port, err := strconv.Atoi(v)
		if err != nil {
			port = -1
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("AIRMON_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("AIRMON_MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("AIRMON_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !validHostname(c.Device.Hostname) {
		return fmt.Errorf("hostname %q must be letters, digits and hyphens", c.Device.Hostname)
	}
	if c.Device.RoomID == "" {
		return fmt.Errorf("room ID is required")
	}
	if c.Device.Interval < 100*time.Millisecond {
		return fmt.Errorf("cycle interval must be at least 100ms")
	}

	if c.WiFi.StationTimeout < 0 {
		return fmt.Errorf("station timeout must not be negative")
	}
	if err := c.WiFi.Static.validate("static"); err != nil {
		return err
	}
	if c.APEnabled() {
		if c.WiFi.FallbackAP.SSID == "" {
			return fmt.Errorf("fallback AP SSID is required")
		}
		if n := len(c.WiFi.FallbackAP.Password); n < 8 || n > 63 {
			return fmt.Errorf("fallback AP password must be 8 to 63 characters")
		}
		if err := c.WiFi.FallbackAP.Address.validate("fallback AP"); err != nil {
			return err
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	switch c.Gas.Source {
	case "iio", "simulated":
	default:
		return fmt.Errorf("unknown gas source %q", c.Gas.Source)
	}
	if _, err := gas.ParseGas(c.Gas.Target); err != nil {
		return err
	}
	if c.Gas.ADCBits < 1 || c.Gas.ADCBits > 16 {
		return fmt.Errorf("ADC bits must be between 1 and 16")
	}
	if c.Gas.VRef <= 0 || c.Gas.LoadResistance <= 0 {
		return fmt.Errorf("reference voltage and load resistance must be positive")
	}
	if c.Gas.CalibrationSamples < 1 {
		return fmt.Errorf("calibration samples must be at least 1")
	}
	if c.Gas.CalibrationInterval < 0 || c.Gas.WarmUp < 0 {
		return fmt.Errorf("calibration interval and warm-up must not be negative")
	}
	if c.Gas.FilterWindow < 1 {
		return fmt.Errorf("filter window must be at least 1")
	}

	switch c.DHT.Source {
	case "dht11", "dht22":
		if c.DHT.Pin <= 0 {
			return fmt.Errorf("DHT pin must be greater than 0")
		}
	case "simulated":
	default:
		return fmt.Errorf("unknown DHT source %q", c.DHT.Source)
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			return fmt.Errorf("MQTT port must be between 1 and 65535")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("MQTT topic is required")
		}
		if c.MQTT.Interval < 100*time.Millisecond {
			return fmt.Errorf("MQTT interval must be at least 100ms")
		}
	}

	if c.History.Enabled {
		if c.History.BatchSize < 1 {
			return fmt.Errorf("history batch size must be at least 1")
		}
		if c.History.RetentionDays < 1 {
			return fmt.Errorf("history retention must be at least 1 day")
		}
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text")
	}
	return nil
}

// APEnabled reports whether the fallback access point may be started
func (c *Config) APEnabled() bool {
	return c.WiFi.FallbackAP.Enabled != nil && *c.WiFi.FallbackAP.Enabled
}

// CORSEnabled reports whether responses carry Access-Control-Allow-Origin
func (c *Config) CORSEnabled() bool {
	return c.HTTP.CORS == nil || *c.HTTP.CORS
}

func (a AddressConfig) validate(name string) error {
	for field, v := range map[string]string{
		"ip": a.IP, "gateway": a.Gateway, "netmask": a.Netmask, "dns": a.DNS,
	} {
		if v == "" {
			continue
		}
		if ip := net.ParseIP(v); ip == nil || ip.To4() == nil {
			return fmt.Errorf("%s %s %q is not an IPv4 address", name, field, v)
		}
	}
	return nil
}

func validHostname(name string) bool {
	if name == "" || len(name) > 63 || strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

// String returns a safe string representation (hides passwords)
func (c *Config) String() string {
	wifi := c.WiFi
	wifi.Password = mask(wifi.Password)
	wifi.FallbackAP.Password = mask(wifi.FallbackAP.Password)
	mqtt := c.MQTT
	mqtt.Password = mask(mqtt.Password)

	return fmt.Sprintf("Config{Device: %+v, WiFi: [SSID=%s, Password=%s, Static=%+v, AP=%s/%s], HTTP: [Port=%d, CORS=%t], Gas: %+v, DHT: %+v, MQTT: [Broker=%s:%d, Topic=%s, User=%s, Password=%s], History: %+v, Logging: %+v}",
		c.Device,
		wifi.SSID, wifi.Password, wifi.Static, wifi.FallbackAP.SSID, wifi.FallbackAP.Password,
		c.HTTP.Port, c.CORSEnabled(),
		c.Gas,
		c.DHT,
		mqtt.Broker, mqtt.Port, mqtt.Topic, mqtt.Username, mqtt.Password,
		c.History,
		c.Logging,
	)
}

// mask hides all but the first 2 characters of a secret
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + "****"
}
