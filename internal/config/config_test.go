package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airmon.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  hostname: "kosan-204"
  room_id: "204"
  interval: 2s

wifi:
  ssid: "KosanNet"
  password: "hunter22"
  station_timeout: 10s
  static:
    ip: "192.168.1.50"
    gateway: "192.168.1.1"
    netmask: "255.255.255.0"
  fallback_ap:
    enabled: false

http:
  port: 8080
  cors: false

gas:
  source: simulated
  target: NH3
  calibration_samples: 20

dht:
  source: simulated

mqtt:
  broker: "broker.hivemq.com"
  username: "kosan"
  password: "s3cret-pass"
  interval: 10s

history:
  enabled: true
  path: "/var/lib/airmon/history.db"

logging:
  level: debug
  format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device.Hostname != "kosan-204" || cfg.Device.Interval != 2*time.Second {
		t.Errorf("Device = %+v", cfg.Device)
	}
	if cfg.WiFi.SSID != "KosanNet" || cfg.WiFi.StationTimeout != 10*time.Second {
		t.Errorf("WiFi = %+v", cfg.WiFi)
	}
	want := AddressConfig{IP: "192.168.1.50", Gateway: "192.168.1.1", Netmask: "255.255.255.0"}
	if diff := cmp.Diff(want, cfg.WiFi.Static); diff != "" {
		t.Errorf("Static mismatch (-want +got):\n%s", diff)
	}
	if cfg.APEnabled() {
		t.Error("Expected fallback AP disabled")
	}
	if cfg.CORSEnabled() {
		t.Error("Expected CORS disabled")
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Gas.Target != "NH3" || cfg.Gas.CalibrationSamples != 20 || cfg.Gas.CalibrationInterval != 100*time.Millisecond {
		t.Errorf("Gas = %+v", cfg.Gas)
	}
	if cfg.MQTT.Broker != "broker.hivemq.com" || cfg.MQTT.Port != 1883 || cfg.MQTT.Interval != 10*time.Second {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if !cfg.History.Enabled || cfg.History.Path != "/var/lib/airmon/history.db" {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"hostname", cfg.Device.Hostname, "esp32c3"},
		{"room", cfg.Device.RoomID, "204"},
		{"interval", cfg.Device.Interval, 1500 * time.Millisecond},
		{"station timeout", cfg.WiFi.StationTimeout, 8 * time.Second},
		{"ap ssid", cfg.WiFi.FallbackAP.SSID, "ESP32C3-AP"},
		{"ap password", cfg.WiFi.FallbackAP.Password, "pass12345"},
		{"ap ip", cfg.WiFi.FallbackAP.Address.IP, "192.168.4.1"},
		{"ap gateway", cfg.WiFi.FallbackAP.Address.Gateway, "192.168.4.1"},
		{"ap netmask", cfg.WiFi.FallbackAP.Address.Netmask, "255.255.255.0"},
		{"ap enabled", cfg.APEnabled(), true},
		{"http port", cfg.HTTP.Port, 80},
		{"cors", cfg.CORSEnabled(), true},
		{"gas target", cfg.Gas.Target, "co2"},
		{"warmup", cfg.Gas.WarmUp, 5 * time.Second},
		{"samples", cfg.Gas.CalibrationSamples, 100},
		{"filter", cfg.Gas.FilterWindow, 5},
		{"dht source", cfg.DHT.Source, "dht22"},
		{"dht pin", cfg.DHT.Pin, 4},
		{"mqtt broker", cfg.MQTT.Broker, ""},
		{"mqtt port", cfg.MQTT.Port, 1883},
		{"mqtt client", cfg.MQTT.ClientID, "esp32c3-sensor"},
		{"mqtt topic", cfg.MQTT.Topic, "kosan/room204/sensors"},
		{"mqtt interval", cfg.MQTT.Interval, 5 * time.Second},
		{"history", cfg.History.Enabled, false},
		{"log level", cfg.Logging.Level, "info"},
		{"log format", cfg.Logging.Format, "json"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "device: [not, a, map]")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	if _, err := LoadConfig(writeConfig(t, "http:\n  port: 70000\n")); err == nil {
		t.Error("Expected validation error")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("AIRMON_HOSTNAME", "lab-monitor")
	t.Setenv("AIRMON_ROOM_ID", "101")
	t.Setenv("AIRMON_WIFI_SSID", "LabNet")
	t.Setenv("AIRMON_WIFI_PASSWORD", "labpass1")
	t.Setenv("AIRMON_HTTP_PORT", "8081")
	t.Setenv("AIRMON_MQTT_BROKER", "10.0.0.2")
	t.Setenv("AIRMON_MQTT_USERNAME", "lab")
	t.Setenv("AIRMON_MQTT_PASSWORD", "labsecret")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device.Hostname != "lab-monitor" || cfg.Device.RoomID != "101" {
		t.Errorf("Device = %+v", cfg.Device)
	}
	if cfg.WiFi.SSID != "LabNet" || cfg.WiFi.Password != "labpass1" {
		t.Errorf("WiFi = %+v", cfg.WiFi)
	}
	if cfg.HTTP.Port != 8081 {
		t.Errorf("HTTP.Port = %d, want 8081", cfg.HTTP.Port)
	}
	if cfg.MQTT.Broker != "10.0.0.2" || cfg.MQTT.Username != "lab" || cfg.MQTT.Password != "labsecret" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
}

func TestOverrideFromEnv_BadPort(t *testing.T) {
	t.Setenv("AIRMON_HTTP_PORT", "eighty")

	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"hostname with space", func(c *Config) { c.Device.Hostname = "my monitor" }, true},
		{"hostname leading hyphen", func(c *Config) { c.Device.Hostname = "-monitor" }, true},
		{"fast cycle", func(c *Config) { c.Device.Interval = 10 * time.Millisecond }, true},
		{"short AP password", func(c *Config) { c.WiFi.FallbackAP.Password = "short" }, true},
		{"short AP password without AP", func(c *Config) {
			c.WiFi.FallbackAP.Password = "short"
			c.WiFi.FallbackAP.Enabled = boolPtr(false)
		}, false},
		{"bad static ip", func(c *Config) { c.WiFi.Static.IP = "192.168.1" }, true},
		{"partial static", func(c *Config) { c.WiFi.Static.IP = "192.168.1.5" }, false},
		{"ipv6 static", func(c *Config) { c.WiFi.Static.Gateway = "fe80::1" }, true},
		{"port zero", func(c *Config) { c.HTTP.Port = 0 }, true},
		{"unknown gas source", func(c *Config) { c.Gas.Source = "spi" }, true},
		{"unknown gas", func(c *Config) { c.Gas.Target = "radon" }, true},
		{"zero samples", func(c *Config) { c.Gas.CalibrationSamples = 0 }, true},
		{"wide adc", func(c *Config) { c.Gas.ADCBits = 24 }, true},
		{"empty filter", func(c *Config) { c.Gas.FilterWindow = 0 }, true},
		{"unknown dht", func(c *Config) { c.DHT.Source = "am2302" }, true},
		{"dht11", func(c *Config) { c.DHT.Source = "dht11" }, false},
		{"dht22", func(c *Config) { c.DHT.Source = "dht22" }, false},
		{"dht22 pin", func(c *Config) { c.DHT.Source = "dht22"; c.DHT.Pin = -1 }, true},
		{"dht pin", func(c *Config) { c.DHT.Pin = -1 }, true},
		{"simulated dht ignores pin", func(c *Config) { c.DHT.Source = "simulated"; c.DHT.Pin = -1 }, false},
		{"mqtt without topic", func(c *Config) { c.MQTT.Broker = "b"; c.MQTT.Topic = "" }, true},
		{"mqtt fast interval", func(c *Config) { c.MQTT.Broker = "b"; c.MQTT.Interval = time.Millisecond }, true},
		{"history batch", func(c *Config) { c.History.Enabled = true; c.History.BatchSize = -1 }, true},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestString_MasksSecrets(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.WiFi.Password = "wifi-password"
	cfg.MQTT.Password = "mqtt-password"

	s := cfg.String()
	for _, secret := range []string{"wifi-password", "mqtt-password", "pass12345"} {
		if strings.Contains(s, secret) {
			t.Errorf("String() leaks %q: %s", secret, s)
		}
	}
	if !strings.Contains(s, "wi****") {
		t.Errorf("String() should show masked password: %s", s)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("Unexpected log output: %s", out)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}

	buf.Reset()
	LoggingConfig{Level: "info", Format: "text"}.NewLogger(&buf).Info().Msg("console")
	if strings.Contains(buf.String(), `"message"`) || !strings.Contains(buf.String(), "console") {
		t.Errorf("Expected console output, got %s", buf.String())
	}
}
