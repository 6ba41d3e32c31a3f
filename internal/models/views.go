package models

// StateView is the body of GET /state.
type StateView struct {
	T   Fixed  `json:"t"`
	H   Fixed  `json:"h"`
	HI  Fixed  `json:"hi"`
	CO2 Fixed  `json:"co2"`
	TS  uint64 `json:"ts"`
}

// Network modes reported by GET /net.
const (
	ModeStation     = "STA"
	ModeAccessPoint = "AP"
	ModeNone        = "NONE"
)

// NetView is the body of GET /net.
type NetView struct {
	Mode string `json:"mode"`
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
}

// BaselineView is the body of GET /mq/r0.
type BaselineView struct {
	R0 Fixed `json:"r0"`
}

// RecalibrateView is the body of GET /mq/recalibrate.
type RecalibrateView struct {
	OK       bool   `json:"ok"`
	R0       Fixed  `json:"r0"`
	Samples  uint64 `json:"s"`
	Interval uint64 `json:"i"`
	Warmup   uint64 `json:"w"`
}

// ErrorView is returned when an optional capability is missing.
type ErrorView struct {
	OK  bool   `json:"ok"`
	Err string `json:"err"`
}

// Broker link states reported by GET /mqtt.
const (
	BrokerConnected    = "connected"
	BrokerDisconnected = "disconnected"
)

// PublishStatusView is the body of GET /mqtt.
type PublishStatusView struct {
	Connected   bool   `json:"connected"`
	Broker      string `json:"broker"`
	Topic       string `json:"topic"`
	LastPublish uint64 `json:"lastPublish"`
	Interval    uint64 `json:"interval"`
}

// PublishPayload is the message published to the broker topic.
type PublishPayload struct {
	RoomID      string `json:"roomId"`
	Timestamp   uint64 `json:"timestamp"`
	Temperature Fixed  `json:"temperature"`
	Humidity    Fixed  `json:"humidity"`
	HeatIndex   Fixed  `json:"heatIndex"`
	CO2         Fixed  `json:"co2"`
}
