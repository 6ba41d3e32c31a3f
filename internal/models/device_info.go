package models

import "time"

// DeviceInfo contains metadata about the running monitor
type DeviceInfo struct {
	Hostname  string    `json:"hostname"`
	RoomID    string    `json:"room_id"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
}

// NewDeviceInfo creates a DeviceInfo with the current time as start time
func NewDeviceInfo(hostname, roomID, version string) *DeviceInfo {
	return &DeviceInfo{
		Hostname:  hostname,
		RoomID:    roomID,
		Version:   version,
		StartTime: time.Now(),
	}
}

// Uptime returns the duration since the monitor started
func (d *DeviceInfo) Uptime() time.Duration {
	return time.Since(d.StartTime)
}

// UptimeSeconds is the snapshot clock.
func (d *DeviceInfo) UptimeSeconds() uint64 {
	return uint64(d.Uptime() / time.Second)
}

// UptimeMillis is the publish payload clock.
func (d *DeviceInfo) UptimeMillis() uint64 {
	return uint64(d.Uptime() / time.Millisecond)
}
