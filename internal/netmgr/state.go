// Package netmgr brings the device onto a network: it joins the
// configured station network, falls back to hosting its own access
// point when that fails, announces a discoverable name and opens the
// HTTP API on whichever link came up.
package netmgr

import (
	"time"
)

// State of the connectivity state machine
type State int

const (
	Disconnected State = iota
	ConnectingStation
	StationUp
	AccessPointUp
	Failed
)

var stateNames = [...]string{
	Disconnected:      "DISCONNECTED",
	ConnectingStation: "CONNECTING_STATION",
	StationUp:         "STATION_UP",
	AccessPointUp:     "ACCESS_POINT_UP",
	Failed:            "FAILED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// StateNames lists every state label, in order.
func StateNames() []string {
	return stateNames[:]
}

// Transition records one state change
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}
