package netmgr

import (
	"errors"
	"net"
)

// ErrUnsupported is returned by radios that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by radio")

// Address is a static IPv4 configuration
type Address struct {
	IP      string
	Gateway string
	Netmask string
	DNS     string
}

// Complete reports whether IP, gateway and netmask are all set
func (a Address) Complete() bool {
	return a.IP != "" && a.Gateway != "" && a.Netmask != ""
}

// LinkInfo describes an active link
type LinkInfo struct {
	SSID string
	RSSI int
	IP   string
	MAC  string
}

// Radio is the network driver the manager steers
type Radio interface {
	SetHostname(name string) error
	ConfigureStation(addr Address) error
	JoinStation(ssid, password string) error
	StationConnected() bool
	ConfigureAccessPoint(addr Address) error
	StartAccessPoint(ssid, password string) error
	// Link describes the station ("STA") or access point ("AP") link
	Link(mode string) LinkInfo
}

// HostRadio runs on a machine whose network is managed by the OS. It
// reports the first usable interface as the station link and cannot
// host an access point.
type HostRadio struct {
	hostname string
	ssid     string
	iface    string

	// swapped in tests
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewHostRadio creates a host radio. iface restricts it to one
// interface; empty picks the first that is up and has an IPv4 address.
func NewHostRadio(iface string) *HostRadio {
	return &HostRadio{
		iface:      iface,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// SetHostname records the name used for announcements; the OS hostname is left alone
func (h *HostRadio) SetHostname(name string) error {
	h.hostname = name
	return nil
}

// ConfigureStation is not supported; addresses belong to the OS
func (h *HostRadio) ConfigureStation(Address) error {
	return ErrUnsupported
}

// JoinStation records the SSID. The OS is expected to have joined already.
func (h *HostRadio) JoinStation(ssid, _ string) error {
	h.ssid = ssid
	return nil
}

// StationConnected reports whether a usable interface exists
func (h *HostRadio) StationConnected() bool {
	_, _, ok := h.pick()
	return ok
}

// ConfigureAccessPoint implements Radio
func (h *HostRadio) ConfigureAccessPoint(Address) error {
	return ErrUnsupported
}

// StartAccessPoint implements Radio
func (h *HostRadio) StartAccessPoint(string, string) error {
	return ErrUnsupported
}

// Link implements Radio
func (h *HostRadio) Link(mode string) LinkInfo {
	if mode != "STA" {
		return LinkInfo{}
	}
	iface, ip, ok := h.pick()
	if !ok {
		return LinkInfo{SSID: h.ssid}
	}
	return LinkInfo{
		SSID: h.ssid,
		IP:   ip.String(),
		MAC:  iface.HardwareAddr.String(),
	}
}

func (h *HostRadio) pick() (net.Interface, net.IP, bool) {
	ifaces, err := h.interfaces()
	if err != nil {
		return net.Interface{}, nil, false
	}
	for _, iface := range ifaces {
		if h.iface != "" && iface.Name != h.iface {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := h.addrs(iface)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return iface, ip4, true
			}
		}
	}
	return net.Interface{}, nil, false
}
