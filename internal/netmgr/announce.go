package netmgr

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

// Announcer makes the device discoverable by name
type Announcer interface {
	Announce(hostname string, port int, ip net.IP) error
	Shutdown() error
}

// MDNSAnnouncer advertises the HTTP API as <hostname>.local over mDNS
type MDNSAnnouncer struct {
	logger zerolog.Logger

	mu     sync.Mutex
	server *mdns.Server
}

// NewMDNSAnnouncer creates an announcer; nothing is sent until Announce
func NewMDNSAnnouncer(logger zerolog.Logger) *MDNSAnnouncer {
	return &MDNSAnnouncer{logger: logger}
}

// Announce registers an _http._tcp service. A previous announcement is replaced.
func (a *MDNSAnnouncer) Announce(hostname string, port int, ip net.IP) error {
	var ips []net.IP
	if ip != nil {
		ips = []net.IP{ip}
	}
	svc, err := mdns.NewMDNSService(hostname, "_http._tcp", "", hostname+".local.", port, ips, []string{"path=/"})
	if err != nil {
		return fmt.Errorf("build mDNS service: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := mdns.NewServer(&mdns.Config{
		Zone:   svc,
		Logger: a.libraryLog(),
	})
	if err != nil {
		return fmt.Errorf("start mDNS responder: %w", err)
	}
	a.server = server
	a.logger.Info().Str("name", hostname+".local").Int("port", port).Msg("mDNS responder started")
	return nil
}

// libraryLog feeds the responder's own log lines into the zerolog stream
func (a *MDNSAnnouncer) libraryLog() *log.Logger {
	return log.New(a.logger.With().Str("component", "mdns").Logger(), "", 0)
}

// Shutdown stops responding
func (a *MDNSAnnouncer) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}
