package netmgr

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/afroash/airmon/internal/metrics"
	"github.com/afroash/airmon/internal/models"
	"github.com/rs/zerolog"
)

// Defaults for Config
const (
	DefaultStationTimeout = 8 * time.Second
	DefaultPollInterval   = 200 * time.Millisecond
	DefaultAPAddress      = "192.168.4.1"
	DefaultAPNetmask      = "255.255.255.0"
)

// Config describes how to bring the link up
type Config struct {
	Hostname string
	SSID     string
	Password string

	// Static is applied only when Complete
	Static Address

	StationTimeout time.Duration
	PollInterval   time.Duration

	FallbackAP bool
	APSSID     string
	APPassword string
	AP         Address

	// HTTPPort is announced with the hostname
	HTTPPort int
}

func (c *Config) applyDefaults() {
	if c.StationTimeout <= 0 {
		c.StationTimeout = DefaultStationTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.AP.IP == "" {
		c.AP.IP = DefaultAPAddress
	}
	if c.AP.Gateway == "" {
		c.AP.Gateway = c.AP.IP
	}
	if c.AP.Netmask == "" {
		c.AP.Netmask = DefaultAPNetmask
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 80
	}
}

// APIOpener starts the HTTP API once a link is up
type APIOpener interface {
	Open(ctx context.Context) error
}

// APIOpenerFunc adapts a function to APIOpener
type APIOpenerFunc func(ctx context.Context) error

// Open calls f(ctx)
func (f APIOpenerFunc) Open(ctx context.Context) error {
	return f(ctx)
}

// Manager owns the connectivity state. Only Begin mutates it.
type Manager struct {
	radio     Radio
	announcer Announcer
	api       APIOpener
	logger    zerolog.Logger

	mu          sync.RWMutex
	state       State
	mode        string
	hostname    string
	lastAttempt time.Time
	transitions []Transition

	// swapped in tests
	now func() time.Time
}

// NewManager creates a manager in DISCONNECTED. announcer and api may be nil.
func NewManager(radio Radio, announcer Announcer, api APIOpener, logger zerolog.Logger) *Manager {
	m := &Manager{
		radio:     radio,
		announcer: announcer,
		api:       api,
		logger:    logger,
		state:     Disconnected,
		mode:      models.ModeNone,
		now:       time.Now,
	}
	metrics.SetNetworkState(Disconnected.String(), StateNames())
	return m
}

// Begin joins the station network, falling back to an access point
// when enabled, and returns the final state. It blocks for at most the
// station timeout plus the time the radio takes to start the AP. There
// is no later attempt to rejoin the station network.
func (m *Manager) Begin(ctx context.Context, cfg Config) State {
	cfg.applyDefaults()

	m.mu.Lock()
	m.hostname = cfg.Hostname
	m.lastAttempt = m.now()
	m.mu.Unlock()

	m.setState(ConnectingStation, models.ModeNone)

	if cfg.Hostname != "" {
		if err := m.radio.SetHostname(cfg.Hostname); err != nil {
			m.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Failed to set hostname")
		}
	}
	if cfg.Static.Complete() {
		if err := m.radio.ConfigureStation(cfg.Static); err != nil {
			m.logger.Warn().Err(err).Str("ip", cfg.Static.IP).Msg("Static address not applied")
		}
	}

	if m.joinStation(ctx, cfg) {
		m.setState(StationUp, models.ModeStation)
		m.goOnline(ctx, cfg)
		return StationUp
	}
	if ctx.Err() != nil {
		m.setState(Failed, models.ModeNone)
		return Failed
	}

	if !cfg.FallbackAP {
		m.logger.Error().Str("ssid", cfg.SSID).Msg("Station join failed and fallback AP disabled")
		m.setState(Failed, models.ModeNone)
		return Failed
	}

	if err := m.radio.ConfigureAccessPoint(cfg.AP); err != nil {
		m.logger.Warn().Err(err).Str("ip", cfg.AP.IP).Msg("Failed to configure AP address")
	}
	if err := m.radio.StartAccessPoint(cfg.APSSID, cfg.APPassword); err != nil {
		m.logger.Error().Err(err).Str("ap_ssid", cfg.APSSID).Msg("Failed to start fallback AP")
		m.setState(Failed, models.ModeNone)
		return Failed
	}
	m.setState(AccessPointUp, models.ModeAccessPoint)
	m.goOnline(ctx, cfg)
	return AccessPointUp
}

// joinStation starts the join and polls until connected or timed out
func (m *Manager) joinStation(ctx context.Context, cfg Config) bool {
	if cfg.SSID == "" {
		m.logger.Warn().Msg("No station SSID configured")
		return false
	}
	if err := m.radio.JoinStation(cfg.SSID, cfg.Password); err != nil {
		m.logger.Warn().Err(err).Str("ssid", cfg.SSID).Msg("Station join rejected")
		return false
	}

	m.logger.Info().Str("ssid", cfg.SSID).Dur("timeout", cfg.StationTimeout).Msg("Joining station network")

	timeout := time.NewTimer(cfg.StationTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(cfg.PollInterval)
	defer poll.Stop()

	for {
		if m.radio.StationConnected() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-timeout.C:
			// one last look so a join that lands on the deadline counts
			if m.radio.StationConnected() {
				return true
			}
			m.logger.Warn().Str("ssid", cfg.SSID).Msg("Station join timed out")
			return false
		case <-poll.C:
		}
	}
}

// goOnline announces the device and opens the API. Both are best effort.
func (m *Manager) goOnline(ctx context.Context, cfg Config) {
	link := m.radio.Link(m.Mode())
	m.logger.Info().
		Str("mode", m.Mode()).
		Str("ssid", link.SSID).
		Str("ip", link.IP).
		Int("rssi", link.RSSI).
		Msg("Network up")

	if m.announcer != nil && cfg.Hostname != "" {
		if err := m.announcer.Announce(cfg.Hostname, cfg.HTTPPort, net.ParseIP(link.IP)); err != nil {
			m.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Name announcement failed")
		}
	}
	if m.api != nil {
		if err := m.api.Open(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Failed to open HTTP API")
		}
	}
}

func (m *Manager) setState(s State, mode string) {
	m.mu.Lock()
	from := m.state
	m.state = s
	m.mode = mode
	m.transitions = append(m.transitions, Transition{From: from, To: s, At: m.now()})
	m.mu.Unlock()

	metrics.SetNetworkState(s.String(), StateNames())
	m.logger.Debug().Str("from", from.String()).Str("to", s.String()).Msg("Connectivity state changed")
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Mode returns STA, AP or NONE
func (m *Manager) Mode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Online reports whether the API and publishing can be used
func (m *Manager) Online() bool {
	s := m.State()
	return s == StationUp || s == AccessPointUp
}

// LastAttempt is when Begin last started
func (m *Manager) LastAttempt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAttempt
}

// Transitions returns a copy of the state history
func (m *Manager) Transitions() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// NetView describes the active link for the API
func (m *Manager) NetView() models.NetView {
	mode := m.Mode()
	if mode == models.ModeNone {
		return models.NetView{Mode: models.ModeNone}
	}
	link := m.radio.Link(mode)
	view := models.NetView{
		Mode: mode,
		SSID: link.SSID,
		IP:   link.IP,
		MAC:  link.MAC,
	}
	// RSSI is only meaningful for a joined station
	if mode == models.ModeStation {
		view.RSSI = link.RSSI
	}
	return view
}

// Close withdraws the announcement
func (m *Manager) Close() error {
	if m.announcer == nil {
		return nil
	}
	return m.announcer.Shutdown()
}
