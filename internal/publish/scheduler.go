// Package publish pushes the latest snapshot to an MQTT broker on a
// fixed interval, reconnecting with a fixed cool-down when the link drops.
package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/afroash/airmon/internal/metrics"
	"github.com/afroash/airmon/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults for Config
const (
	DefaultInterval  = 5 * time.Second
	ReconnectBackoff = 5 * time.Second
)

// StateSource provides the snapshot to publish
type StateSource interface {
	Latest() models.Snapshot
}

// Link reports whether the network currently allows publishing
type Link interface {
	Online() bool
}

// Config holds the publish settings. An empty Broker disables publishing.
type Config struct {
	Broker   string
	Topic    string
	RoomID   string
	Interval time.Duration
}

// Scheduler decides, once per cycle, whether to connect and whether to
// publish. It never queues: each publish carries the current snapshot.
type Scheduler struct {
	cfg     Config
	broker  Broker
	state   StateSource
	link    Link
	logger  zerolog.Logger
	clock   func() uint64
	now     func() time.Time
	spareID string

	mu            sync.Mutex
	attempted     bool
	lastAttempt   time.Time
	published     bool
	lastPublish   time.Time
	lastPublishMs uint64
}

// NewScheduler creates a scheduler. clock returns milliseconds since
// start and stamps each payload.
func NewScheduler(cfg Config, broker Broker, state StateSource, clock func() uint64, logger zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		cfg:     cfg,
		broker:  broker,
		state:   state,
		logger:  logger,
		clock:   clock,
		now:     time.Now,
		spareID: "airmon-" + uuid.NewString(),
	}
}

// SetLink gates Tick on the network: while link is offline no connect or
// publish is attempted. A nil link leaves Tick ungated.
func (s *Scheduler) SetLink(link Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link = link
}

// Enabled reports whether a broker is configured
func (s *Scheduler) Enabled() bool {
	return s.cfg.Broker != "" && s.broker != nil
}

// Tick runs one scheduling step and reports whether a message was
// published. It does nothing while the link is offline. An empty clientID is replaced with a generated one; the
// credentials are used only when both are set.
func (s *Scheduler) Tick(ctx context.Context, clientID, user, pass string) bool {
	if !s.Enabled() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.link != nil && !s.link.Online() {
		return false
	}

	now := s.now()
	if !s.broker.Connected() {
		if s.attempted && now.Sub(s.lastAttempt) < ReconnectBackoff {
			return false
		}
		s.attempted = true
		s.lastAttempt = now

		if clientID == "" {
			clientID = s.spareID
		}
		if user == "" || pass == "" {
			user, pass = "", ""
		}

		err := s.broker.Connect(ctx, clientID, user, pass)
		metrics.MQTTConnectAttempts.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			metrics.MQTTConnected.Set(0)
			s.logger.Warn().Err(err).Str("broker", s.cfg.Broker).Msg("MQTT connect failed")
			return false
		}
		metrics.MQTTConnected.Set(1)
		s.logger.Info().Str("broker", s.cfg.Broker).Str("client_id", clientID).Msg("MQTT connected")
	}

	if s.published && now.Sub(s.lastPublish) < s.cfg.Interval {
		return false
	}

	stamp := s.clock()
	payload, err := json.Marshal(s.state.Latest().Payload(s.cfg.RoomID, stamp))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode payload")
		return false
	}

	if err := s.broker.Publish(ctx, s.cfg.Topic, payload); err != nil {
		metrics.MQTTPublishes.WithLabelValues("error").Inc()
		if !s.broker.Connected() {
			metrics.MQTTConnected.Set(0)
		}
		s.logger.Warn().Err(err).Str("topic", s.cfg.Topic).Msg("MQTT publish failed")
		return false
	}

	s.published = true
	s.lastPublish = now
	s.lastPublishMs = stamp
	metrics.MQTTPublishes.WithLabelValues("ok").Inc()
	s.logger.Debug().Str("topic", s.cfg.Topic).RawJSON("payload", payload).Msg("Published")
	return true
}

// Status describes the broker link for the API
func (s *Scheduler) Status() models.PublishStatusView {
	connected := s.broker != nil && s.broker.Connected()

	s.mu.Lock()
	defer s.mu.Unlock()

	view := models.PublishStatusView{
		Connected:   connected,
		Broker:      models.BrokerDisconnected,
		Topic:       s.cfg.Topic,
		LastPublish: s.lastPublishMs,
		Interval:    uint64(s.cfg.Interval / time.Millisecond),
	}
	if connected {
		view.Broker = models.BrokerConnected
	}
	return view
}

// Close disconnects from the broker
func (s *Scheduler) Close() error {
	if s.broker == nil || !s.broker.Connected() {
		return nil
	}
	metrics.MQTTConnected.Set(0)
	return s.broker.Disconnect()
}
