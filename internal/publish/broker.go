package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when publishing without a broker link.
var ErrNotConnected = errors.New("not connected to broker")

// Broker is the MQTT transport the scheduler drives
type Broker interface {
	Connect(ctx context.Context, clientID, username, password string) error
	Connected() bool
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect() error
}

// PahoBroker is a Broker over a plain TCP connection using paho.golang.
// It never reconnects on its own; the scheduler decides when to retry.
type PahoBroker struct {
	addr      string
	keepAlive uint16
	timeout   time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	client    *paho.Client
	connected bool
	// gen identifies the current connection so stale callbacks are ignored
	gen uint64
}

// NewPahoBroker creates a broker link to host:port
func NewPahoBroker(host string, port int, keepAlive, timeout time.Duration, logger zerolog.Logger) *PahoBroker {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PahoBroker{
		addr:      net.JoinHostPort(host, fmt.Sprint(port)),
		keepAlive: uint16(keepAlive / time.Second),
		timeout:   timeout,
		logger:    logger,
	}
}

// Connect dials the broker and sends CONNECT. Credentials are sent only
// when non-empty.
func (b *PahoBroker) Connect(ctx context.Context, clientID, username, password string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", b.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.addr, err)
	}

	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: clientID,
		OnClientError: func(err error) {
			b.logger.Warn().Err(err).Msg("MQTT client error")
			b.markDown(gen)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			b.logger.Warn().Uint8("reason", d.ReasonCode).Msg("MQTT broker disconnected")
			b.markDown(gen)
		},
	})

	cp := &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  b.keepAlive,
		CleanStart: true,
	}
	if username != "" {
		cp.Username = username
		cp.UsernameFlag = true
	}
	if password != "" {
		cp.Password = []byte(password)
		cp.PasswordFlag = true
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		conn.Close()
		if ca != nil {
			return fmt.Errorf("connect rejected (reason %d): %w", ca.ReasonCode, err)
		}
		return fmt.Errorf("connect: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return ErrNotConnected
	}
	b.client = client
	b.connected = true
	return nil
}

func (b *PahoBroker) markDown(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen == gen {
		b.connected = false
	}
}

// Connected reports whether the last connect succeeded and the link has not dropped
func (b *PahoBroker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Publish sends payload at QoS 0
func (b *PahoBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	client, connected := b.client, b.connected
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if _, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     0,
		Payload: payload,
	}); err != nil {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect sends DISCONNECT and drops the link
func (b *PahoBroker) Disconnect() error {
	b.mu.Lock()
	client, connected := b.client, b.connected
	b.connected = false
	b.client = nil
	b.mu.Unlock()

	if client == nil || !connected {
		return nil
	}
	return client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
