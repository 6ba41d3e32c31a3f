package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/afroash/airmon/internal/metrics"
	"github.com/afroash/airmon/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Constants for WebSocket timeouts
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	clientBuffer = 16
)

// Stream pushes live snapshots to websocket clients
type Stream struct {
	upgrader       websocket.Upgrader
	state          StateSource
	network        NetworkSource
	logger         zerolog.Logger
	allowedOrigins []string
	gate           sync.Locker
	clients        map[*StreamClient]struct{}
	mutex          sync.RWMutex
}

// StreamClient represents an active websocket connection
type StreamClient struct {
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Dropped     int64     `json:"dropped"`

	conn *websocket.Conn
	send chan *models.Message
}

// NewStream creates a stream handler. An allowed origin of "*" accepts
// any origin; with none, only same-origin requests are accepted.
func NewStream(state StateSource, network NetworkSource, logger zerolog.Logger, allowedOrigins ...string) *Stream {
	s := &Stream{
		state:          state,
		network:        network,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		clients:        make(map[*StreamClient]struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	return s
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (s *Stream) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	s.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// ServeHTTP upgrades the request and streams until the client leaves
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := &StreamClient{
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan *models.Message, clientBuffer),
	}

	s.greet(client)

	s.mutex.Lock()
	s.clients[client] = struct{}{}
	s.mutex.Unlock()
	metrics.StreamClients.Inc()
	s.logger.Info().Str("remote", client.RemoteAddr).Msg("Stream client connected")

	go s.writeLoop(client)
	s.readLoop(client)
}

// greet queues the current network and state before the client joins the
// broadcast. The views are read under the device gate, so a client that
// connects during a recalibration sees its result.
func (s *Stream) greet(client *StreamClient) {
	s.mutex.RLock()
	gate := s.gate
	s.mutex.RUnlock()

	if gate != nil {
		gate.Lock()
	}
	var netView *models.NetView
	if s.network != nil {
		v := s.network.NetView()
		netView = &v
	}
	state := s.state.Latest().State()
	if gate != nil {
		gate.Unlock()
	}

	if netView != nil {
		s.enqueue(client, models.MessageTypeNetwork, *netView)
	}
	s.enqueue(client, models.MessageTypeState, state)
}

// setGate shares the device gate used by the API routes
func (s *Stream) setGate(gate sync.Locker) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.gate = gate
}

// readLoop only services control frames; clients never send data
func (s *Stream) readLoop(client *StreamClient) {
	defer s.remove(client)

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

func (s *Stream) writeLoop(client *StreamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Str("remote", client.RemoteAddr).Msg("Stream write failed")
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove unregisters a client and stops its writer
func (s *Stream) remove(client *StreamClient) {
	s.mutex.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
		metrics.StreamClients.Dec()
	}
	s.mutex.Unlock()
	s.logger.Info().Str("remote", client.RemoteAddr).Msg("Stream client disconnected")
}

// Notify sends a frame to every connected client. Clients whose buffer
// is full miss the frame.
func (s *Stream) Notify(msgType models.MessageType, payload interface{}) {
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to create stream message")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			client.Dropped++
		}
	}
}

func (s *Stream) enqueue(client *StreamClient, msgType models.MessageType, payload interface{}) {
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

// Run forwards every stored snapshot to the clients until ctx is done
func (s *Stream) Run(ctx context.Context, store *SnapshotStore) {
	updates, cancel := store.Subscribe(4)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			s.Notify(models.MessageTypeState, snap.State())
		}
	}
}

// Clients returns a list of currently connected clients
func (s *Stream) Clients() []StreamClient {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	clients := make([]StreamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, StreamClient{
			RemoteAddr:  c.RemoteAddr,
			ConnectedAt: c.ConnectedAt,
			Dropped:     c.Dropped,
		})
	}
	return clients
}
