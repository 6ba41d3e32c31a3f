package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/afroash/airmon/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestStream_GreetsAndForwards(t *testing.T) {
	store := NewSnapshotStore()
	store.Update(models.Snapshot{Temperature: 21, Humidity: 40, HeatIndex: 21, GasPPM: 500, Timestamp: 5})
	net := &fakeNetwork{view: models.NetView{Mode: models.ModeStation, SSID: "home"}}

	stream := NewStream(store, net, zerolog.Nop(), "*")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx, store)
	for i := 0; i < 100 && store.Stats().Subscribers == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}

	_, h := newTestAPI(Deps{State: store, Network: net, Stream: stream})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.Close()

	if msg := readMessage(t, conn); msg.Type != models.MessageTypeNetwork {
		t.Errorf("first frame type = %s, want network", msg.Type)
	}
	msg := readMessage(t, conn)
	if msg.Type != models.MessageTypeState {
		t.Fatalf("second frame type = %s, want state", msg.Type)
	}
	var state models.StateView
	if err := msg.UnmarshalPayload(&state); err != nil {
		t.Fatalf("UnmarshalPayload() error = %v", err)
	}
	if state.TS != 5 || state.T.Value != 21 {
		t.Errorf("greeting state = %+v", state)
	}

	// wait for registration before publishing
	deadline := time.Now().Add(time.Second)
	for len(stream.Clients()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	store.Update(models.Snapshot{Temperature: 22, Humidity: 41, HeatIndex: 22, GasPPM: 510, Timestamp: 6})
	msg = readMessage(t, conn)
	if err := msg.UnmarshalPayload(&state); err != nil {
		t.Fatalf("UnmarshalPayload() error = %v", err)
	}
	if state.TS != 6 {
		t.Errorf("forwarded ts = %d, want 6", state.TS)
	}
}

func TestStream_Notify(t *testing.T) {
	store := NewSnapshotStore()
	stream := NewStream(store, nil, zerolog.Nop(), "*")
	_, h := newTestAPI(Deps{State: store, Stream: stream})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.Close()
	readMessage(t, conn) // greeting state

	deadline := time.Now().Add(time.Second)
	for len(stream.Clients()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stream.Notify(models.MessageTypeCalibration, models.CalibrationMessage{R0: models.ThreeDecimals(30), Calibrated: true})
	msg := readMessage(t, conn)
	if msg.Type != models.MessageTypeCalibration {
		t.Errorf("type = %s, want calibration", msg.Type)
	}
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	stream := NewStream(NewSnapshotStore(), nil, zerolog.Nop(), "http://dashboard.local")
	srv := httptest.NewServer(stream)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("Dial() succeeded from a foreign origin")
	}

	header = map[string][]string{"Origin": {"http://dashboard.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() from allowed origin error = %v", err)
	}
	conn.Close()
}

func TestStream_ClientRemovedOnClose(t *testing.T) {
	store := NewSnapshotStore()
	stream := NewStream(store, nil, zerolog.Nop(), "*")
	srv := httptest.NewServer(stream)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	readMessage(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(stream.Clients()) != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := len(stream.Clients()); n != 0 {
		t.Errorf("%d clients still registered after close", n)
	}
}

func TestStream_GreetingWaitsForGate(t *testing.T) {
	store := NewSnapshotStore()
	store.Update(models.Snapshot{Temperature: 21, Humidity: 40, HeatIndex: 21, GasPPM: 500, Timestamp: 5})
	stream := NewStream(store, nil, zerolog.Nop(), "*")

	gate := &sync.Mutex{}
	_, h := newTestAPI(Deps{State: store, Stream: stream, Gate: gate})
	srv := httptest.NewServer(h)
	defer srv.Close()

	// a recalibration holds the gate while the client connects
	gate.Lock()
	conn := dialStream(t, srv)
	defer conn.Close()
	store.Update(models.Snapshot{Temperature: 21, Humidity: 40, HeatIndex: 21, GasPPM: 640, Timestamp: 9})
	gate.Unlock()

	msg := readMessage(t, conn)
	var state models.StateView
	if err := msg.UnmarshalPayload(&state); err != nil {
		t.Fatalf("UnmarshalPayload() error = %v", err)
	}
	if state.TS != 9 {
		t.Errorf("greeting ts = %d, want 9", state.TS)
	}
}
