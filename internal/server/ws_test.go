package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

func dialHub(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) session.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	return snap
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsSnapshots(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	conn := dialHub(t, ts)
	defer conn.Close()
	waitClients(t, hub, 1)

	hub.Present(session.Snapshot{SessionID: "s1", Label: gesture.LabelHandOpen, OpenCount: 1, FingersRaised: 5})

	snap := readSnapshot(t, conn)
	if snap.SessionID != "s1" || snap.Label != gesture.LabelHandOpen || snap.OpenCount != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHub_SendsLatestOnConnect(t *testing.T) {
	hub := NewHub()
	hub.Present(session.Snapshot{SessionID: "s1", ClosedCount: 4})

	ts := httptest.NewServer(hub)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if snap := readSnapshot(t, conn); snap.ClosedCount != 4 {
		t.Errorf("ClosedCount = %d, want 4", snap.ClosedCount)
	}
}

func TestHub_RemovesClosedClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	conn := dialHub(t, ts)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestHub_PresentNeverBlocks(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Present(session.Snapshot{Frames: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Present blocked without a running broadcast loop")
	}
}
